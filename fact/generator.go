package fact

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"wayfact.ai/geo"
)

// Fact is one parsed generator reply.
type Fact struct {
	// Place is the surfaced place name, empty when the reply was unstructured
	Place string
	// Body is the fact text
	Body string
	// Keywords is a short map-search query for the place
	Keywords string
	// RawHint is the full raw reply, kept for coordinate extraction
	RawHint string
}

// Generator produces one place fact for a position, steering away from
// places already covered.
type Generator interface {
	Generate(ctx context.Context, lat, lon float64, avoid []string) (Fact, error)
}

const factPrompt = `You are a local guide. The user is at latitude %.6f, longitude %.6f.
Name one specific interesting place within about 500 meters and share one
surprising fact about it.

Reply in exactly this format:
Location: <place name>
Fact: <two or three sentences>
Search: <short query for finding this place on a map>
Coordinates: <decimal latitude, longitude - only if you are confident>`

const coordPrompt = `Reply with only the decimal coordinates (latitude, longitude) of: %s
No other text. If you are not sure, reply UNKNOWN.`

// OpenAI generates facts via chat completions. Implements Generator and
// geo.CoordinateAsker.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(key, baseURL, model string) *OpenAI {
	config := openai.DefaultConfig(key)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (o *OpenAI) Generate(ctx context.Context, lat, lon float64, avoid []string) (Fact, error) {
	prompt := fmt.Sprintf(factPrompt, lat, lon)
	if len(avoid) > 0 {
		prompt += "\n\nDo not mention any of these places again:\n- " + strings.Join(avoid, "\n- ")
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   400,
		Temperature: 0.8,
	})
	if err != nil {
		return Fact{}, err
	}
	if len(resp.Choices) == 0 {
		return Fact{}, fmt.Errorf("empty completion")
	}

	return ParseResponse(resp.Choices[0].Message.Content), nil
}

// AskCoordinates makes a narrow follow-up query for the coordinate of a
// named place. The reply goes through the same imprecision filter as
// inline hints, so city-center guesses come back as a miss.
func (o *OpenAI) AskCoordinates(ctx context.Context, place string) (geo.Position, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(coordPrompt, place)},
		},
		MaxTokens:   30,
		Temperature: 0,
	})
	if err != nil {
		return geo.Position{}, err
	}
	if len(resp.Choices) == 0 {
		return geo.Position{}, geo.ErrUnresolved
	}

	return geo.HintStage{}.Resolve(ctx, geo.Query{RawHint: resp.Choices[0].Message.Content})
}
