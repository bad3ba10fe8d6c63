package fact

import (
	"context"
	"log"

	"wayfact.ai/geo"
)

// maxRetries is how many fresh generations a duplicate place triggers
// before we give up and deliver the last attempt anyway.
const maxRetries = 2

// Result is one deliverable fact.
type Result struct {
	// Ordinal numbers facts within a live session, starting at 1.
	// Zero for one-shot facts.
	Ordinal  int          `json:"ordinal,omitempty"`
	Place    string       `json:"place"`
	Body     string       `json:"body"`
	Position geo.Position `json:"position"`
	// Verified is true when a resolver stage produced the position,
	// false when it fell back to the query position
	Verified bool `json:"verified"`
	// Exhausted means every retry hit a known place and this result
	// repeats one of them
	Exhausted bool     `json:"exhausted,omitempty"`
	Images    []string `json:"images,omitempty"`
}

// Pipeline produces one fact end to end: generate, reject duplicates
// with retries, resolve the coordinate, attach images.
type Pipeline struct {
	gen      Generator
	resolver *geo.Resolver
	images   *ImageLookup
}

func NewPipeline(gen Generator, resolver *geo.Resolver, images *ImageLookup) *Pipeline {
	return &Pipeline{gen: gen, resolver: resolver, images: images}
}

// Produce makes one fact for the position, avoiding the places named in
// history. Generation failure is the only fatal error; everything after
// it degrades.
func (p *Pipeline) Produce(ctx context.Context, lat, lon float64, history []string) (*Result, error) {
	avoid := append([]string(nil), history...)

	var f Fact
	exhausted := false
	for attempt := 0; ; attempt++ {
		var err error
		f, err = p.gen.Generate(ctx, lat, lon, avoid)
		if err != nil {
			return nil, err
		}
		// unstructured replies carry no place name to compare
		if f.Place == "" || !geo.IsDuplicate(f.Place, history) {
			break
		}
		if attempt == maxRetries {
			log.Printf("[fact] retries exhausted, delivering %q anyway", f.Place)
			exhausted = true
			break
		}
		log.Printf("[fact] duplicate %q, retrying", f.Place)
		avoid = append(avoid, f.Place)
	}

	r := &Result{
		Place:     f.Place,
		Body:      f.Body,
		Exhausted: exhausted,
	}
	if r.Place == "" {
		r.Place = "near you"
	}

	pos, err := p.resolver.Resolve(ctx, geo.Query{
		Place:    f.Place,
		Keywords: f.Keywords,
		RawHint:  f.RawHint,
		Origin:   geo.Position{Lat: lat, Lon: lon},
	})
	if err == nil {
		r.Position = pos
		r.Verified = true
	} else {
		// unresolved facts point at the query position
		r.Position = geo.Position{Lat: lat, Lon: lon}
	}

	if p.images != nil {
		query := f.Keywords
		if query == "" {
			query = f.Place
		}
		if query != "" {
			r.Images = p.images.Find(ctx, query)
		}
	}

	return r, nil
}
