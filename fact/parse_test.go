package fact

import "testing"

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		wantPlace    string
		wantBody     string
		wantKeywords string
	}{
		{
			name: "structured",
			in: `Location: Eiffel Tower
Fact: The tower grows about 15cm taller in summer as the iron expands.
Search: Eiffel Tower Paris
Coordinates: 48.8584, 2.2945`,
			wantPlace:    "Eiffel Tower",
			wantBody:     "The tower grows about 15cm taller in summer as the iron expands.",
			wantKeywords: "Eiffel Tower Paris",
		},
		{
			name: "multiline fact",
			in: `Location: Pont Neuf
Fact: Despite the name, it is the oldest standing bridge in Paris.
It was the first bridge built without houses on it.
Search: Pont Neuf`,
			wantPlace:    "Pont Neuf",
			wantBody:     "Despite the name, it is the oldest standing bridge in Paris. It was the first bridge built without houses on it.",
			wantKeywords: "Pont Neuf",
		},
		{
			name:      "no search line",
			in:        "Location: Louvre\nFact: It was a fortress before it was a palace.",
			wantPlace: "Louvre",
			wantBody:  "It was a fortress before it was a palace.",
		},
		{
			name:     "unstructured fallback",
			in:       "There is a lovely old bakery around the corner.",
			wantBody: "There is a lovely old bakery around the corner.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := ParseResponse(tc.in)
			if f.Place != tc.wantPlace {
				t.Errorf("Place = %q, want %q", f.Place, tc.wantPlace)
			}
			if f.Body != tc.wantBody {
				t.Errorf("Body = %q, want %q", f.Body, tc.wantBody)
			}
			if f.Keywords != tc.wantKeywords {
				t.Errorf("Keywords = %q, want %q", f.Keywords, tc.wantKeywords)
			}
			if f.RawHint != tc.in {
				t.Error("RawHint should keep the full reply")
			}
		})
	}
}
