package fact

import "strings"

// ParseResponse extracts the Location/Fact/Search lines from a generator
// reply. Fact text may continue over multiple lines. A reply with no Fact
// line degrades to the raw text with no place name.
func ParseResponse(text string) Fact {
	f := Fact{RawHint: text}

	var body []string
	inFact := false

	for _, line := range strings.Split(text, "\n") {
		l := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(l, "Location:"):
			f.Place = strings.TrimSpace(strings.TrimPrefix(l, "Location:"))
			inFact = false
		case strings.HasPrefix(l, "Fact:"):
			body = append(body, strings.TrimSpace(strings.TrimPrefix(l, "Fact:")))
			inFact = true
		case strings.HasPrefix(l, "Search:"):
			f.Keywords = strings.TrimSpace(strings.TrimPrefix(l, "Search:"))
			inFact = false
		case strings.HasPrefix(l, "Coordinates:"):
			// stays in RawHint for the resolver
			inFact = false
		case l == "":
			inFact = false
		default:
			if inFact {
				body = append(body, l)
			}
		}
	}

	f.Body = strings.Join(body, " ")
	if f.Body == "" {
		// unstructured reply, deliver as-is
		f.Body = strings.TrimSpace(text)
	}
	return f
}
