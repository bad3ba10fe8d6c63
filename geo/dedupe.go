package geo

import (
	"strings"
	"unicode"
)

// Generic descriptors and articles that carry no identity: "Eiffel Tower"
// and "Tour Eiffel" must collide on "eiffel" alone.
var placeStopwords = map[string]bool{
	// articles, prepositions
	"the": true, "a": true, "an": true, "of": true, "le": true, "la": true,
	"les": true, "de": true, "des": true, "du": true, "el": true, "los": true,
	"di": true, "del": true, "della": true, "der": true, "das": true, "und": true,
	"and": true, "na": true, "im": true, "in": true,
	// generic place descriptors across languages
	"tower": true, "tour": true, "torre": true, "turm": true, "bashnya": true,
	"museum": true, "musee": true, "museo": true, "muzey": true,
	"cathedral": true, "cathedrale": true, "sobor": true, "duomo": true,
	"church": true, "eglise": true, "iglesia": true, "tserkov": true,
	"palace": true, "palais": true, "palazzo": true, "dvorets": true,
	"bridge": true, "pont": true, "ponte": true, "most": true,
	"square": true, "place": true, "plaza": true, "piazza": true, "ploshchad": true,
	"street": true, "rue": true, "avenue": true, "boulevard": true, "ulitsa": true,
	"station": true, "gare": true, "vokzal": true, "stantsiya": true,
	"castle": true, "chateau": true, "castello": true, "zamok": true,
	"garden": true, "gardens": true, "jardin": true, "sad": true,
	"park": true, "parc": true, "parco": true,
	"market": true, "marche": true, "rynok": true,
	"fountain": true, "fontaine": true, "fontan": true,
	"monument": true, "memorial": true, "pamyatnik": true,
	"house": true, "maison": true, "dom": true,
	"old": true, "new": true, "grand": true, "great": true, "saint": true, "st": true,
}

var cyrillicToLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

var diacriticFold = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o', 'ø': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n', 'ß': 's', 'ý': 'y',
}

// NormalizePlace lowercases, folds diacritics and transliterates Cyrillic
// so names in different scripts compare on the same footing.
func NormalizePlace(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if folded, ok := diacriticFold[r]; ok {
			r = folded
		}
		if lat, ok := cyrillicToLatin[r]; ok {
			b.WriteString(lat)
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '\'' {
			if r == '-' || r == '\'' {
				r = ' '
			}
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// coreTokens returns the identity-carrying tokens of a place name. When
// every token is a stopword the full token set is used instead, so
// "The Tower" still compares as something.
func coreTokens(name string) []string {
	all := strings.Fields(NormalizePlace(name))
	var core []string
	for _, t := range all {
		if !placeStopwords[t] {
			core = append(core, t)
		}
	}
	if len(core) == 0 {
		return all
	}
	return core
}

// tokensMatch compares two normalized tokens, tolerating one edit for
// longer tokens so transliteration drift ("eifel" vs "eiffel") still
// counts as the same place.
func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) < 5 || len(b) < 5 {
		return false
	}
	return editDistance(a, b) <= 1
}

func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// IsDuplicate reports whether candidate names the same place as any entry
// in history. History entries may carry a trailing ": fact" suffix - only
// the place part is compared.
func IsDuplicate(candidate string, history []string) bool {
	cand := coreTokens(candidate)
	if len(cand) == 0 {
		return false
	}

	for _, h := range history {
		if i := strings.Index(h, ":"); i > 0 {
			h = h[:i]
		}
		for _, ht := range coreTokens(h) {
			for _, ct := range cand {
				if tokensMatch(ct, ht) {
					return true
				}
			}
		}
	}
	return false
}
