// Package linking computes non-authoritative evidence-to-proposition
// suggestions and candidate clusters of unlinked evidence from structural
// text features. It never calls a model and is a pure function of the
// project state.
package linking

import (
	"regexp"
	"strings"
	"unicode"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// stopwords covers both supported languages; tokens are matched lower-cased.
var stopwords = toSet([]string{
	"the", "and", "for", "with", "from", "that", "this", "into", "about",
	"your", "their", "have", "were", "was", "are", "not", "but", "you",
	"they", "them", "our", "ours", "its", "had", "has", "been", "just",
	"very", "more", "less", "some", "such", "than", "then", "also", "over",
	"under", "made", "make", "using", "used", "when", "what", "where",
	"while", "a", "an", "of", "to",

	"это", "как", "что", "для", "при", "они", "она", "его",
	"мне", "мой", "мои", "все", "или", "уже", "так", "тоже",
	"вот", "где", "там", "тут", "ещё", "был", "была", "были",
	"быть", "очень", "когда", "если", "чтобы", "этот", "эта",
	"эти", "тот", "того", "между", "через", "после", "перед",
	"более", "менее", "также", "только", "можно", "нужно",
	"надо", "потому", "самый", "самая", "самое",
})

type set map[string]struct{}

func toSet(items []string) set {
	s := make(set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s set) union(o set) set {
	out := make(set, len(s)+len(o))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range o {
		out[k] = struct{}{}
	}
	return out
}

// Tokenize lower-cases text and returns its word tokens longer than two
// runes, excluding stopwords and pure numbers.
func Tokenize(text string) []string {
	seen := tokenSet(text)
	out := make([]string, 0, len(seen))
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if _, ok := seen[w]; ok {
			out = append(out, w)
			delete(seen, w)
		}
	}
	return out
}

func tokenSet(text string) set {
	s := set{}
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(w)) <= 2 || isDigits(w) {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		s[w] = struct{}{}
	}
	return s
}

func isDigits(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when both are empty.
func Jaccard(a, b []string) float64 {
	return jaccard(toSet(a), toSet(b))
}

func jaccard(a, b set) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
