package synthesis

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"interviewlab/internal/knowledge"
)

// ErrUngrounded is returned when a report quotes text that is not in the
// evidence base.
var ErrUngrounded = errors.New("report quotes text not found in evidence")

// minQuoteWords skips short quoted terms such as "scope".
const minQuoteWords = 3

var (
	originalMarker = regexp.MustCompile(`\[original:\s*["“«]([^"”»\n]+)["”»]\s*\]`)
	quoted         = regexp.MustCompile(`"([^"\n]+)"|“([^”\n]+)”|«([^»\n]+)»`)
	nonWord        = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// CheckGrounding verifies every quotation in report. Text inside an
// [original: "..."] marker must come from a raw evidence quote; any other
// quotation must come from an English rendition. The error never repeats the
// offending text.
func CheckGrounding(report string, evidence []knowledge.Evidence) error {
	var originals, english []string
	for i := range evidence {
		originals = append(originals, normalize(evidence[i].Quote))
		english = append(english, normalize(evidence[i].EnglishQuote()))
	}

	bad := 0
	for _, m := range originalMarker.FindAllStringSubmatch(report, -1) {
		if !found(m[1], originals) {
			bad++
		}
	}
	rest := originalMarker.ReplaceAllString(report, " ")
	for _, m := range quoted.FindAllStringSubmatch(rest, -1) {
		if !found(m[1]+m[2]+m[3], english) {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%w: %d quotation(s)", ErrUngrounded, bad)
	}
	return nil
}

func found(quote string, corpus []string) bool {
	q := normalize(quote)
	if len(strings.Fields(q)) < minQuoteWords {
		return true
	}
	for _, c := range corpus {
		if strings.Contains(c, q) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.TrimSpace(nonWord.ReplaceAllString(strings.ToLower(s), " "))
}
