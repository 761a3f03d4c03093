package safety

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"interviewlab/internal/knowledge"
)

//go:embed rules.yaml
var rulesYAML []byte

type ruleFile map[string]languageSpec

type languageSpec struct {
	Personal []struct {
		Pattern     string `yaml:"pattern"`
		Replacement string `yaml:"replacement"`
	} `yaml:"personal"`
	Drift    []string `yaml:"drift"`
	Defaults Defaults `yaml:"defaults"`
}

// Defaults are the deterministic replacement texts of one language.
type Defaults struct {
	Opening          string   `yaml:"opening"`
	Closing          string   `yaml:"closing"`
	Wildcard         string   `yaml:"wildcard"`
	Probes           []string `yaml:"probes"`
	RedirectQuestion string   `yaml:"redirect_question"`
	RedirectProbe    string   `yaml:"redirect_probe"`
	FactorQuestion   string   `yaml:"factor_question"`
	Context          string   `yaml:"context"`
	ContextUnbound   string   `yaml:"context_unbound"`
	FallbackContext  string   `yaml:"fallback_context"`
}

// rewrite is a personal-reference pattern with an optional aggregate-safe
// replacement. Group 2 of re is the phrase itself.
type rewrite struct {
	re          *regexp.Regexp
	replacement string
}

type ruleSet struct {
	lang     string
	personal []rewrite
	drift    []*regexp.Regexp
	defaults Defaults
}

// Go's \b is ASCII-only, so phrases are framed by explicit non-letter groups.
func phrase(fragment string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)(^|[^\p{L}\p{N}_])(` + fragment + `)($|[^\p{L}\p{N}_])`)
}

func parseRules(data []byte) (map[string]*ruleSet, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse safety rules: %w", err)
	}
	out := make(map[string]*ruleSet, len(file))
	for lang, spec := range file {
		rs := &ruleSet{lang: lang, defaults: spec.Defaults}
		for _, p := range spec.Personal {
			re, err := phrase(p.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%s personal pattern %q: %w", lang, p.Pattern, err)
			}
			rs.personal = append(rs.personal, rewrite{re: re, replacement: p.Replacement})
		}
		for _, d := range spec.Drift {
			re, err := phrase(d)
			if err != nil {
				return nil, fmt.Errorf("%s drift pattern %q: %w", lang, d, err)
			}
			rs.drift = append(rs.drift, re)
		}
		if len(rs.defaults.Probes) == 0 || rs.defaults.Opening == "" {
			return nil, fmt.Errorf("%s: incomplete defaults", lang)
		}
		out[lang] = rs
	}
	for _, lang := range knowledge.SupportedLanguages {
		if out[lang] == nil {
			return nil, fmt.Errorf("no safety rules for language %q", lang)
		}
	}
	return out, nil
}

// apply rewrites every match of r in s, keeping the case of the first letter.
func (r rewrite) apply(s string) string {
	if r.replacement == "" {
		return s
	}
	var b strings.Builder
	last, pos := 0, 0
	for pos <= len(s) {
		m := r.re.FindStringSubmatchIndex(s[pos:])
		if m == nil {
			break
		}
		start, end := pos+m[4], pos+m[5]
		b.WriteString(s[last:start])
		b.WriteString(matchCase(r.replacement, s[start:end]))
		last = end
		// resume at the end of the phrase so a shared boundary can start the next match
		if end == pos {
			pos++
		} else {
			pos = end
		}
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

func matchCase(replacement, matched string) string {
	first, _ := utf8.DecodeRuneInString(matched)
	r, size := utf8.DecodeRuneInString(replacement)
	if unicode.IsUpper(first) {
		return string(unicode.ToUpper(r)) + replacement[size:]
	}
	return string(unicode.ToLower(r)) + replacement[size:]
}

// languages returns the rule sets with lang first and the rest in name order.
func languages(all map[string]*ruleSet, lang string) []*ruleSet {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == lang) != (names[j] == lang) {
			return names[i] == lang
		}
		return names[i] < names[j]
	})
	out := make([]*ruleSet, len(names))
	for i, n := range names {
		out[i] = all[n]
	}
	return out
}
