// Package safety keeps interviewer scripts respondent-agnostic and on topic.
//
// Detection and rewriting are regex heuristics driven by the tables in
// rules.yaml. They are best-effort and will miss paraphrases; the guard is a
// consistency filter, not a security boundary.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"interviewlab/internal/knowledge"
)

// DefaultDriftThreshold is the research-question token overlap at or above
// which drift vocabulary is tolerated.
const DefaultDriftThreshold = 0.18

// ReasonPersonalReference is the only violation reason currently reported.
const ReasonPersonalReference = "personal_reference"

// Violation is one personal-reference match. SectionIndex is -1 for the
// opening, closing and wildcard fields.
type Violation struct {
	SectionIndex int    `json:"section_index"`
	Field        string `json:"field"`
	Reason       string `json:"reason"`
	Value        string `json:"value"`
}

// Result is the outcome of Enforce.
type Result struct {
	Script               *knowledge.InterviewScript `json:"script"`
	Status               string                     `json:"status"`
	Violations           []Violation                `json:"violations"`
	Redirects            int                        `json:"redirects"`
	TopicRedirectApplied bool                       `json:"topic_redirect_applied"`
}

// Guard validates and rewrites scripts. It is safe for concurrent use.
type Guard struct {
	driftThreshold float64
	rules          map[string]*ruleSet
}

// New returns a guard using the embedded rule tables. A non-positive
// threshold selects DefaultDriftThreshold.
func New(driftThreshold float64) (*Guard, error) {
	rules, err := parseRules(rulesYAML)
	if err != nil {
		return nil, err
	}
	if driftThreshold <= 0 {
		driftThreshold = DefaultDriftThreshold
	}
	return &Guard{driftThreshold: driftThreshold, rules: rules}, nil
}

// MustNew is New for package-level initialisation with known-good tables.
func MustNew(driftThreshold float64) *Guard {
	g, err := New(driftThreshold)
	if err != nil {
		panic(err)
	}
	return g
}

// Defaults returns the replacement texts for lang, falling back to English.
func (g *Guard) Defaults(lang string) Defaults {
	return g.ruleSet(lang).defaults
}

func (g *Guard) ruleSet(lang string) *ruleSet {
	if rs, ok := g.rules[knowledge.NormalizeLanguage(lang)]; ok {
		return rs
	}
	return g.rules[knowledge.LangEnglish]
}

// Validate reports every field that refers to a specific respondent, in any
// supported language. It does not modify the script.
func (g *Guard) Validate(s *knowledge.InterviewScript) []Violation {
	var out []Violation
	check := func(idx int, field, text string) {
		text = strings.TrimSpace(text)
		if text != "" && g.hasPersonalReference(text) {
			out = append(out, Violation{SectionIndex: idx, Field: field, Reason: ReasonPersonalReference, Value: text})
		}
	}
	check(-1, "opening_question", s.OpeningQuestion)
	check(-1, "closing_question", s.ClosingQuestion)
	check(-1, "wildcard", s.Wildcard)
	for i, sec := range s.Sections {
		check(i, "main_question", sec.MainQuestion)
		check(i, "context", sec.Context)
		for j, p := range sec.Probes {
			check(i, fmt.Sprintf("probes[%d]", j), p)
		}
	}
	return out
}

func (g *Guard) hasPersonalReference(text string) bool {
	for _, rs := range g.rules {
		for _, r := range rs.personal {
			if r.re.MatchString(text) {
				return true
			}
		}
	}
	return false
}

var spaceRe = regexp.MustCompile(`\s+`)

// sanitize rewrites personal references, project language first.
func (g *Guard) sanitize(text, lang string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	for _, rs := range languages(g.rules, knowledge.NormalizeLanguage(lang)) {
		for _, r := range rs.personal {
			text = r.apply(text)
		}
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// drifts reports whether text uses drift vocabulary while sharing too few
// tokens with the research question.
func (g *Guard) drifts(text, researchQuestion string) bool {
	rq := tokens(researchQuestion)
	if len(rq) > 0 && jaccard(rq, tokens(text)) >= g.driftThreshold {
		return false
	}
	for _, rs := range g.rules {
		for _, re := range rs.drift {
			if re.MatchString(text) {
				return true
			}
		}
	}
	return false
}

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

func tokens(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(t)) > 2 {
			out[t] = struct{}{}
		}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// enforcement accumulates what a single Enforce call changed.
type enforcement struct {
	g        *Guard
	rq       string
	lang     string
	def      Defaults
	changed  bool
	repaired bool
	redirect int
}

// field cleans one free-text field. replace supplies the text used when the
// field is empty or still personal after rewriting; redirect the text used
// when it drifts off topic.
func (e *enforcement) field(orig string, replace, redirect func() string) string {
	out := e.g.sanitize(orig, e.lang)
	if out == "" || e.g.hasPersonalReference(out) {
		out = replace()
		e.repaired = true
	}
	if e.g.drifts(out, e.rq) {
		if r := redirect(); r != out {
			out = r
			e.redirect++
		}
	}
	if out != strings.TrimSpace(orig) {
		e.changed = true
	}
	return out
}

// Enforce returns a respondent-agnostic, on-topic version of s. When nothing
// needs changing the returned script is s itself and the status is ok.
func (g *Guard) Enforce(s *knowledge.InterviewScript, researchQuestion string, props []knowledge.Proposition, lang string) Result {
	if s == nil {
		s = &knowledge.InterviewScript{}
	}
	violations := g.Validate(s)
	e := &enforcement{g: g, rq: researchQuestion, lang: lang, def: g.Defaults(lang)}
	byID := make(map[string]*knowledge.Proposition, len(props))
	for i := range props {
		byID[props[i].ID] = &props[i]
	}

	out := s.Clone()
	opening := func() string { return fmt.Sprintf(e.def.Opening, researchQuestion) }
	out.OpeningQuestion = e.field(s.OpeningQuestion, opening, opening)
	closing := func() string { return e.def.Closing }
	out.ClosingQuestion = e.field(s.ClosingQuestion, closing, closing)
	wildcard := func() string { return e.def.Wildcard }
	out.Wildcard = e.field(s.Wildcard, wildcard, wildcard)

	out.Sections = out.Sections[:0]
	for _, sec := range s.Sections {
		out.Sections = append(out.Sections, e.section(sec, byID[sec.PropositionID]))
	}

	fallback := false
	if len(out.Sections) == 0 {
		fallback = true
		e.changed = true
		out.Sections = []knowledge.ScriptSection{{
			PropositionID: knowledge.FallbackPropositionID,
			Priority:      knowledge.PriorityHigh,
			Instruction:   knowledge.InstructionExplore,
			MainQuestion:  opening(),
			Probes:        append([]string(nil), e.def.Probes...),
			Context:       e.def.FallbackContext,
		}}
	}

	res := Result{
		Violations:           violations,
		Redirects:            e.redirect,
		TopicRedirectApplied: e.redirect > 0,
	}
	switch {
	case fallback:
		res.Status = knowledge.SafetyFallback
	case len(violations) > 0 || e.repaired:
		res.Status = knowledge.SafetySanitized
	default:
		res.Status = knowledge.SafetyOK
	}
	if e.changed {
		res.Script = out
	} else {
		res.Script = s
	}
	return res
}

func (e *enforcement) section(sec knowledge.ScriptSection, prop *knowledge.Proposition) knowledge.ScriptSection {
	rq := e.rq
	mainFallback := func() string {
		if prop == nil {
			return fmt.Sprintf(e.def.Opening, rq)
		}
		return fmt.Sprintf(e.def.FactorQuestion, strings.ToLower(strings.TrimSpace(prop.Factor)))
	}
	sec.MainQuestion = e.field(sec.MainQuestion, mainFallback, func() string {
		return fmt.Sprintf(e.def.RedirectQuestion, rq)
	})

	safeContext := func() string {
		if prop == nil {
			return fmt.Sprintf(e.def.ContextUnbound, sec.PropositionID)
		}
		return fmt.Sprintf(e.def.Context, sec.PropositionID, prop.Factor, prop.Mechanism, prop.Outcome)
	}
	sec.Context = e.field(sec.Context, safeContext, safeContext)

	in := sec.Probes
	if len(in) > knowledge.MaxProbes {
		in = in[:knowledge.MaxProbes]
		e.repaired = true
		e.changed = true
	}
	var probes []string
	for _, p := range in {
		cleaned := e.g.sanitize(p, e.lang)
		if cleaned == "" || e.g.hasPersonalReference(cleaned) {
			e.repaired = true
			e.changed = true
			continue
		}
		if e.g.drifts(cleaned, rq) && cleaned != e.def.RedirectProbe {
			cleaned = e.def.RedirectProbe
			e.redirect++
		}
		if cleaned != strings.TrimSpace(p) {
			e.changed = true
		}
		if contains(probes, cleaned) {
			e.repaired = true
			e.changed = true
			continue
		}
		probes = append(probes, cleaned)
	}
	if len(probes) == 0 {
		probes = append([]string(nil), e.def.Probes...)
		e.repaired = true
		e.changed = true
	}
	sec.Probes = probes
	return sec
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
