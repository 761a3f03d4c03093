// Package knowledge holds the project knowledge store: evidence, propositions,
// interviews and script versions, plus the invariants that keep them consistent.
package knowledge

import (
	"errors"
	"strings"
	"time"
)

// ErrUnknownLanguage is returned when a project is created with a language
// that has no stopword, safety or prompt tables.
var ErrUnknownLanguage = errors.New("unsupported language")

// Supported project languages.
const (
	LangEnglish = "en"
	LangRussian = "ru"
)

// SupportedLanguages lists every language the engine has tables for.
var SupportedLanguages = []string{LangEnglish, LangRussian}

// NormalizeLanguage lower-cases a language tag and reduces "en-US" style tags
// to their primary subtag. Empty input yields "".
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// IsSupportedLanguage reports whether lang (normalised) has engine tables.
func IsSupportedLanguage(lang string) bool {
	lang = NormalizeLanguage(lang)
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// TranslationStatus tracks the English rendition of an evidence quote.
type TranslationStatus string

const (
	TranslationNativeEN   TranslationStatus = "native_en"
	TranslationTranslated TranslationStatus = "translated"
	TranslationPending    TranslationStatus = "pending"
	TranslationFailed     TranslationStatus = "failed"
)

// PropositionStatus is the lifecycle state of a hypothesis.
type PropositionStatus string

const (
	StatusUntested   PropositionStatus = "untested"
	StatusExploring  PropositionStatus = "exploring"
	StatusConfirmed  PropositionStatus = "confirmed"
	StatusChallenged PropositionStatus = "challenged"
	StatusSaturated  PropositionStatus = "saturated"
	StatusWeak       PropositionStatus = "weak"
	StatusMerged     PropositionStatus = "merged"
)

// PropositionStatuses lists every valid status in legend order.
var PropositionStatuses = []PropositionStatus{
	StatusUntested, StatusExploring, StatusConfirmed, StatusChallenged,
	StatusSaturated, StatusWeak, StatusMerged,
}

// ParsePropositionStatus returns the status named by s, or def when s is not
// a known status.
func ParsePropositionStatus(s string, def PropositionStatus) PropositionStatus {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range PropositionStatuses {
		if string(st) == s {
			return st
		}
	}
	return def
}

// Inactive reports whether the proposition no longer takes part in linking
// and script generation.
func (s PropositionStatus) Inactive() bool {
	return s == StatusWeak || s == StatusMerged
}

// Relationship is the analyst-confirmed link kind between evidence and a proposition.
type Relationship string

const (
	Supports    Relationship = "supports"
	Contradicts Relationship = "contradicts"
)

// Evidence is one quote-derived observation tied to a single interview.
// Only the translation fields change after the evidence is accepted.
type Evidence struct {
	ID                string            `json:"id" yaml:"id"`
	InterviewID       string            `json:"interview_id" yaml:"interview_id"`
	Quote             string            `json:"quote" yaml:"quote"`
	QuoteEnglish      *string           `json:"quote_english,omitempty" yaml:"quote_english,omitempty"`
	TranslationStatus TranslationStatus `json:"translation_status" yaml:"translation_status"`
	Interpretation    string            `json:"interpretation" yaml:"interpretation"`
	Factor            string            `json:"factor" yaml:"factor"`
	Mechanism         string            `json:"mechanism" yaml:"mechanism"`
	Outcome           string            `json:"outcome" yaml:"outcome"`
	Tags              []string          `json:"tags" yaml:"tags"`
	Language          string            `json:"language" yaml:"language"`
	Timestamp         time.Time         `json:"timestamp" yaml:"timestamp"`
}

// EnglishQuote returns the translated quote when present, otherwise the raw quote.
func (e *Evidence) EnglishQuote() string {
	if e.QuoteEnglish != nil && strings.TrimSpace(*e.QuoteEnglish) != "" {
		return *e.QuoteEnglish
	}
	return e.Quote
}

// Proposition is a factor -> mechanism -> outcome hypothesis.
type Proposition struct {
	ID                           string            `json:"id" yaml:"id"`
	Factor                       string            `json:"factor" yaml:"factor"`
	Mechanism                    string            `json:"mechanism" yaml:"mechanism"`
	Outcome                      string            `json:"outcome" yaml:"outcome"`
	Confidence                   float64           `json:"confidence" yaml:"confidence"`
	Status                       PropositionStatus `json:"status" yaml:"status"`
	SupportingEvidence           []string          `json:"supporting_evidence" yaml:"supporting_evidence"`
	ContradictingEvidence        []string          `json:"contradicting_evidence" yaml:"contradicting_evidence"`
	HeuristicSupportingEvidence  []string          `json:"heuristic_supporting_evidence" yaml:"heuristic_supporting_evidence"`
	FirstSeenInterview           int               `json:"first_seen_interview" yaml:"first_seen_interview"`
	LastUpdatedInterview         int               `json:"last_updated_interview" yaml:"last_updated_interview"`
	InterviewsWithoutNewEvidence int               `json:"interviews_without_new_evidence" yaml:"interviews_without_new_evidence"`
	MergedInto                   string            `json:"merged_into,omitempty" yaml:"merged_into,omitempty"`
}

// ConfirmedCount is the number of analyst-confirmed evidence links.
func (p *Proposition) ConfirmedCount() int {
	return len(p.SupportingEvidence) + len(p.ContradictingEvidence)
}

// IsConfirmed reports whether evidenceID is in the supporting or contradicting set.
func (p *Proposition) IsConfirmed(evidenceID string) bool {
	return contains(p.SupportingEvidence, evidenceID) || contains(p.ContradictingEvidence, evidenceID)
}

// Link records a confirmed relationship. The evidence id leaves the opposite
// set and the heuristic suggestions so the three sets stay disjoint.
func (p *Proposition) Link(evidenceID string, rel Relationship) bool {
	switch rel {
	case Supports:
		p.SupportingEvidence = appendUnique(p.SupportingEvidence, evidenceID)
		p.ContradictingEvidence = remove(p.ContradictingEvidence, evidenceID)
	case Contradicts:
		p.ContradictingEvidence = appendUnique(p.ContradictingEvidence, evidenceID)
		p.SupportingEvidence = remove(p.SupportingEvidence, evidenceID)
	default:
		return false
	}
	p.HeuristicSupportingEvidence = remove(p.HeuristicSupportingEvidence, evidenceID)
	return true
}

// FMO returns the factor, mechanism and outcome joined by spaces.
func (p *Proposition) FMO() string {
	return p.Factor + " " + p.Mechanism + " " + p.Outcome
}

// Interview is one processed transcript.
type Interview struct {
	ID             string         `json:"id" yaml:"id"`
	ConversationID string         `json:"conversation_id" yaml:"conversation_id"`
	Transcript     string         `json:"transcript" yaml:"transcript"`
	Language       string         `json:"language,omitempty" yaml:"language,omitempty"`
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at"`
	Metadata       map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func appendUnique(list []string, id string) []string {
	if contains(list, id) {
		return list
	}
	return append(list, id)
}

func remove(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
