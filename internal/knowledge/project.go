package knowledge

import (
	"fmt"
	"time"
)

// ProjectStatus is the research project lifecycle state:
// draft -> running -> reporting -> done, with running re-entered on new interviews.
type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectRunning   ProjectStatus = "running"
	ProjectReporting ProjectStatus = "reporting"
	ProjectDone      ProjectStatus = "done"
)

// Script safety statuses recorded on the project.
const (
	SafetyOK        = "ok"
	SafetySanitized = "sanitized"
	SafetyFallback  = "fallback"
)

// Report generation modes.
const (
	ReportModeLLM      = "llm"
	ReportModeFallback = "fallback"
)

// Metrics are the aggregate convergence indicators reported by the analyst.
type Metrics struct {
	ConvergenceScore float64 `json:"convergence_score" yaml:"convergence_score"`
	NoveltyRate      float64 `json:"novelty_rate" yaml:"novelty_rate"`
	Mode             Mode    `json:"mode" yaml:"mode"`
}

// DefaultMetrics is the state of a project with no analysed interviews.
func DefaultMetrics() Metrics {
	return Metrics{ConvergenceScore: 0, NoveltyRate: 1, Mode: ModeDivergent}
}

// ProjectState is the whole mutable knowledge store of one research project.
// It is loaded at the start of a run, mutated in memory and saved once.
type ProjectState struct {
	ID               string        `json:"id"`
	ResearchQuestion string        `json:"research_question"`
	Language         string        `json:"language"`
	CreatedAt        time.Time     `json:"created_at"`
	InitialAngles    []string      `json:"initial_angles"`
	AgentID          string        `json:"agent_id,omitempty"`
	Status           ProjectStatus `json:"status"`

	Evidence     []Evidence        `json:"evidence_store"`
	Propositions []Proposition     `json:"proposition_store"`
	Interviews   []Interview       `json:"interview_store"`
	Scripts      []InterviewScript `json:"script_versions"`

	ProcessedConversationIDs []string `json:"processed_conversation_ids"`
	Metrics                  Metrics  `json:"metrics"`

	SyncPending              bool       `json:"sync_pending"`
	SyncPendingScriptVersion int        `json:"sync_pending_script_version,omitempty"`
	LastPromptUpdateAt       *time.Time `json:"last_prompt_update_at,omitempty"`

	PromptSafetyStatus     string `json:"prompt_safety_status"`
	PromptSafetyViolations int    `json:"prompt_safety_violations_count"`

	ReportMarkdown       string     `json:"report_markdown,omitempty"`
	ReportGeneratedAt    *time.Time `json:"report_generated_at,omitempty"`
	ReportStale          bool       `json:"report_stale"`
	ReportGenerationMode string     `json:"report_generation_mode,omitempty"`
	ReportFallbackReason string     `json:"report_fallback_reason,omitempty"`
}

// NewProject returns a draft project.
func NewProject(id, researchQuestion, language string, now time.Time) *ProjectState {
	if language == "" {
		language = LangEnglish
	}
	return &ProjectState{
		ID:                 id,
		ResearchQuestion:   researchQuestion,
		Language:           NormalizeLanguage(language),
		CreatedAt:          now.UTC(),
		Status:             ProjectDraft,
		Metrics:            DefaultMetrics(),
		PromptSafetyStatus: SafetyOK,
	}
}

// CurrentScript returns the latest script version, or nil.
func (p *ProjectState) CurrentScript() *InterviewScript {
	if len(p.Scripts) == 0 {
		return nil
	}
	return &p.Scripts[len(p.Scripts)-1]
}

// NextScriptVersion is 1 for a project without scripts, else latest + 1.
func (p *ProjectState) NextScriptVersion() int {
	if cur := p.CurrentScript(); cur != nil {
		return cur.Version + 1
	}
	return 1
}

// IsProcessed reports whether conversationID is already in the dedup ledger.
func (p *ProjectState) IsProcessed(conversationID string) bool {
	return contains(p.ProcessedConversationIDs, conversationID)
}

// FindEvidence returns a pointer into the evidence store, or nil.
func (p *ProjectState) FindEvidence(id string) *Evidence {
	for i := range p.Evidence {
		if p.Evidence[i].ID == id {
			return &p.Evidence[i]
		}
	}
	return nil
}

// FindProposition returns a pointer into the proposition store, or nil.
func (p *ProjectState) FindProposition(id string) *Proposition {
	for i := range p.Propositions {
		if p.Propositions[i].ID == id {
			return &p.Propositions[i]
		}
	}
	return nil
}

// NextInterviewID returns the next sequential interview id.
func (p *ProjectState) NextInterviewID() string {
	return nextID("INT_", len(p.Interviews), func(id string) bool {
		for _, in := range p.Interviews {
			if in.ID == id {
				return true
			}
		}
		return false
	})
}

// NextEvidenceID returns the next sequential evidence id not already taken.
func (p *ProjectState) NextEvidenceID() string {
	return nextID("E", len(p.Evidence), func(id string) bool { return p.FindEvidence(id) != nil })
}

// NextPropositionID returns the next sequential proposition id not already taken.
func (p *ProjectState) NextPropositionID() string {
	return nextID("P", len(p.Propositions), func(id string) bool { return p.FindProposition(id) != nil })
}

func nextID(prefix string, size int, taken func(string) bool) string {
	for n := size + 1; ; n++ {
		id := fmt.Sprintf("%s%03d", prefix, n)
		if !taken(id) {
			return id
		}
	}
}

// AddEvidence stores e, assigning a fresh id when it has none or its id is
// already taken, and fills the English quote for English evidence.
func (p *ProjectState) AddEvidence(e Evidence) *Evidence {
	if e.ID == "" || p.FindEvidence(e.ID) != nil {
		e.ID = p.NextEvidenceID()
	}
	if e.QuoteEnglish == nil || *e.QuoteEnglish == "" {
		e.QuoteEnglish = nil
		if NormalizeLanguage(e.Language) == LangEnglish {
			q := e.Quote
			e.QuoteEnglish = &q
			e.TranslationStatus = TranslationNativeEN
		} else {
			e.TranslationStatus = TranslationPending
		}
	}
	if e.TranslationStatus == "" {
		e.TranslationStatus = TranslationTranslated
	}
	e.Tags = append([]string(nil), e.Tags...)
	p.Evidence = append(p.Evidence, e)
	return &p.Evidence[len(p.Evidence)-1]
}

// AddProposition stores prop, assigning a fresh id when missing or colliding.
// Evidence links are rebuilt through Link against stored evidence: unknown ids
// are dropped and a contradicting entry supersedes a supporting one.
func (p *ProjectState) AddProposition(prop Proposition) *Proposition {
	if prop.ID == "" || p.FindProposition(prop.ID) != nil {
		prop.ID = p.NextPropositionID()
	}
	sup, con, heur := prop.SupportingEvidence, prop.ContradictingEvidence, prop.HeuristicSupportingEvidence
	prop.SupportingEvidence, prop.ContradictingEvidence, prop.HeuristicSupportingEvidence = nil, nil, nil
	for _, id := range sup {
		if p.FindEvidence(id) != nil {
			prop.Link(id, Supports)
		}
	}
	for _, id := range con {
		if p.FindEvidence(id) != nil {
			prop.Link(id, Contradicts)
		}
	}
	for _, id := range heur {
		if p.FindEvidence(id) != nil && !contains(prop.SupportingEvidence, id) && !contains(prop.ContradictingEvidence, id) {
			prop.HeuristicSupportingEvidence = appendUnique(prop.HeuristicSupportingEvidence, id)
		}
	}
	if prop.Status == "" {
		prop.Status = StatusUntested
	}
	prop.Confidence = Clamp01(prop.Confidence)
	p.Propositions = append(p.Propositions, prop)
	return &p.Propositions[len(p.Propositions)-1]
}

// SetTranslation records an English rendition for a stored evidence quote.
func (p *ProjectState) SetTranslation(evidenceID, english string) error {
	e := p.FindEvidence(evidenceID)
	if e == nil {
		return fmt.Errorf("evidence %s not found", evidenceID)
	}
	if english == "" {
		e.QuoteEnglish = nil
		e.TranslationStatus = TranslationFailed
		return nil
	}
	e.QuoteEnglish = &english
	e.TranslationStatus = TranslationTranslated
	return nil
}

// EvidenceLinks maps every evidence id to the ids of propositions that
// confirmed it (supporting or contradicting).
func (p *ProjectState) EvidenceLinks() map[string][]string {
	links := make(map[string][]string, len(p.Evidence))
	for _, e := range p.Evidence {
		links[e.ID] = nil
	}
	for _, prop := range p.Propositions {
		for _, ids := range [][]string{prop.SupportingEvidence, prop.ContradictingEvidence} {
			for _, id := range ids {
				if _, ok := links[id]; ok {
					links[id] = appendUnique(links[id], prop.ID)
				}
			}
		}
	}
	return links
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Stats is the aggregate snapshot emitted after every processing run.
type Stats struct {
	ProjectID               string        `json:"project_id"`
	Status                  ProjectStatus `json:"status"`
	Participants            int           `json:"participants"`
	InterviewsCount         int           `json:"interviews_count"`
	EvidenceCount           int           `json:"evidence_count"`
	PropositionsCount       int           `json:"propositions_count"`
	ActivePropositionsCount int           `json:"active_propositions_count"`
	ScriptVersion           int           `json:"script_version"`
	ConvergenceScore        float64       `json:"convergence_score"`
	NoveltyRate             float64       `json:"novelty_rate"`
	Mode                    Mode          `json:"mode"`
	ReportStale             bool          `json:"report_stale"`
	ReportGenerationMode    string        `json:"report_generation_mode,omitempty"`
	ReportFallbackReason    string        `json:"report_fallback_reason,omitempty"`
	SyncPending             bool          `json:"sync_pending"`
	PromptSafetyStatus      string        `json:"prompt_safety_status"`
	PromptSafetyViolations  int           `json:"prompt_safety_violations_count"`
}

// Stats summarises the project.
func (p *ProjectState) Stats() Stats {
	active := 0
	for _, prop := range p.Propositions {
		if !prop.Status.Inactive() {
			active++
		}
	}
	version := 0
	if cur := p.CurrentScript(); cur != nil {
		version = cur.Version
	}
	return Stats{
		ProjectID:               p.ID,
		Status:                  p.Status,
		Participants:            len(p.Interviews),
		InterviewsCount:         len(p.Interviews),
		EvidenceCount:           len(p.Evidence),
		PropositionsCount:       len(p.Propositions),
		ActivePropositionsCount: active,
		ScriptVersion:           version,
		ConvergenceScore:        p.Metrics.ConvergenceScore,
		NoveltyRate:             p.Metrics.NoveltyRate,
		Mode:                    p.Metrics.Mode,
		ReportStale:             p.ReportStale,
		ReportGenerationMode:    p.ReportGenerationMode,
		ReportFallbackReason:    p.ReportFallbackReason,
		SyncPending:             p.SyncPending,
		PromptSafetyStatus:      p.PromptSafetyStatus,
		PromptSafetyViolations:  p.PromptSafetyViolations,
	}
}
