package designer

import (
	"interviewlab/internal/knowledge"
	"interviewlab/internal/payload"
)

// Script defaults used when the designer output omits a field.
const (
	DefaultOpening        = "Could you share your experience so far?"
	DefaultClosing        = "What surprised you most about this experience?"
	DefaultWildcard       = "Is there anything important I have not asked about?"
	DefaultMainQuestion   = "Could you tell me more?"
	DefaultChangesSummary = "Script updated"
)

// ParseScript coerces a designer script object. The research question and
// version are imposed by the caller; sections beyond limit are dropped.
func ParseScript(o payload.Object, researchQuestion string, version, limit int) *knowledge.InterviewScript {
	s := &knowledge.InterviewScript{
		Version:                 version,
		GeneratedAfterInterview: o.String("generated_after_interview", ""),
		ResearchQuestion:        researchQuestion,
		OpeningQuestion:         o.String("opening_question", DefaultOpening),
		ClosingQuestion:         o.String("closing_question", DefaultClosing),
		Wildcard:                o.String("wildcard", DefaultWildcard),
		Mode:                    knowledge.ParseMode(o.String("mode", "")),
		ConvergenceScore:        knowledge.Clamp01(o.Float("convergence_score", 0)),
		NoveltyRate:             knowledge.Clamp01(o.Float("novelty_rate", 1)),
		ChangesSummary:          o.String("changes_summary", DefaultChangesSummary),
	}
	for _, it := range o.Objects("sections") {
		if limit > 0 && len(s.Sections) >= limit {
			break
		}
		probes := it.Strings("probes")
		if len(probes) > knowledge.MaxProbes {
			probes = probes[:knowledge.MaxProbes]
		}
		pid := it.String("proposition_id", "")
		if pid == "" {
			pid = knowledge.FallbackPropositionID
		}
		s.Sections = append(s.Sections, knowledge.ScriptSection{
			PropositionID: pid,
			Priority:      knowledge.ParsePriority(it.String("priority", "")),
			Instruction:   knowledge.ParseInstruction(it.String("instruction", "")),
			MainQuestion:  it.String("main_question", DefaultMainQuestion),
			Probes:        probes,
			Context:       it.String("context", ""),
		})
	}
	return s
}

// Coverage is the aggregate evidence picture of one proposition.
type Coverage struct {
	ID              string                      `json:"id"`
	Factor          string                      `json:"factor"`
	Mechanism       string                      `json:"mechanism"`
	Outcome         string                      `json:"outcome"`
	Status          knowledge.PropositionStatus `json:"status"`
	Confidence      float64                     `json:"confidence"`
	SupportCount    int                         `json:"support_count"`
	ContradictCount int                         `json:"contradict_count"`
}

// Briefing summarises the evidence base without quoting any respondent.
type Briefing struct {
	TotalEvidence           int        `json:"total_evidence"`
	InterviewsCount         int        `json:"interviews_count"`
	UnassignedEvidenceCount int        `json:"unassigned_evidence_count"`
	PropositionCoverage     []Coverage `json:"proposition_coverage"`
	Note                    string     `json:"note"`
}

// BuildBriefing counts evidence per proposition and the evidence that no
// proposition confirmed.
func BuildBriefing(props []knowledge.Proposition, evidence []knowledge.Evidence) Briefing {
	b := Briefing{
		PropositionCoverage: []Coverage{},
		Note:                "Briefing is aggregate only; no respondent-specific quotes or personal references.",
	}
	mapped := map[string]bool{}
	for _, p := range props {
		c := Coverage{
			ID: p.ID, Factor: p.Factor, Mechanism: p.Mechanism, Outcome: p.Outcome,
			Status: p.Status, Confidence: p.Confidence,
		}
		for _, id := range p.SupportingEvidence {
			if id != "" {
				c.SupportCount++
				mapped[id] = true
			}
		}
		for _, id := range p.ContradictingEvidence {
			if id != "" {
				c.ContradictCount++
				mapped[id] = true
			}
		}
		b.PropositionCoverage = append(b.PropositionCoverage, c)
	}
	interviews := map[string]bool{}
	for _, e := range evidence {
		if e.InterviewID != "" {
			interviews[e.InterviewID] = true
		}
		if e.ID == "" {
			continue
		}
		b.TotalEvidence++
		if !mapped[e.ID] {
			b.UnassignedEvidenceCount++
		}
	}
	b.InterviewsCount = len(interviews)
	return b
}

