package knowledge

import (
	"fmt"
	"strings"
)

// Priority of a script section.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority returns the priority named by s, or medium.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p
	}
	return PriorityMedium
}

// Instruction tells the interviewer how to treat a section's proposition.
type Instruction string

const (
	InstructionExplore   Instruction = "EXPLORE"
	InstructionVerify    Instruction = "VERIFY"
	InstructionChallenge Instruction = "CHALLENGE"
	InstructionSaturated Instruction = "SATURATED"
)

// ParseInstruction returns the instruction named by s, or EXPLORE.
func ParseInstruction(s string) Instruction {
	switch in := Instruction(strings.ToUpper(strings.TrimSpace(s))); in {
	case InstructionExplore, InstructionVerify, InstructionChallenge, InstructionSaturated:
		return in
	}
	return InstructionExplore
}

// Mode of the research project.
type Mode string

const (
	ModeDivergent  Mode = "divergent"
	ModeConvergent Mode = "convergent"
)

// ParseMode returns the mode named by s, or divergent.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeConvergent {
		return ModeConvergent
	}
	return ModeDivergent
}

// MaxProbes is the number of probes a section may carry.
const MaxProbes = 3

// FallbackPropositionID marks sections not bound to a stored proposition.
const FallbackPropositionID = "P000"

// ScriptSection is one proposition-focused block of the interview script.
type ScriptSection struct {
	PropositionID string      `json:"proposition_id" yaml:"proposition_id"`
	Priority      Priority    `json:"priority" yaml:"priority"`
	Instruction   Instruction `json:"instruction" yaml:"instruction"`
	MainQuestion  string      `json:"main_question" yaml:"main_question"`
	Probes        []string    `json:"probes" yaml:"probes"`
	Context       string      `json:"context" yaml:"context"`
}

// InterviewScript is an immutable, versioned interviewer script.
type InterviewScript struct {
	Version                 int             `json:"version" yaml:"version"`
	GeneratedAfterInterview string          `json:"generated_after_interview,omitempty" yaml:"generated_after_interview,omitempty"`
	ResearchQuestion        string          `json:"research_question" yaml:"research_question"`
	OpeningQuestion         string          `json:"opening_question" yaml:"opening_question"`
	Sections                []ScriptSection `json:"sections" yaml:"sections"`
	ClosingQuestion         string          `json:"closing_question" yaml:"closing_question"`
	Wildcard                string          `json:"wildcard" yaml:"wildcard"`
	Mode                    Mode            `json:"mode" yaml:"mode"`
	ConvergenceScore        float64         `json:"convergence_score" yaml:"convergence_score"`
	NoveltyRate             float64         `json:"novelty_rate" yaml:"novelty_rate"`
	ChangesSummary          string          `json:"changes_summary" yaml:"changes_summary"`
}

// Clone returns a deep copy of the script.
func (s *InterviewScript) Clone() *InterviewScript {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Sections = make([]ScriptSection, len(s.Sections))
	for i, sec := range s.Sections {
		sec.Probes = append([]string(nil), sec.Probes...)
		cp.Sections[i] = sec
	}
	return &cp
}

// MinimalScript builds the deterministic script used when no designer output
// is available: one EXPLORE section per active proposition, at most maxSections.
func MinimalScript(researchQuestion string, props []Proposition, metrics Metrics, version, maxSections int) *InterviewScript {
	var sections []ScriptSection
	for _, p := range props {
		if p.Status.Inactive() {
			continue
		}
		if maxSections > 0 && len(sections) >= maxSections {
			break
		}
		prio := PriorityMedium
		if len(sections) == 0 {
			prio = PriorityHigh
		}
		sections = append(sections, ScriptSection{
			PropositionID: p.ID,
			Priority:      prio,
			Instruction:   InstructionExplore,
			MainQuestion:  fmt.Sprintf("Could you tell me more about %s?", strings.ToLower(p.Factor)),
			Probes:        []string{"Can you give a concrete example?", "What happened next?"},
			Context:       "Minimal section",
		})
	}
	return &InterviewScript{
		Version:          version,
		ResearchQuestion: researchQuestion,
		OpeningQuestion:  "Could you share your overall experience so far?",
		Sections:         sections,
		ClosingQuestion:  "What surprised you most about this experience?",
		Wildcard:         "Is there anything important I have not asked about?",
		Mode:             metrics.Mode,
		ConvergenceScore: metrics.ConvergenceScore,
		NoveltyRate:      metrics.NoveltyRate,
		ChangesSummary:   "Minimal script generated",
	}
}
