// Package designer produces versioned interview scripts and renders them into
// the system prompt of the voice interviewer.
package designer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"interviewlab/internal/analyst"
	"interviewlab/internal/knowledge"
	"interviewlab/internal/llm"
	"interviewlab/internal/logging"
	"interviewlab/internal/payload"
)

//go:embed designer_system.txt
var systemPrompt string

// DefaultMaxSections bounds the number of sections in a script.
const DefaultMaxSections = 8

// Chatter is the part of the LLM client a designer needs.
type Chatter interface {
	ChatJSON(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (map[string]any, error)
}

// LLM designs scripts with a chat-completions model.
type LLM struct {
	chat  Chatter
	model string
}

// NewLLM returns a designer backed by chat.
func NewLLM(chat Chatter, model string) *LLM {
	return &LLM{chat: chat, model: model}
}

type initialInput struct {
	Task             string   `json:"task"`
	ResearchQuestion string   `json:"research_question"`
	Language         string   `json:"language"`
	InitialAngles    []string `json:"initial_angles"`
	MaxSections      int      `json:"max_sections"`
}

type updateInput struct {
	Task             string                     `json:"task"`
	ResearchQuestion string                     `json:"research_question"`
	Language         string                     `json:"language"`
	Propositions     []knowledge.Proposition    `json:"propositions"`
	EvidenceBriefing Briefing                   `json:"evidence_briefing"`
	PreviousScript   *knowledge.InterviewScript `json:"previous_script"`
	Metrics          knowledge.Metrics          `json:"metrics"`
	MaxSections      int                        `json:"max_sections"`
}

// InitialScript proposes the starting propositions and the version 1 script.
func (d *LLM) InitialScript(ctx context.Context, req knowledge.DesignRequest) ([]knowledge.Proposition, *knowledge.InterviewScript, error) {
	limit := maxSections(req.MaxSections)
	angles := req.InitialAngles
	if angles == nil {
		angles = []string{}
	}
	raw, err := d.ask(ctx, initialInput{
		Task:             "Generate initial propositions and first interview script",
		ResearchQuestion: req.ResearchQuestion,
		Language:         req.Language,
		InitialAngles:    angles,
		MaxSections:      limit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initial script: %w", err)
	}
	items := raw.Objects("propositions")
	if len(items) == 0 {
		items = raw.Objects("new_propositions")
	}
	props := analyst.Propositions(items, 0)
	script := ParseScript(scriptObject(raw), req.ResearchQuestion, 1, limit)
	logging.ForProject("designer", req.ProjectID).Info("initial script designed",
		"propositions", len(props), "sections", len(script.Sections))
	return props, script, nil
}

// UpdateScript designs the next script version from the current project state.
// Respondent quotes never reach the model; it sees an aggregate briefing.
func (d *LLM) UpdateScript(ctx context.Context, req knowledge.DesignRequest) (*knowledge.InterviewScript, error) {
	limit := maxSections(req.MaxSections)
	props := req.Propositions
	if props == nil {
		props = []knowledge.Proposition{}
	}
	raw, err := d.ask(ctx, updateInput{
		Task:             "Update interview script based on current state",
		ResearchQuestion: req.ResearchQuestion,
		Language:         req.Language,
		Propositions:     props,
		EvidenceBriefing: BuildBriefing(req.Propositions, req.Evidence),
		PreviousScript:   req.Previous,
		Metrics:          req.Metrics,
		MaxSections:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("update script: %w", err)
	}
	version := req.Version
	if version <= 0 {
		version = 1
		if req.Previous != nil {
			version = req.Previous.Version + 1
		}
	}
	return ParseScript(scriptObject(raw), req.ResearchQuestion, version, limit), nil
}

func (d *LLM) ask(ctx context.Context, in any) (payload.Object, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal designer input: %w", err)
	}
	raw, err := d.chat.ChatJSON(ctx,
		[]llm.Message{llm.System(systemPrompt), llm.User(string(body))},
		llm.ChatOptions{Model: d.model, Temperature: 0.7, MaxTokens: 4096, JSON: true},
	)
	if err != nil {
		return nil, err
	}
	return payload.Object(raw), nil
}

// scriptObject returns the nested "script" object when present, else raw.
func scriptObject(raw payload.Object) payload.Object {
	if s := raw.Object("script"); s != nil {
		return s
	}
	return raw
}

func maxSections(n int) int {
	if n <= 0 {
		return DefaultMaxSections
	}
	return n
}
