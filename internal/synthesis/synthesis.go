// Package synthesis writes the final research report of a project, either
// with a chat model or as a deterministic evidence digest.
package synthesis

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"interviewlab/internal/knowledge"
	"interviewlab/internal/llm"
	"interviewlab/internal/logging"
	"interviewlab/internal/payload"
)

var (
	//go:embed synthesizer_system.txt
	systemPrompt string
	//go:embed translate_system.txt
	translatePrompt string
)

// ErrNoEvidence is returned when a project has nothing to report on.
var ErrNoEvidence = errors.New("no interview evidence stored")

// Chatter is the part of the LLM client a synthesizer needs.
type Chatter interface {
	Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (string, error)
	ChatJSON(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (map[string]any, error)
}

// LLM writes reports with a chat model and rejects reports that quote text
// not found in the evidence base.
type LLM struct {
	chat  Chatter
	model string
}

// NewLLM returns a synthesizer backed by chat.
func NewLLM(chat Chatter, model string) *LLM {
	return &LLM{chat: chat, model: model}
}

type reportInput struct {
	ResearchQuestion string                  `json:"research_question"`
	Language         string                  `json:"language"`
	Evidence         []knowledge.Evidence    `json:"evidence"`
	Propositions     []knowledge.Proposition `json:"propositions"`
	Metrics          knowledge.Metrics       `json:"metrics"`
	Interviews       int                     `json:"interviews"`
	ScriptVersions   int                     `json:"script_versions"`
}

// Synthesize returns the report markdown for p.
func (s *LLM) Synthesize(ctx context.Context, p *knowledge.ProjectState) (string, error) {
	if len(p.Evidence) == 0 {
		return "", ErrNoEvidence
	}
	body, err := json.Marshal(reportInput{
		ResearchQuestion: p.ResearchQuestion,
		Language:         p.Language,
		Evidence:         p.Evidence,
		Propositions:     p.Propositions,
		Metrics:          p.Metrics,
		Interviews:       len(p.Interviews),
		ScriptVersions:   len(p.Scripts),
	})
	if err != nil {
		return "", fmt.Errorf("marshal report input: %w", err)
	}
	report, err := s.chat.Chat(ctx,
		[]llm.Message{llm.System(systemPrompt), llm.User(string(body))},
		llm.ChatOptions{Model: s.model, Temperature: 0.5, MaxTokens: 4096},
	)
	if err != nil {
		return "", fmt.Errorf("synthesize report: %w", err)
	}
	if err := CheckGrounding(report, p.Evidence); err != nil {
		return "", err
	}
	return report, nil
}

type translationItem struct {
	ID       string `json:"id"`
	Quote    string `json:"quote"`
	Language string `json:"language"`
}

// Translate asks the model for English renditions of evidence quotes still
// pending translation. The result maps evidence id to English text; the
// caller records it on the project.
func (s *LLM) Translate(ctx context.Context, p *knowledge.ProjectState) (map[string]string, error) {
	var items []translationItem
	for _, e := range p.Evidence {
		if e.TranslationStatus == knowledge.TranslationPending {
			items = append(items, translationItem{ID: e.ID, Quote: e.Quote, Language: e.Language})
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return nil, fmt.Errorf("marshal translation input: %w", err)
	}
	raw, err := s.chat.ChatJSON(ctx,
		[]llm.Message{llm.System(translatePrompt), llm.User(string(body))},
		llm.ChatOptions{Model: s.model, Temperature: 0.2, MaxTokens: 4096, JSON: true},
	)
	if err != nil {
		return nil, fmt.Errorf("translate quotes: %w", err)
	}
	wanted := make(map[string]bool, len(items))
	for _, it := range items {
		wanted[it.ID] = true
	}
	out := map[string]string{}
	for _, t := range payload.Object(raw).Objects("translations") {
		id, english := t.String("id", ""), t.String("english", "")
		if wanted[id] && english != "" {
			out[id] = english
		}
	}
	logging.ForProject("synthesis", p.ID).Debug("quotes translated", "requested", len(items), "received", len(out))
	return out, nil
}
