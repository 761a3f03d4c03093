// Package analyst turns an interview transcript into a structured analysis of
// the project knowledge store.
package analyst

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"interviewlab/internal/knowledge"
	"interviewlab/internal/llm"
	"interviewlab/internal/logging"
	"interviewlab/internal/payload"
)

//go:embed analyst_system.txt
var systemPrompt string

// Chatter is the part of the LLM client an analyst needs.
type Chatter interface {
	ChatJSON(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (map[string]any, error)
}

// LLM analyses transcripts with a chat-completions model.
type LLM struct {
	chat  Chatter
	model string
}

// NewLLM returns an analyst backed by chat. An empty model uses the
// client's default.
func NewLLM(chat Chatter, model string) *LLM {
	return &LLM{chat: chat, model: model}
}

type analysisInput struct {
	Task                 string                  `json:"task"`
	ResearchQuestion     string                  `json:"research_question"`
	Language             string                  `json:"language"`
	InterviewID          string                  `json:"interview_id"`
	Transcript           string                  `json:"transcript"`
	ExistingEvidence     []knowledge.Evidence    `json:"existing_evidence"`
	ExistingPropositions []knowledge.Proposition `json:"existing_propositions"`
}

// Analyze sends the transcript and the current store to the model and coerces
// its reply.
func (a *LLM) Analyze(ctx context.Context, req knowledge.AnalysisRequest) (*knowledge.AnalysisResult, error) {
	in := analysisInput{
		Task:                 "Analyze a single interview and return JSON only",
		ResearchQuestion:     req.ResearchQuestion,
		Language:             req.Language,
		InterviewID:          req.InterviewID,
		Transcript:           req.Transcript,
		ExistingEvidence:     req.Evidence,
		ExistingPropositions: req.Propositions,
	}
	if in.ExistingEvidence == nil {
		in.ExistingEvidence = []knowledge.Evidence{}
	}
	if in.ExistingPropositions == nil {
		in.ExistingPropositions = []knowledge.Proposition{}
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis input: %w", err)
	}
	raw, err := a.chat.ChatJSON(ctx,
		[]llm.Message{llm.System(systemPrompt), llm.User(string(body))},
		llm.ChatOptions{Model: a.model, Temperature: 0.3, MaxTokens: 8192, JSON: true},
	)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", req.InterviewID, err)
	}
	res := Coerce(payload.Object(raw), req.InterviewID, req.InterviewIndex, req.Language)
	logging.ForProject("analyst", req.ProjectID).Debug("analysis received",
		"interview_id", req.InterviewID,
		"evidence", len(res.NewEvidence),
		"propositions", len(res.NewPropositions),
		"updates", len(res.PropositionUpdates))
	return res, nil
}

// Static replays an analysis payload computed elsewhere, for example by an
// agent host that already read the transcript.
type Static struct {
	Payload map[string]any
}

// Analyze coerces the held payload as if a model had returned it.
func (s Static) Analyze(_ context.Context, req knowledge.AnalysisRequest) (*knowledge.AnalysisResult, error) {
	if s.Payload == nil {
		return nil, fmt.Errorf("analyze %s: empty analysis payload", req.InterviewID)
	}
	return Coerce(payload.Object(s.Payload), req.InterviewID, req.InterviewIndex, req.Language), nil
}
