package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"interviewlab/internal/knowledge"
	"interviewlab/internal/llm"
	"interviewlab/internal/payload"
)

func object(t *testing.T, s string) payload.Object {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return payload.Object(m)
}

func TestCoerce_Evidence(t *testing.T) {
	o := object(t, `{"new_evidence": [
		{"id": "E001", "quote": "We cut scope", "interpretation": "i", "factor": "f", "mechanism": "m", "outcome": "o", "tags": ["deadline", ""], "language": "en-US"},
		{"quote": "Мы сократили объём", "quote_english": "We cut scope", "interpretation": "i", "factor": "f", "mechanism": "m", "outcome": "o", "language": "ru"},
		{"quote": "без перевода", "interpretation": "i", "factor": "f", "mechanism": "m", "outcome": "o"},
		{"quote": "missing outcome", "interpretation": "i", "factor": "f", "mechanism": "m"},
		"not an object"
	]}`)

	res := Coerce(o, "INT_001", 1, knowledge.LangRussian)
	if len(res.NewEvidence) != 3 {
		t.Fatalf("evidence = %d, want 3", len(res.NewEvidence))
	}
	en, tr, pending := res.NewEvidence[0], res.NewEvidence[1], res.NewEvidence[2]
	if en.TranslationStatus != knowledge.TranslationNativeEN || en.QuoteEnglish == nil || *en.QuoteEnglish != "We cut scope" {
		t.Errorf("english evidence = %+v", en)
	}
	if diff := cmp.Diff([]string{"deadline"}, en.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if tr.TranslationStatus != knowledge.TranslationTranslated || *tr.QuoteEnglish != "We cut scope" {
		t.Errorf("translated evidence = %+v", tr)
	}
	if pending.TranslationStatus != knowledge.TranslationPending || pending.QuoteEnglish != nil || pending.Language != "ru" {
		t.Errorf("pending evidence = %+v", pending)
	}
	for _, e := range res.NewEvidence {
		if e.InterviewID != "INT_001" {
			t.Errorf("interview id = %q", e.InterviewID)
		}
	}
}

func TestCoerce_PropositionsUpdatesAndMetrics(t *testing.T) {
	o := object(t, `{
		"new_propositions": [
			{"factor": "Time pressure", "mechanism": "forces cuts", "outcome": "smaller scope", "confidence": "1.7", "status": "bogus", "supporting_evidence": ["E001"]},
			{"factor": "x", "mechanism": "", "outcome": "y"}
		],
		"proposition_updates": [
			{"id": "P001", "new_confidence": -2, "new_status": "CONFIRMED"},
			{"id": "P002", "new_confidence": "n/a", "new_status": "??"},
			{"new_confidence": 0.5}
		],
		"evidence_mappings": [
			{"evidence_id": "E001", "proposition_id": "P001", "relationship": "Supports"},
			{"evidence_id": "E001", "proposition_id": "P001", "relationship": "relates"},
			{"evidence_id": "", "proposition_id": "P001", "relationship": "contradicts"}
		],
		"prunes": ["P009", ""],
		"metrics": {"convergence_score": 3, "novelty_rate": "x", "mode": "CONVERGENT"}
	}`)

	res := Coerce(o, "INT_002", 2, "")

	want := []knowledge.Proposition{{
		Factor: "Time pressure", Mechanism: "forces cuts", Outcome: "smaller scope",
		Confidence: 1, Status: knowledge.StatusUntested,
		SupportingEvidence:   []string{"E001"},
		FirstSeenInterview:   2,
		LastUpdatedInterview: 2,
	}}
	if diff := cmp.Diff(want, res.NewPropositions); diff != "" {
		t.Errorf("propositions mismatch (-want +got):\n%s", diff)
	}
	wantUpdates := []knowledge.PropositionUpdate{
		{ID: "P001", NewConfidence: 0, NewStatus: knowledge.StatusConfirmed},
		{ID: "P002", NewConfidence: 0, NewStatus: knowledge.StatusExploring},
	}
	if diff := cmp.Diff(wantUpdates, res.PropositionUpdates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	wantMappings := []knowledge.EvidenceMapping{{EvidenceID: "E001", PropositionID: "P001", Relationship: knowledge.Supports}}
	if diff := cmp.Diff(wantMappings, res.EvidenceMappings); diff != "" {
		t.Errorf("mappings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"P009"}, res.Prunes); diff != "" {
		t.Errorf("prunes mismatch (-want +got):\n%s", diff)
	}
	wantMetrics := knowledge.Metrics{ConvergenceScore: 1, NoveltyRate: 1, Mode: knowledge.ModeConvergent}
	if res.Metrics != wantMetrics {
		t.Errorf("metrics = %+v, want %+v", res.Metrics, wantMetrics)
	}
}

func TestCoerce_EmptyPayloadDefaults(t *testing.T) {
	res := Coerce(nil, "INT_001", 1, "")
	if len(res.NewEvidence)+len(res.NewPropositions)+len(res.EvidenceMappings) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if res.Metrics != knowledge.DefaultMetrics() {
		t.Errorf("metrics = %+v, want defaults", res.Metrics)
	}
}

func TestCoerce_Merges(t *testing.T) {
	o := object(t, `{"merges": [
		{"source_ids": ["P001", "P002"], "merged_proposition": {"factor": "f", "mechanism": "m", "outcome": "o"}},
		{"source_ids": [], "merged_proposition": {"factor": "f", "mechanism": "m", "outcome": "o"}},
		{"source_ids": ["P003"]}
	]}`)
	res := Coerce(o, "INT_003", 3, "en")
	if len(res.Merges) != 1 {
		t.Fatalf("merges = %d, want 1", len(res.Merges))
	}
	if diff := cmp.Diff([]string{"P001", "P002"}, res.Merges[0].SourceIDs); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	if res.Merges[0].Merged.FirstSeenInterview != 3 {
		t.Errorf("merged = %+v", res.Merges[0].Merged)
	}
}

type fakeChat struct {
	msgs  []llm.Message
	opts  llm.ChatOptions
	reply map[string]any
	err   error
}

func (f *fakeChat) ChatJSON(_ context.Context, msgs []llm.Message, opts llm.ChatOptions) (map[string]any, error) {
	f.msgs, f.opts = msgs, opts
	return f.reply, f.err
}

func TestLLM_Analyze(t *testing.T) {
	chat := &fakeChat{reply: map[string]any{
		"new_evidence": []any{map[string]any{
			"quote": "q", "interpretation": "i", "factor": "f", "mechanism": "m", "outcome": "o",
		}},
	}}
	a := NewLLM(chat, "analyst-model")
	res, err := a.Analyze(context.Background(), knowledge.AnalysisRequest{
		ProjectID: "p", Transcript: "hello", InterviewID: "INT_001", InterviewIndex: 1, Language: "en",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(res.NewEvidence) != 1 || res.NewEvidence[0].InterviewID != "INT_001" {
		t.Errorf("result = %+v", res)
	}
	if chat.opts.Model != "analyst-model" || chat.opts.Temperature != 0.3 || chat.opts.MaxTokens != 8192 {
		t.Errorf("options = %+v", chat.opts)
	}
	if len(chat.msgs) != 2 || !strings.Contains(chat.msgs[1].Content, `"transcript":"hello"`) {
		t.Errorf("messages = %+v", chat.msgs)
	}
	if !strings.Contains(chat.msgs[1].Content, `"existing_evidence":[]`) {
		t.Errorf("empty store not sent as list: %s", chat.msgs[1].Content)
	}
}

func TestLLM_AnalyzeError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewLLM(&fakeChat{err: boom}, "").Analyze(context.Background(), knowledge.AnalysisRequest{InterviewID: "INT_001"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestStatic_Analyze(t *testing.T) {
	s := Static{Payload: map[string]any{"prunes": []any{"P001"}}}
	res, err := s.Analyze(context.Background(), knowledge.AnalysisRequest{InterviewID: "INT_001"})
	if err != nil || len(res.Prunes) != 1 {
		t.Fatalf("Analyze = %+v, %v", res, err)
	}
	if _, err := (Static{}).Analyze(context.Background(), knowledge.AnalysisRequest{}); err == nil {
		t.Error("expected error for empty payload")
	}
}
