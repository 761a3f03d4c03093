package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"interviewlab/internal/knowledge"
	"interviewlab/internal/llm"
)

type fakeChat struct {
	text     string
	json     map[string]any
	err      error
	lastOpts llm.ChatOptions
}

func (f *fakeChat) Chat(_ context.Context, _ []llm.Message, opts llm.ChatOptions) (string, error) {
	f.lastOpts = opts
	return f.text, f.err
}

func (f *fakeChat) ChatJSON(_ context.Context, _ []llm.Message, opts llm.ChatOptions) (map[string]any, error) {
	f.lastOpts = opts
	return f.json, f.err
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func englishProject() *knowledge.ProjectState {
	p := knowledge.NewProject("demo", "RQ", "en", testNow)
	p.Interviews = []knowledge.Interview{{ID: "INT_001", ConversationID: "conv-1"}}
	p.Evidence = []knowledge.Evidence{{
		ID: "E001", InterviewID: "INT_001", Quote: "I only slept two hours",
		QuoteEnglish: strPtr("I only slept two hours"), TranslationStatus: knowledge.TranslationNativeEN,
		Interpretation: "Fatigue impacted performance", Factor: "time pressure",
		Mechanism: "sleep deprivation", Outcome: "lower focus", Language: "en",
	}}
	p.Propositions = []knowledge.Proposition{{
		ID: "P001", Factor: "time pressure", Mechanism: "sleep deprivation", Outcome: "lower focus",
		Confidence: 0.9, Status: knowledge.StatusConfirmed, SupportingEvidence: []string{"E001"},
	}}
	return p
}

func russianProject() *knowledge.ProjectState {
	p := knowledge.NewProject("demo", "RQ", "ru", testNow)
	p.Interviews = []knowledge.Interview{{ID: "INT_001", ConversationID: "conv-1", Language: "ru"}}
	p.Evidence = []knowledge.Evidence{{
		ID: "E001", InterviewID: "INT_001", Quote: "Я почти не спал", TranslationStatus: knowledge.TranslationPending,
		Interpretation: "Fatigue impacted performance", Factor: "time pressure",
		Mechanism: "sleep deprivation", Outcome: "lower focus", Language: "ru",
	}}
	p.Propositions = []knowledge.Proposition{{
		ID: "P001", Factor: "time pressure", Mechanism: "sleep deprivation", Outcome: "lower focus",
		Confidence: 0.6, Status: knowledge.StatusExploring, SupportingEvidence: []string{"E001"},
	}}
	return p
}

func TestSynthesize_NoEvidence(t *testing.T) {
	p := knowledge.NewProject("demo", "RQ", "en", testNow)
	_, err := NewLLM(&fakeChat{text: "ignored"}, "").Synthesize(context.Background(), p)
	if !errors.Is(err, ErrNoEvidence) {
		t.Fatalf("err = %v, want ErrNoEvidence", err)
	}
	report := Fallback(p, err.Error())
	if !strings.Contains(report, "Report Not Ready") || !strings.Contains(report, "No interview evidence is currently stored") {
		t.Errorf("report = %s", report)
	}
}

func TestSynthesize_UsesGroundedReport(t *testing.T) {
	grounded := "## Executive Summary\n\n\"I only slept two hours\""
	chat := &fakeChat{text: grounded}
	got, err := NewLLM(chat, "m").Synthesize(context.Background(), englishProject())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got != grounded {
		t.Errorf("report = %q", got)
	}
	if chat.lastOpts.Temperature != 0.5 || chat.lastOpts.MaxTokens != 4096 || chat.lastOpts.JSON {
		t.Errorf("options = %+v", chat.lastOpts)
	}
}

func TestSynthesize_RejectsHallucinatedQuote(t *testing.T) {
	p := englishProject()
	_, err := NewLLM(&fakeChat{text: "## Executive Summary\n\n\"Participant A said she skipped meals\""}, "").Synthesize(context.Background(), p)
	if !errors.Is(err, ErrUngrounded) {
		t.Fatalf("err = %v, want ErrUngrounded", err)
	}
	report := Fallback(p, err.Error())
	if !strings.Contains(report, "Grounded Fallback") || !strings.Contains(report, "I only slept two hours") {
		t.Errorf("fallback report = %s", report)
	}
	if strings.Contains(report, "Participant A said") {
		t.Error("fallback report repeats the hallucinated quote")
	}
}

func TestCheckGrounding_TranslatedQuotes(t *testing.T) {
	p := russianProject()
	p.SetTranslation("E001", "I barely slept.")

	ok := "## Core Findings\n\nThe participant described exhaustion: \"I barely slept.\" [original: \"Я почти не спал\"]"
	if err := CheckGrounding(ok, p.Evidence); err != nil {
		t.Errorf("translated quote with original marker rejected: %v", err)
	}
	bad := "## Core Findings\n\n\"Я почти не спал\""
	if err := CheckGrounding(bad, p.Evidence); !errors.Is(err, ErrUngrounded) {
		t.Errorf("raw non-English quote outside marker accepted: %v", err)
	}
	wrongOriginal := "\"I barely slept.\" [original: \"Я спал весь день\"]"
	if err := CheckGrounding(wrongOriginal, p.Evidence); !errors.Is(err, ErrUngrounded) {
		t.Errorf("unknown original accepted: %v", err)
	}
	if err := CheckGrounding(`We saw "scope creep" often.`, p.Evidence); err != nil {
		t.Errorf("short quoted term rejected: %v", err)
	}
}

func TestFallback_TranslatedEvidence(t *testing.T) {
	p := russianProject()
	p.SetTranslation("E001", "I barely slept.")
	report := Fallback(p, "ungrounded")
	for _, want := range []string{
		"Grounded Fallback",
		`Quote (EN): "I barely slept."`,
		`Original (ru): "Я почти не спал"`,
		"### P001: time pressure -> sleep deprivation -> lower focus",
		"Reason: ungrounded",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report lacks %q:\n%s", want, report)
		}
	}
}

func TestTranslate(t *testing.T) {
	chat := &fakeChat{json: map[string]any{"translations": []any{
		map[string]any{"id": "E001", "english": "I barely slept."},
		map[string]any{"id": "E999", "english": "not requested"},
	}}}
	got, err := NewLLM(chat, "").Translate(context.Background(), russianProject())
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"E001": "I barely slept."}, got); diff != "" {
		t.Errorf("translations mismatch (-want +got):\n%s", diff)
	}

	none, err := NewLLM(&fakeChat{err: errors.New("must not be called")}, "").Translate(context.Background(), englishProject())
	if err != nil || none != nil {
		t.Errorf("Translate with nothing pending = %v, %v", none, err)
	}
}
