package safety

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"interviewlab/internal/knowledge"
)

const rq = "What is your experience with this hackathon so far?"

var props = []knowledge.Proposition{{
	ID: "P001", Factor: "Time pressure", Mechanism: "forced prioritization", Outcome: "faster decisions",
}}

func cleanScript() *knowledge.InterviewScript {
	return &knowledge.InterviewScript{
		Version:         1,
		OpeningQuestion: "How has the hackathon been going for you?",
		Sections: []knowledge.ScriptSection{{
			PropositionID: "P001",
			Priority:      knowledge.PriorityHigh,
			Instruction:   knowledge.InstructionExplore,
			MainQuestion:  "How did time pressure shape your decisions?",
			Probes:        []string{"Can you give a concrete example?", "What happened next?"},
			Context:       "Time pressure and prioritization",
		}},
		ClosingQuestion: "What surprised you most?",
		Wildcard:        "Is there anything important I have not asked about?",
	}
}

func TestValidate_FindsPersonalReferences(t *testing.T) {
	s := cleanScript()
	s.OpeningQuestion = "As we discussed, how is it going?"
	s.Sections[0].Probes = []string{"ok", "You told me it was hard, why?"}
	s.Sections[0].Context = "Как мы обсуждали, время важно"

	got := newGuard(t).Validate(s)
	want := []Violation{
		{SectionIndex: -1, Field: "opening_question", Reason: ReasonPersonalReference, Value: "As we discussed, how is it going?"},
		{SectionIndex: 0, Field: "context", Reason: ReasonPersonalReference, Value: "Как мы обсуждали, время важно"},
		{SectionIndex: 0, Field: "probes[1]", Reason: ReasonPersonalReference, Value: "You told me it was hard, why?"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_IgnoresLookalikes(t *testing.T) {
	s := cleanScript()
	s.Sections[0].MainQuestion = "Did your team say what youthful energy meant?"
	if got := newGuard(t).Validate(s); len(got) != 0 {
		t.Errorf("unexpected violations: %+v", got)
	}
}

func TestEnforce_RewritesPersonalReference(t *testing.T) {
	s := cleanScript()
	s.Sections[0].MainQuestion = "Earlier, you mentioned working alone. How did that feel?"

	res := newGuard(t).Enforce(s, rq, props, "en")

	if res.Status != knowledge.SafetySanitized && res.Status != knowledge.SafetyFallback {
		t.Fatalf("status = %q, want sanitized or fallback", res.Status)
	}
	if len(res.Violations) < 1 {
		t.Fatalf("violations = %d, want >= 1", len(res.Violations))
	}
	got := res.Script.Sections[0].MainQuestion
	if strings.Contains(strings.ToLower(got), "you mentioned") || strings.Contains(strings.ToLower(got), "you said") {
		t.Errorf("main question still personal: %q", got)
	}
	if got != "Some participants mentioned working alone. How did that feel?" {
		t.Errorf("main question = %q", got)
	}
	if s.Sections[0].MainQuestion != "Earlier, you mentioned working alone. How did that feel?" {
		t.Error("Enforce mutated its input")
	}
}

func TestEnforce_RewritesRussian(t *testing.T) {
	s := cleanScript()
	s.Sections[0].MainQuestion = "Ранее вы упоминали работу в одиночку. Как это было?"
	res := newGuard(t).Enforce(s, "Каков ваш опыт участия в хакатоне?", props, "ru")
	if got := res.Script.Sections[0].MainQuestion; got != "Некоторые участники упоминали работу в одиночку. Как это было?" {
		t.Errorf("main question = %q", got)
	}
	if res.Status != knowledge.SafetySanitized {
		t.Errorf("status = %q, want sanitized", res.Status)
	}
}

func TestEnforce_TopicRedirect(t *testing.T) {
	s := cleanScript()
	s.Sections[0].MainQuestion = "Tell me about your project implementation and tech stack"

	res := newGuard(t).Enforce(s, rq, props, "en")

	if !res.TopicRedirectApplied {
		t.Fatal("topic redirect not applied")
	}
	if got := res.Script.Sections[0].MainQuestion; !strings.Contains(got, rq) {
		t.Errorf("redirect %q does not reference the research question", got)
	}
	if res.Status != knowledge.SafetyOK {
		t.Errorf("status = %q, want ok for a redirect-only change", res.Status)
	}
}

func TestEnforce_DriftToleratedWhenOnTopic(t *testing.T) {
	s := cleanScript()
	s.Sections[0].MainQuestion = "What is your hackathon experience with the tech stack so far?"
	res := newGuard(t).Enforce(s, rq, props, "en")
	if res.TopicRedirectApplied {
		t.Errorf("redirected on-topic question: %q", res.Script.Sections[0].MainQuestion)
	}
}

func TestEnforce_DriftingProbe(t *testing.T) {
	s := cleanScript()
	s.Sections[0].Probes = []string{"Which codebase did you use?", "What happened next?"}
	res := newGuard(t).Enforce(s, rq, props, "en")
	want := []string{"How did this influence your experience with the core research topic?", "What happened next?"}
	if diff := cmp.Diff(want, res.Script.Sections[0].Probes); diff != "" {
		t.Errorf("probes mismatch (-want +got):\n%s", diff)
	}
	if res.Redirects != 1 {
		t.Errorf("redirects = %d, want 1", res.Redirects)
	}
}

func TestEnforce_CleanScriptUnchanged(t *testing.T) {
	s := cleanScript()
	res := newGuard(t).Enforce(s, rq, props, "en")
	if res.Status != knowledge.SafetyOK || res.TopicRedirectApplied || len(res.Violations) != 0 {
		t.Errorf("result = %+v, want clean ok", res)
	}
	if res.Script != s {
		t.Error("clean script was copied instead of returned as-is")
	}
}

func TestEnforce_Idempotent(t *testing.T) {
	g := newGuard(t)
	s := cleanScript()
	s.OpeningQuestion = "From what you said, the hackathon was hard?"
	s.Sections[0].MainQuestion = "Tell me about your project implementation and tech stack"
	s.Sections[0].Probes = []string{"You said it was fun", "", "Which codebase?", "a", "b"}
	s.Sections = append(s.Sections, knowledge.ScriptSection{
		PropositionID: "P404", MainQuestion: "As we discussed", Context: "you mentioned infra",
	})

	first := g.Enforce(s, rq, props, "en")
	second := g.Enforce(first.Script, rq, props, "en")

	if second.Status != knowledge.SafetyOK || second.TopicRedirectApplied || len(second.Violations) != 0 {
		t.Errorf("second pass = status %q redirect %v violations %v", second.Status, second.TopicRedirectApplied, second.Violations)
	}
	if second.Script != first.Script {
		if diff := cmp.Diff(first.Script, second.Script); diff != "" {
			t.Errorf("second pass changed script (-first +second):\n%s", diff)
		}
	}
}

func TestEnforce_RepairsProbes(t *testing.T) {
	s := cleanScript()
	s.Sections[0].Probes = []string{"a?", "a?", "b?", "c?", "d?"}
	res := newGuard(t).Enforce(s, rq, props, "en")
	if diff := cmp.Diff([]string{"a?", "b?"}, res.Script.Sections[0].Probes); diff != "" {
		t.Errorf("probes mismatch (-want +got):\n%s", diff)
	}
	if res.Status != knowledge.SafetySanitized {
		t.Errorf("status = %q, want sanitized", res.Status)
	}

	s = cleanScript()
	s.Sections[0].Probes = nil
	res = newGuard(t).Enforce(s, rq, props, "en")
	if len(res.Script.Sections[0].Probes) != 3 {
		t.Errorf("default probes = %v", res.Script.Sections[0].Probes)
	}
}

func TestEnforce_FallbackSection(t *testing.T) {
	s := cleanScript()
	s.Sections = nil
	res := newGuard(t).Enforce(s, rq, props, "en")
	if res.Status != knowledge.SafetyFallback {
		t.Fatalf("status = %q, want fallback", res.Status)
	}
	sec := res.Script.Sections[0]
	if sec.PropositionID != knowledge.FallbackPropositionID || !strings.Contains(sec.MainQuestion, rq) {
		t.Errorf("fallback section = %+v", sec)
	}
}

func TestEnforce_EmptyMainQuestionFallsBackToFactor(t *testing.T) {
	s := cleanScript()
	s.Sections[0].MainQuestion = "   "
	res := newGuard(t).Enforce(s, rq, props, "en")
	want := "How did time pressure influence your experience with this topic, and what outcomes did it create?"
	if got := res.Script.Sections[0].MainQuestion; got != want {
		t.Errorf("main question = %q, want %q", got, want)
	}
}

func TestNew_RulesCoverSupportedLanguages(t *testing.T) {
	g := newGuard(t)
	for _, lang := range knowledge.SupportedLanguages {
		if g.Defaults(lang).Opening == "" {
			t.Errorf("no defaults for %s", lang)
		}
	}
	if g.Defaults("de").Opening != g.Defaults("en").Opening {
		t.Error("unknown language should use English defaults")
	}
}

func newGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}
