package demo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"interviewlab/internal/knowledge"
	"interviewlab/internal/orchestrate"
	"interviewlab/internal/store"
)

func run(t *testing.T, name string) (*orchestrate.Orchestrator, *Scenario) {
	t.Helper()
	sc, err := Load(name)
	if err != nil {
		t.Fatalf("Load(%q): %v", name, err)
	}
	o := orchestrate.New(orchestrate.Options{
		Store:    store.NewMemStore(),
		Designer: sc.Designer(),
		Now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	ctx := context.Background()
	if _, err := o.CreateProject(ctx, sc.NewProject()); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := o.StartProject(ctx, sc.ProjectID, ""); err != nil {
		t.Fatalf("StartProject: %v", err)
	}
	results, err := o.ProcessBatch(ctx, sc.Jobs(), 1)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("job %s: %v", r.Job.Request.ConversationID, r.Err)
		}
	}
	return o, sc
}

func TestNames(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if diff := cmp.Diff([]string{"hackathon", "hackathon_ru"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if _, err := Load("nope"); err == nil {
		t.Error("unknown scenario loaded")
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"no project":     "research_question: RQ\ninterviews: [{conversation_id: a, analysis: {}}]\n",
		"no interviews":  "project_id: p\nresearch_question: RQ\n",
		"no analysis":    "project_id: p\nresearch_question: RQ\ninterviews: [{conversation_id: a}]\n",
		"duplicate conv": "project_id: p\nresearch_question: RQ\ninterviews: [{conversation_id: a, analysis: {}}, {conversation_id: a, analysis: {}}]\n",
		"broken yaml":    "project_id: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Error("Parse accepted invalid scenario")
			}
		})
	}
}

func TestHackathonScenario(t *testing.T) {
	o, sc := run(t, "hackathon")
	p, err := o.Load(context.Background(), sc.ProjectID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	st := p.Stats()
	if st.InterviewsCount != 3 || st.EvidenceCount != 6 || st.PropositionsCount != 3 || st.ScriptVersion != 4 {
		t.Errorf("stats = %+v", st)
	}
	if p.Status != knowledge.ProjectRunning || p.Metrics.Mode != knowledge.ModeConvergent {
		t.Errorf("status %s, mode %s", p.Status, p.Metrics.Mode)
	}

	p1 := p.FindProposition("P001")
	if diff := cmp.Diff([]string{"E001", "E002"}, p1.SupportingEvidence); diff != "" {
		t.Errorf("P001 supporting (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"E005"}, p1.ContradictingEvidence); diff != "" {
		t.Errorf("P001 contradicting (-want +got):\n%s", diff)
	}
	if p1.Status != knowledge.StatusChallenged || p1.Confidence != 0.45 {
		t.Errorf("P001 = %s %.2f", p1.Status, p1.Confidence)
	}
	if p3 := p.FindProposition("P003"); p3 == nil || !cmp.Equal(p3.SupportingEvidence, []string{"E006"}) || p3.FirstSeenInterview != 3 {
		t.Errorf("P003 = %+v", p3)
	}

	v2 := p.Scripts[1]
	if !strings.Contains(v2.ChangesSummary, "safety_guard=sanitized") {
		t.Errorf("v2 summary = %q", v2.ChangesSummary)
	}
	if q := strings.ToLower(v2.Sections[0].MainQuestion); strings.Contains(q, "you mentioned") {
		t.Errorf("v2 main question still personal: %q", v2.Sections[0].MainQuestion)
	}

	rep, err := o.GenerateReport(context.Background(), sc.ProjectID)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if rep.Mode != knowledge.ReportModeFallback || !strings.Contains(rep.Markdown, "I barely slept.") {
		t.Errorf("report mode %s:\n%s", rep.Mode, rep.Markdown)
	}
}

func TestRussianScenario(t *testing.T) {
	o, sc := run(t, "hackathon_ru")
	p, err := o.Load(context.Background(), sc.ProjectID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Language != knowledge.LangRussian || len(p.Evidence) != 2 {
		t.Fatalf("language %s, evidence %d", p.Language, len(p.Evidence))
	}
	if p.Evidence[0].TranslationStatus != knowledge.TranslationPending {
		t.Errorf("E001 translation = %s", p.Evidence[0].TranslationStatus)
	}
	if e := p.Evidence[1]; e.TranslationStatus != knowledge.TranslationTranslated || e.EnglishQuote() != "We threw away half of the features already on Saturday." {
		t.Errorf("E002 = %+v", e)
	}
	if p1 := p.FindProposition("P001"); p1 == nil || !cmp.Equal(p1.SupportingEvidence, []string{"E001"}) {
		t.Errorf("P001 = %+v", p1)
	}
	if p2 := p.FindProposition("P002"); p2 == nil || !cmp.Equal(p2.SupportingEvidence, []string{"E002"}) {
		t.Errorf("P002 = %+v", p2)
	}
}
