package linking

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"interviewlab/internal/knowledge"
)

func fixture() *knowledge.ProjectState {
	p := knowledge.NewProject("demo", "What is your experience with this hackathon so far?", "en", time.Unix(0, 0))
	p.AddEvidence(knowledge.Evidence{
		Quote: "It was intense", Factor: "time pressure", Mechanism: "forced prioritization", Outcome: "faster decisions",
		Tags: []string{"Stress", "deadline"}, Language: "en",
	})
	p.AddEvidence(knowledge.Evidence{
		Quote: "We had no time at all", Factor: "Time pressure ", Mechanism: "forced prioritization", Outcome: "faster decisions",
		Tags: []string{"stress", "deadline"}, Language: "en",
	})
	p.AddEvidence(knowledge.Evidence{
		Quote: "The mentors helped", Factor: "mentors", Mechanism: "guidance", Outcome: "confidence",
		Tags: []string{"support"}, Language: "en",
	})
	p.AddEvidence(knowledge.Evidence{
		Quote: "Deadlines focus us", Factor: "time pressure", Mechanism: "forced prioritization", Outcome: "faster decisions",
		Tags: []string{"deadline"}, Language: "en",
	})
	p.AddProposition(knowledge.Proposition{
		Factor: "time pressure", Mechanism: "forced prioritization", Outcome: "faster decisions",
		Status: knowledge.StatusExploring, SupportingEvidence: []string{"E004"},
	})
	return p
}

func TestTokenize(t *testing.T) {
	got := Tokenize("It was an INTENSE week, 2024 deadlines! The week... очень сложно")
	want := []string{"intense", "week", "deadlines", "сложно"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokenize mismatch (-want +got):\n%s", diff)
	}
}

func TestJaccard(t *testing.T) {
	if got := Jaccard(nil, nil); got != 0 {
		t.Errorf("Jaccard(empty, empty) = %v, want 0", got)
	}
	if got := Jaccard([]string{"a", "b"}, []string{"b", "c"}); got != 1.0/3 {
		t.Errorf("Jaccard = %v, want 1/3", got)
	}
}

func TestCompute_SuggestsUnassignedAboveThreshold(t *testing.T) {
	res := Compute(fixture(), DefaultConfig())

	got := res.Suggestions["P001"]
	var ids []string
	for _, s := range got {
		ids = append(ids, s.EvidenceID)
		if s.Score.Score < 0.70 {
			t.Errorf("suggestion %s below threshold: %v", s.EvidenceID, s.Score)
		}
	}
	if diff := cmp.Diff([]string{"E001", "E002"}, ids); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"E001", "E002", "E003"}, res.Unassigned); diff != "" {
		t.Errorf("unassigned mismatch (-want +got):\n%s", diff)
	}
}

func TestCompute_SkipsInactiveAndSaturatedPropositions(t *testing.T) {
	p := fixture()
	p.Propositions[0].Status = knowledge.StatusWeak
	if res := Compute(p, DefaultConfig()); len(res.Suggestions) != 0 {
		t.Errorf("weak proposition got suggestions: %v", res.Suggestions)
	}

	p = fixture()
	p.Propositions[0].SupportingEvidence = []string{"E004", "X1", "X2", "X3", "X4"}
	if res := Compute(p, DefaultConfig()); len(res.Suggestions) != 0 {
		t.Errorf("proposition with 5 confirmed links got suggestions: %v", res.Suggestions)
	}
}

func TestCompute_ClustersAndSingletons(t *testing.T) {
	res := Compute(fixture(), DefaultConfig())
	if len(res.Clusters) != 2 {
		t.Fatalf("clusters = %d, want 2: %+v", len(res.Clusters), res.Clusters)
	}

	first := res.Clusters[0]
	if first.ID != "CLUSTER_001" {
		t.Errorf("first cluster id = %q", first.ID)
	}
	if diff := cmp.Diff([]string{"E001", "E002"}, first.EvidenceIDs); diff != "" {
		t.Errorf("cluster members mismatch (-want +got):\n%s", diff)
	}
	if first.Label != "deadline / decisions / faster" {
		t.Errorf("label = %q", first.Label)
	}
	if diff := cmp.Diff([]Supporter{{EvidenceID: "E004", Score: 0.857}}, first.Supporters); diff != "" {
		t.Errorf("supporters mismatch (-want +got):\n%s", diff)
	}

	single := res.Clusters[1]
	if diff := cmp.Diff([]string{"E003"}, single.EvidenceIDs); diff != "" {
		t.Errorf("singleton mismatch (-want +got):\n%s", diff)
	}
	if len(single.Supporters) != 0 {
		t.Errorf("singleton supporters = %v", single.Supporters)
	}
}

func TestApply_ChangeDetection(t *testing.T) {
	p := fixture()
	_, changed, added := Link(p, DefaultConfig())
	if !changed || added != 2 {
		t.Fatalf("first Link: changed=%v added=%d, want true/2", changed, added)
	}
	if diff := cmp.Diff([]string{"E001", "E002"}, p.Propositions[0].HeuristicSupportingEvidence); diff != "" {
		t.Errorf("heuristic ids mismatch (-want +got):\n%s", diff)
	}

	_, changed, added = Link(p, DefaultConfig())
	if changed || added != 0 {
		t.Errorf("second Link: changed=%v added=%d, want false/0", changed, added)
	}
}

func TestApply_NeverOverlapsConfirmed(t *testing.T) {
	p := fixture()
	res := Result{Suggestions: map[string][]Suggestion{
		"P001": {{EvidenceID: "E004"}, {EvidenceID: "E001"}},
	}}
	Apply(p, res)
	if diff := cmp.Diff([]string{"E001"}, p.Propositions[0].HeuristicSupportingEvidence); diff != "" {
		t.Errorf("heuristic ids mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_ClearsSuggestionsOfPrunedProposition(t *testing.T) {
	p := fixture()
	Link(p, DefaultConfig())
	p.Propositions[0].Status = knowledge.StatusWeak

	_, changed, _ := Link(p, DefaultConfig())
	if !changed || len(p.Propositions[0].HeuristicSupportingEvidence) != 0 {
		t.Errorf("weak proposition kept suggestions: %v", p.Propositions[0].HeuristicSupportingEvidence)
	}
}

func TestComponents_ThresholdUsesRawTotal(t *testing.T) {
	c := components{category: 0.9999}
	if got := c.score().Score; got != 0.45 {
		t.Fatalf("reported score = %v, want 0.45", got)
	}
	if c.total() >= 0.45 {
		t.Errorf("raw total %v reached a threshold only its rounded form meets", c.total())
	}
}
