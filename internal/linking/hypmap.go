package linking

import (
	"sort"
	"time"

	"interviewlab/internal/knowledge"
)

// Node kinds.
const (
	NodeHypothesis = "hypothesis"
	NodeEvidence   = "evidence"
	NodeCluster    = "candidate_cluster"
)

// Edge relations and sources.
const (
	RelSupports           = "supports"
	RelContradicts        = "contradicts"
	RelCandidateMember    = "candidate_member"
	RelPotentialSupporter = "potential_supporter"

	SourceAnalyst   = "llm"
	SourceHeuristic = "heuristic"
)

// Node is one vertex of the hypothesis map.
type Node struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`

	Status                string                      `json:"status,omitempty"`
	Confidence            float64                     `json:"confidence,omitempty"`
	SupportCount          int                         `json:"support_count,omitempty"`
	ContradictCount       int                         `json:"contradict_count,omitempty"`
	HeuristicSupportCount int                         `json:"heuristic_support_count,omitempty"`
	FirstSeenInterview    int                         `json:"first_seen_interview,omitempty"`
	LastUpdatedInterview  int                         `json:"last_updated_interview,omitempty"`
	InterviewID           string                      `json:"interview_id,omitempty"`
	TranslationStatus     knowledge.TranslationStatus `json:"translation_status,omitempty"`
	MappedHypotheses      []string                    `json:"mapped_hypotheses,omitempty"`
	EvidenceIDs           []string                    `json:"evidence_ids,omitempty"`
}

// Edge is one relation of the hypothesis map.
type Edge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Relation   string  `json:"relation"`
	SourceType string  `json:"source_type"`
	Score      float64 `json:"score"`
}

// MapStats counts the map's contents.
type MapStats struct {
	Hypotheses             int `json:"hypotheses"`
	Evidence               int `json:"evidence"`
	SupportsEdges          int `json:"supports_edges"`
	ContradictsEdges       int `json:"contradicts_edges"`
	HeuristicSupportsEdges int `json:"heuristic_supports_edges"`
	UnassignedEvidence     int `json:"unassigned_evidence"`
	CandidateClusters      int `json:"candidate_clusters"`
	ValidatedHypotheses    int `json:"validated_hypotheses"`
	UnvalidatedHypotheses  int `json:"unvalidated_hypotheses"`
	NewInLatestInterview   int `json:"new_hypotheses_latest_interview"`
}

// UnassignedEvidence is a pool entry for evidence without confirmed links.
type UnassignedEvidence struct {
	EvidenceID string `json:"evidence_id"`
	Factor     string `json:"factor"`
	Mechanism  string `json:"mechanism"`
	Outcome    string `json:"outcome"`
}

// Map is the structural hypothesis-map payload.
type Map struct {
	ProjectID    string                              `json:"project_id"`
	GeneratedAt  time.Time                           `json:"generated_at"`
	Stats        MapStats                            `json:"stats"`
	StatusLegend map[knowledge.PropositionStatus]int `json:"status_legend"`
	Nodes        []Node                              `json:"nodes"`
	Edges        []Edge                              `json:"edges"`
	Clusters     []Cluster                           `json:"clusters"`
	Unassigned   []UnassignedEvidence                `json:"unassigned_pool"`
}

// BuildMap assembles the hypothesis map for p. It does not mutate p.
func BuildMap(p *knowledge.ProjectState, cfg Config, now time.Time) *Map {
	res := Compute(p, cfg)
	links := p.EvidenceLinks()

	m := &Map{
		ProjectID:    p.ID,
		GeneratedAt:  now.UTC(),
		StatusLegend: make(map[knowledge.PropositionStatus]int, len(knowledge.PropositionStatuses)),
		Clusters:     res.Clusters,
	}
	for _, st := range knowledge.PropositionStatuses {
		m.StatusLegend[st] = 0
	}

	latest := len(p.Interviews)
	for i := range p.Propositions {
		prop := &p.Propositions[i]
		m.StatusLegend[prop.Status]++
		m.Nodes = append(m.Nodes, Node{
			ID:                    prop.ID,
			Type:                  NodeHypothesis,
			Label:                 prop.Factor,
			Status:                string(prop.Status),
			Confidence:            prop.Confidence,
			SupportCount:          len(prop.SupportingEvidence),
			ContradictCount:       len(prop.ContradictingEvidence),
			HeuristicSupportCount: len(res.Suggestions[prop.ID]),
			FirstSeenInterview:    prop.FirstSeenInterview,
			LastUpdatedInterview:  prop.LastUpdatedInterview,
		})
		if prop.ConfirmedCount() > 0 {
			m.Stats.ValidatedHypotheses++
		} else {
			m.Stats.UnvalidatedHypotheses++
		}
		if latest > 0 && prop.FirstSeenInterview == latest {
			m.Stats.NewInLatestInterview++
		}
	}

	for i := range p.Evidence {
		e := &p.Evidence[i]
		mapped := append([]string(nil), links[e.ID]...)
		sort.Strings(mapped)
		m.Nodes = append(m.Nodes, Node{
			ID:                e.ID,
			Type:              NodeEvidence,
			Label:             e.Factor,
			InterviewID:       e.InterviewID,
			TranslationStatus: e.TranslationStatus,
			MappedHypotheses:  mapped,
		})
		if len(mapped) == 0 {
			m.Unassigned = append(m.Unassigned, UnassignedEvidence{
				EvidenceID: e.ID, Factor: e.Factor, Mechanism: e.Mechanism, Outcome: e.Outcome,
			})
		}
	}

	for i := range p.Propositions {
		prop := &p.Propositions[i]
		for _, id := range prop.SupportingEvidence {
			if _, ok := links[id]; ok {
				m.Edges = append(m.Edges, Edge{Source: prop.ID, Target: id, Relation: RelSupports, SourceType: SourceAnalyst, Score: 1})
				m.Stats.SupportsEdges++
			}
		}
		for _, id := range prop.ContradictingEvidence {
			if _, ok := links[id]; ok {
				m.Edges = append(m.Edges, Edge{Source: prop.ID, Target: id, Relation: RelContradicts, SourceType: SourceAnalyst, Score: 1})
				m.Stats.ContradictsEdges++
			}
		}
		for _, s := range res.Suggestions[prop.ID] {
			m.Edges = append(m.Edges, Edge{Source: prop.ID, Target: s.EvidenceID, Relation: RelSupports, SourceType: SourceHeuristic, Score: s.Score.Score})
			m.Stats.HeuristicSupportsEdges++
		}
	}

	for _, c := range res.Clusters {
		m.Nodes = append(m.Nodes, Node{
			ID:          c.ID,
			Type:        NodeCluster,
			Label:       c.Label,
			EvidenceIDs: c.EvidenceIDs,
		})
		for _, id := range c.EvidenceIDs {
			m.Edges = append(m.Edges, Edge{Source: c.ID, Target: id, Relation: RelCandidateMember, SourceType: SourceHeuristic, Score: 1})
		}
		for _, s := range c.Supporters {
			m.Edges = append(m.Edges, Edge{Source: c.ID, Target: s.EvidenceID, Relation: RelPotentialSupporter, SourceType: SourceHeuristic, Score: s.Score})
		}
	}

	m.Stats.Hypotheses = len(p.Propositions)
	m.Stats.Evidence = len(p.Evidence)
	m.Stats.UnassignedEvidence = len(res.Unassigned)
	m.Stats.CandidateClusters = len(res.Clusters)
	return m
}
