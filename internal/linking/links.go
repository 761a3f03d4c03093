package linking

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"interviewlab/internal/knowledge"
)

// Config holds the thresholds of the linking pass.
type Config struct {
	LinkThreshold      float64 `json:"link_threshold" yaml:"link_threshold"`           // evidence~proposition and evidence~evidence (default 0.70)
	SupporterThreshold float64 `json:"supporter_threshold" yaml:"supporter_threshold"` // cluster~mapped evidence (default 0.45)
	MaxSuggestions     int     `json:"max_suggestions" yaml:"max_suggestions"`         // per proposition (default 3)
	MaxConfirmed       int     `json:"max_confirmed" yaml:"max_confirmed"`             // skip propositions with more confirmed links (default 4)
	MaxSupporters      int     `json:"max_supporters" yaml:"max_supporters"`           // per cluster (default 6)
}

// DefaultConfig returns the standard linking thresholds.
func DefaultConfig() Config {
	return Config{
		LinkThreshold:      0.70,
		SupporterThreshold: 0.45,
		MaxSuggestions:     3,
		MaxConfirmed:       4,
		MaxSupporters:      6,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LinkThreshold <= 0 {
		c.LinkThreshold = d.LinkThreshold
	}
	if c.SupporterThreshold <= 0 {
		c.SupporterThreshold = d.SupporterThreshold
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = d.MaxSuggestions
	}
	if c.MaxConfirmed <= 0 {
		c.MaxConfirmed = d.MaxConfirmed
	}
	if c.MaxSupporters <= 0 {
		c.MaxSupporters = d.MaxSupporters
	}
	return c
}

const (
	weightCategory = 0.45
	weightTags     = 0.35
	weightTokens   = 0.20

	clusterTokenCount = 6
	labelTokenCount   = 3
)

// Score is a weighted similarity with its three components.
type Score struct {
	Score    float64 `json:"score"`
	Category float64 `json:"proposition_overlap"`
	Tags     float64 `json:"tag_overlap"`
	Tokens   float64 `json:"fmo_overlap"`
}

// components holds unrounded overlaps; thresholds compare against total.
type components struct {
	category, tags, tokens float64
}

func (c components) total() float64 {
	return weightCategory*c.category + weightTags*c.tags + weightTokens*c.tokens
}

// score rounds for reporting only.
func (c components) score() Score {
	return Score{
		Score:    round3(c.total()),
		Category: round3(c.category),
		Tags:     round3(c.tags),
		Tokens:   round3(c.tokens),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Suggestion is a heuristic evidence candidate for one proposition.
type Suggestion struct {
	EvidenceID string `json:"evidence_id"`
	Score
}

// Supporter is already-mapped evidence that resembles a candidate cluster.
type Supporter struct {
	EvidenceID string  `json:"evidence_id"`
	Score      float64 `json:"score"`
}

// Cluster is a connected component of mutually similar unlinked evidence.
type Cluster struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Tokens      []string    `json:"tokens"`
	EvidenceIDs []string    `json:"evidence_ids"`
	Supporters  []Supporter `json:"potential_supporters"`
}

// Result is the outcome of one linking pass.
type Result struct {
	Suggestions map[string][]Suggestion `json:"suggestions"`
	Clusters    []Cluster               `json:"clusters"`
	Unassigned  []string                `json:"unassigned"`
}

type feature struct {
	id         string
	categories set
	tags       set
	fmo        set
	quote      set
	mapped     bool
}

func features(p *knowledge.ProjectState) ([]feature, map[string][]string) {
	links := p.EvidenceLinks()
	out := make([]feature, 0, len(p.Evidence))
	for i := range p.Evidence {
		e := &p.Evidence[i]
		f := feature{
			id:    e.ID,
			tags:  set{},
			fmo:   tokenSet(e.Factor + " " + e.Mechanism + " " + e.Outcome),
			quote: tokenSet(e.EnglishQuote()),
		}
		for _, t := range e.Tags {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				f.tags[t] = struct{}{}
			}
		}
		if props := links[e.ID]; len(props) > 0 {
			f.mapped = true
			f.categories = toSet(props)
		} else if factor := strings.ToLower(strings.TrimSpace(e.Factor)); factor != "" {
			f.categories = set{"factor:" + factor: {}}
		} else {
			f.categories = set{}
		}
		out = append(out, f)
	}
	return out, links
}

// similarity compares two evidence items.
func similarity(a, b feature) components {
	return components{jaccard(a.categories, b.categories), jaccard(a.tags, b.tags), jaccard(a.fmo, b.fmo)}
}

// hypothesisScore compares an evidence item to a proposition's FMO tokens.
func hypothesisScore(f feature, prop set) components {
	return components{
		jaccard(f.fmo, prop),
		jaccard(f.tags.union(f.fmo), prop),
		jaccard(f.quote.union(f.fmo), prop),
	}
}

// Compute runs the linking pass over p without mutating it.
func Compute(p *knowledge.ProjectState, cfg Config) Result {
	cfg = cfg.withDefaults()
	feats, _ := features(p)

	var unassigned []feature
	for _, f := range feats {
		if !f.mapped {
			unassigned = append(unassigned, f)
		}
	}

	res := Result{Suggestions: map[string][]Suggestion{}}
	for _, f := range unassigned {
		res.Unassigned = append(res.Unassigned, f.id)
	}

	for i := range p.Propositions {
		prop := &p.Propositions[i]
		if prop.Status.Inactive() || prop.ConfirmedCount() > cfg.MaxConfirmed {
			continue
		}
		propTokens := tokenSet(prop.FMO())
		type candidate struct {
			id  string
			raw components
		}
		var cands []candidate
		for _, f := range unassigned {
			if prop.IsConfirmed(f.id) {
				continue
			}
			c := hypothesisScore(f, propTokens)
			if c.total() < cfg.LinkThreshold {
				continue
			}
			cands = append(cands, candidate{id: f.id, raw: c})
		}
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].raw.total() > cands[b].raw.total() })
		if len(cands) > cfg.MaxSuggestions {
			cands = cands[:cfg.MaxSuggestions]
		}
		out := make([]Suggestion, len(cands))
		for j, c := range cands {
			out[j] = Suggestion{EvidenceID: c.id, Score: c.raw.score()}
		}
		res.Suggestions[prop.ID] = out
	}

	res.Clusters = cluster(unassigned, feats, cfg)
	return res
}

// cluster groups unassigned evidence breadth-first with similarity >= the
// link threshold as adjacency.
func cluster(unassigned, all []feature, cfg Config) []Cluster {
	var clusters []Cluster
	visited := make(map[string]bool, len(unassigned))
	for _, start := range unassigned {
		if visited[start.id] {
			continue
		}
		visited[start.id] = true
		members := []feature{start}
		for q := 0; q < len(members); q++ {
			cur := members[q]
			for _, cand := range unassigned {
				if visited[cand.id] {
					continue
				}
				if similarity(cur, cand).total() >= cfg.LinkThreshold {
					visited[cand.id] = true
					members = append(members, cand)
				}
			}
		}

		c := Cluster{ID: fmt.Sprintf("CLUSTER_%03d", len(clusters)+1)}
		counts := map[string]int{}
		inCluster := map[string]bool{}
		for _, m := range members {
			c.EvidenceIDs = append(c.EvidenceIDs, m.id)
			inCluster[m.id] = true
			for t := range m.fmo {
				counts[t]++
			}
			for t := range m.tags {
				counts[t]++
			}
		}
		c.Tokens = topTokens(counts, clusterTokenCount)
		c.Label = label(c.Tokens)

		tokens := toSet(c.Tokens)
		for _, f := range all {
			if !f.mapped || inCluster[f.id] {
				continue
			}
			if s := jaccard(tokens, f.fmo.union(f.tags)); s >= cfg.SupporterThreshold {
				c.Supporters = append(c.Supporters, Supporter{EvidenceID: f.id, Score: round3(s)})
			}
		}
		sort.SliceStable(c.Supporters, func(a, b int) bool { return c.Supporters[a].Score > c.Supporters[b].Score })
		if len(c.Supporters) > cfg.MaxSupporters {
			c.Supporters = c.Supporters[:cfg.MaxSupporters]
		}
		clusters = append(clusters, c)
	}
	return clusters
}

func topTokens(counts map[string]int, n int) []string {
	tokens := make([]string, 0, len(counts))
	for t := range counts {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	if len(tokens) > n {
		tokens = tokens[:n]
	}
	return tokens
}

func label(tokens []string) string {
	var top []string
	for _, t := range tokens {
		if _, stop := stopwords[t]; stop || len([]rune(t)) <= 2 {
			continue
		}
		top = append(top, t)
		if len(top) == labelTokenCount {
			break
		}
	}
	if len(top) == 0 {
		return "emerging pattern"
	}
	return strings.Join(top, " / ")
}

// Apply replaces each proposition's heuristic suggestions with the ids in
// res when they differ. It reports whether anything changed and how many ids
// are new.
func Apply(p *knowledge.ProjectState, res Result) (changed bool, added int) {
	for i := range p.Propositions {
		prop := &p.Propositions[i]
		var ids []string
		for _, s := range res.Suggestions[prop.ID] {
			if !prop.IsConfirmed(s.EvidenceID) {
				ids = append(ids, s.EvidenceID)
			}
		}
		if equal(ids, prop.HeuristicSupportingEvidence) {
			continue
		}
		prev := toSet(prop.HeuristicSupportingEvidence)
		for _, id := range ids {
			if _, ok := prev[id]; !ok {
				added++
			}
		}
		prop.HeuristicSupportingEvidence = ids
		changed = true
	}
	return changed, added
}

// Link computes suggestions for p and applies them.
func Link(p *knowledge.ProjectState, cfg Config) (Result, bool, int) {
	res := Compute(p, cfg)
	changed, added := Apply(p, res)
	return res, changed, added
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
