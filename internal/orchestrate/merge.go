package orchestrate

import (
	"log/slog"
	"time"

	"interviewlab/internal/knowledge"
)

// merged collects what one analysis changed, for event emission.
type merged struct {
	evidence     []knowledge.Evidence
	propositions []knowledge.Proposition
	updates      []knowledge.PropositionUpdate
	mapped       int
	merges       int
	prunes       int
}

// applyAnalysis merges res into p. index is the 1-based ordinal of the
// interview being processed. Proposals that reference unknown ids are dropped.
func applyAnalysis(p *knowledge.ProjectState, res *knowledge.AnalysisResult, interviewID string, index int, now time.Time, log *slog.Logger) merged {
	var out merged

	for _, e := range res.NewEvidence {
		if e.InterviewID == "" {
			e.InterviewID = interviewID
		}
		if e.Language == "" {
			e.Language = p.Language
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		out.evidence = append(out.evidence, *p.AddEvidence(e))
	}

	for _, prop := range res.NewPropositions {
		if prop.FirstSeenInterview <= 0 {
			prop.FirstSeenInterview = index
		}
		prop.LastUpdatedInterview = index
		prop.MergedInto = ""
		out.propositions = append(out.propositions, *p.AddProposition(prop))
	}

	linked := map[string]bool{}
	mappings := append(append([]knowledge.EvidenceMapping(nil), res.EvidenceMappings...), res.RetroactiveMappings...)
	for _, m := range mappings {
		prop := p.FindProposition(m.PropositionID)
		if prop == nil || p.FindEvidence(m.EvidenceID) == nil {
			log.Debug("mapping dropped: unknown id", "evidence", m.EvidenceID, "proposition", m.PropositionID)
			continue
		}
		if !prop.Link(m.EvidenceID, m.Relationship) {
			log.Debug("mapping dropped: unknown relationship", "relationship", m.Relationship)
			continue
		}
		prop.LastUpdatedInterview = index
		linked[prop.ID] = true
		out.mapped++
	}

	for _, u := range res.PropositionUpdates {
		prop := p.FindProposition(u.ID)
		if prop == nil {
			log.Debug("update dropped: unknown proposition", "proposition", u.ID)
			continue
		}
		prop.Confidence = knowledge.Clamp01(u.NewConfidence)
		prop.Status = knowledge.ParsePropositionStatus(string(u.NewStatus), knowledge.StatusExploring)
		prop.LastUpdatedInterview = index
		u.NewConfidence = prop.Confidence
		u.NewStatus = prop.Status
		out.updates = append(out.updates, u)
	}

	for _, mp := range res.Merges {
		if m, ok := applyMerge(p, mp, index); ok {
			out.propositions = append(out.propositions, m)
			out.merges++
			for _, id := range mp.SourceIDs {
				if src := p.FindProposition(id); src != nil && src.MergedInto == m.ID {
					out.updates = append(out.updates, knowledge.PropositionUpdate{
						ID: src.ID, NewConfidence: src.Confidence, NewStatus: src.Status,
					})
				}
			}
			continue
		}
		log.Debug("merge dropped: no known source", "sources", mp.SourceIDs)
	}

	for _, id := range res.Prunes {
		prop := p.FindProposition(id)
		if prop == nil {
			continue
		}
		prop.Status = knowledge.StatusWeak
		out.prunes++
	}

	for i := range p.Propositions {
		prop := &p.Propositions[i]
		if prop.Status.Inactive() {
			continue
		}
		if linked[prop.ID] {
			prop.InterviewsWithoutNewEvidence = 0
		} else if prop.FirstSeenInterview < index {
			prop.InterviewsWithoutNewEvidence++
		}
	}

	p.Metrics = knowledge.Metrics{
		ConvergenceScore: knowledge.Clamp01(res.Metrics.ConvergenceScore),
		NoveltyRate:      knowledge.Clamp01(res.Metrics.NoveltyRate),
		Mode:             knowledge.ParseMode(string(res.Metrics.Mode)),
	}
	return out
}

// applyMerge folds the known, unmerged sources of mp into a new proposition
// carrying the union of their confirmed evidence.
func applyMerge(p *knowledge.ProjectState, mp knowledge.MergeProposal, index int) (knowledge.Proposition, bool) {
	if mp.Merged == nil {
		return knowledge.Proposition{}, false
	}
	var sources []string
	first := index
	target := *mp.Merged
	target.SupportingEvidence = nil
	target.ContradictingEvidence = nil
	target.HeuristicSupportingEvidence = nil
	target.MergedInto = ""
	for _, id := range mp.SourceIDs {
		src := p.FindProposition(id)
		if src == nil || src.Status == knowledge.StatusMerged {
			continue
		}
		sources = append(sources, src.ID)
		for _, ev := range src.SupportingEvidence {
			target.Link(ev, knowledge.Supports)
		}
		for _, ev := range src.ContradictingEvidence {
			target.Link(ev, knowledge.Contradicts)
		}
		if src.FirstSeenInterview > 0 && src.FirstSeenInterview < first {
			first = src.FirstSeenInterview
		}
	}
	if len(sources) == 0 {
		return knowledge.Proposition{}, false
	}
	target.FirstSeenInterview = first
	target.LastUpdatedInterview = index
	if target.Status == "" || target.Status == knowledge.StatusMerged {
		target.Status = knowledge.StatusExploring
	}
	added := *p.AddProposition(target)
	for _, id := range sources {
		src := p.FindProposition(id)
		src.Status = knowledge.StatusMerged
		src.MergedInto = added.ID
		src.LastUpdatedInterview = index
	}
	return added, true
}
