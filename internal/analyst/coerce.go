package analyst

import (
	"strings"

	"interviewlab/internal/knowledge"
	"interviewlab/internal/payload"
)

// Coerce converts a loosely typed analysis payload into an AnalysisResult.
// Invalid items are dropped; missing or malformed scalars take defaults.
// lang is the evidence language assumed when an item does not name one.
func Coerce(o payload.Object, interviewID string, interviewIndex int, lang string) *knowledge.AnalysisResult {
	if lang == "" {
		lang = knowledge.LangEnglish
	}
	res := &knowledge.AnalysisResult{
		EvidenceMappings:    Mappings(o.Objects("evidence_mappings")),
		RetroactiveMappings: Mappings(o.Objects("retroactive_mappings")),
		Prunes:              o.Strings("prunes"),
		Metrics:             coerceMetrics(o.Object("metrics")),
	}
	for _, it := range o.Objects("new_evidence") {
		if e, ok := coerceEvidence(it, interviewID, lang); ok {
			res.NewEvidence = append(res.NewEvidence, e)
		}
	}
	res.NewPropositions = Propositions(o.Objects("new_propositions"), interviewIndex)
	for _, it := range o.Objects("proposition_updates") {
		id := it.String("id", "")
		if id == "" {
			continue
		}
		res.PropositionUpdates = append(res.PropositionUpdates, knowledge.PropositionUpdate{
			ID:            id,
			NewConfidence: knowledge.Clamp01(it.Float("new_confidence", 0)),
			NewStatus:     knowledge.ParsePropositionStatus(it.String("new_status", ""), knowledge.StatusExploring),
		})
	}
	for _, it := range o.Objects("merges") {
		sources := it.Strings("source_ids")
		if len(sources) == 0 {
			continue
		}
		merged := Propositions([]payload.Object{it.Object("merged_proposition")}, interviewIndex)
		if len(merged) == 0 {
			continue
		}
		res.Merges = append(res.Merges, knowledge.MergeProposal{SourceIDs: sources, Merged: &merged[0]})
	}
	return res
}

func coerceEvidence(it payload.Object, interviewID, lang string) (knowledge.Evidence, bool) {
	e := knowledge.Evidence{
		ID:             it.String("id", ""),
		InterviewID:    interviewID,
		Quote:          it.String("quote", ""),
		Interpretation: it.String("interpretation", ""),
		Factor:         it.String("factor", ""),
		Mechanism:      it.String("mechanism", ""),
		Outcome:        it.String("outcome", ""),
		Tags:           it.Strings("tags"),
		Language:       it.String("language", ""),
	}
	if e.Quote == "" || e.Interpretation == "" || e.Factor == "" || e.Mechanism == "" || e.Outcome == "" {
		return e, false
	}
	if e.Language == "" {
		e.Language = lang
	}
	english := it.String("quote_english", "")
	switch {
	case strings.HasPrefix(strings.ToLower(e.Language), knowledge.LangEnglish):
		q := e.Quote
		e.QuoteEnglish = &q
		e.TranslationStatus = knowledge.TranslationNativeEN
	case english != "":
		e.QuoteEnglish = &english
		e.TranslationStatus = knowledge.TranslationTranslated
	default:
		e.TranslationStatus = knowledge.TranslationPending
	}
	return e, true
}

// Propositions coerces proposition objects. Items without a factor,
// mechanism and outcome are dropped. index fills missing interview ordinals.
func Propositions(items []payload.Object, index int) []knowledge.Proposition {
	var out []knowledge.Proposition
	for _, it := range items {
		if it == nil {
			continue
		}
		p := knowledge.Proposition{
			ID:                    it.String("id", ""),
			Factor:                it.String("factor", ""),
			Mechanism:             it.String("mechanism", ""),
			Outcome:               it.String("outcome", ""),
			Confidence:            knowledge.Clamp01(it.Float("confidence", 0)),
			Status:                knowledge.ParsePropositionStatus(it.String("status", ""), knowledge.StatusUntested),
			SupportingEvidence:    it.Strings("supporting_evidence"),
			ContradictingEvidence: it.Strings("contradicting_evidence"),
			FirstSeenInterview:    it.Int("first_seen_interview", index),
			LastUpdatedInterview:  it.Int("last_updated_interview", index),
		}
		if p.Factor == "" || p.Mechanism == "" || p.Outcome == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Mappings keeps the items with a known relationship and both ids set.
func Mappings(items []payload.Object) []knowledge.EvidenceMapping {
	var out []knowledge.EvidenceMapping
	for _, it := range items {
		rel := knowledge.Relationship(strings.ToLower(it.String("relationship", "")))
		if rel != knowledge.Supports && rel != knowledge.Contradicts {
			continue
		}
		m := knowledge.EvidenceMapping{
			EvidenceID:    it.String("evidence_id", ""),
			PropositionID: it.String("proposition_id", ""),
			Relationship:  rel,
		}
		if m.EvidenceID == "" || m.PropositionID == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func coerceMetrics(o payload.Object) knowledge.Metrics {
	return knowledge.Metrics{
		ConvergenceScore: knowledge.Clamp01(o.Float("convergence_score", 0)),
		NoveltyRate:      knowledge.Clamp01(o.Float("novelty_rate", 1)),
		Mode:             knowledge.ParseMode(o.String("mode", "")),
	}
}
