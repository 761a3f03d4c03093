package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"interviewlab/internal/format"
	"interviewlab/internal/knowledge"
)

// Fallback renders a deterministic report built only from stored evidence.
// reason, when set, is stated in the method notes.
func Fallback(p *knowledge.ProjectState, reason string) string {
	var b strings.Builder
	if len(p.Evidence) == 0 {
		b.WriteString("# Report Not Ready\n\n")
		fmt.Fprintf(&b, "Research question: %s\n\n", p.ResearchQuestion)
		b.WriteString("No interview evidence is currently stored for this project. ")
		b.WriteString("Process at least one interview before generating a report.\n")
		return b.String()
	}

	b.WriteString("# Research Report (Grounded Fallback)\n\n")
	fmt.Fprintf(&b, "Research question: %s\n\n", p.ResearchQuestion)

	st := p.Stats()
	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "%d interviews, %d evidence items, %d propositions (%d active). ",
		st.InterviewsCount, st.EvidenceCount, st.PropositionsCount, st.ActivePropositionsCount)
	fmt.Fprintf(&b, "Mode %s, convergence %s, novelty %s.\n\n",
		st.Mode, format.Score(st.ConvergenceScore), format.Score(st.NoveltyRate))
	b.WriteString(format.PropositionsTable(ranked(p.Propositions), format.Markdown))
	b.WriteString("\n\n## Findings\n")

	used := map[string]bool{}
	for _, prop := range ranked(p.Propositions) {
		if prop.Status == knowledge.StatusMerged {
			continue
		}
		fmt.Fprintf(&b, "\n### %s: %s -> %s -> %s\n\n", prop.ID, prop.Factor, prop.Mechanism, prop.Outcome)
		fmt.Fprintf(&b, "Status %s, confidence %s.\n", prop.Status, format.Score(prop.Confidence))
		writeEvidence(&b, p, "Supporting evidence", prop.SupportingEvidence, used)
		writeEvidence(&b, p, "Contradicting evidence", prop.ContradictingEvidence, used)
	}

	var rest []string
	for _, e := range p.Evidence {
		if !used[e.ID] {
			rest = append(rest, e.ID)
		}
	}
	if len(rest) > 0 {
		b.WriteString("\n## Evidence Not Yet Linked\n")
		writeEvidence(&b, p, "", rest, used)
	}

	b.WriteString("\n## Method Notes\n\n")
	b.WriteString("This report was assembled from stored evidence without model synthesis. ")
	b.WriteString("Quotes are reproduced exactly as recorded.\n")
	if reason != "" {
		fmt.Fprintf(&b, "\nReason: %s\n", reason)
	}
	return b.String()
}

func writeEvidence(b *strings.Builder, p *knowledge.ProjectState, title string, ids []string, used map[string]bool) {
	if len(ids) == 0 {
		return
	}
	if title != "" {
		fmt.Fprintf(b, "\n%s:\n", title)
	}
	b.WriteString("\n")
	for _, id := range ids {
		e := p.FindEvidence(id)
		if e == nil {
			continue
		}
		used[id] = true
		fmt.Fprintf(b, "- %s (%s). Quote (EN): %q\n", e.ID, e.InterviewID, e.EnglishQuote())
		if e.Language != knowledge.LangEnglish && e.Quote != e.EnglishQuote() {
			fmt.Fprintf(b, "  Original (%s): %q\n", e.Language, e.Quote)
		}
		fmt.Fprintf(b, "  Interpretation: %s\n", e.Interpretation)
	}
}

// ranked orders propositions by confidence, then id.
func ranked(props []knowledge.Proposition) []knowledge.Proposition {
	out := append([]knowledge.Proposition(nil), props...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})
	return out
}
