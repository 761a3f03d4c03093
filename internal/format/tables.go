package format

import (
	"fmt"
	"strings"

	"interviewlab/internal/knowledge"
	"interviewlab/internal/linking"
	"interviewlab/internal/safety"
)

// StatsTable renders the project snapshot as a two-column table.
func StatsTable(s knowledge.Stats, m Mode) string {
	tb := NewTable(m)
	tb.Header("Field", "Value")
	tb.Row("Project", s.ProjectID)
	tb.Row("Status", s.Status)
	tb.Row("Interviews", s.InterviewsCount)
	tb.Row("Evidence", s.EvidenceCount)
	tb.Row("Propositions", fmt.Sprintf("%d (%d active)", s.PropositionsCount, s.ActivePropositionsCount))
	tb.Row("Script version", s.ScriptVersion)
	tb.Row("Mode", s.Mode)
	tb.Row("Convergence", Score(s.ConvergenceScore))
	tb.Row("Novelty", Score(s.NoveltyRate))
	tb.Row("Prompt safety", fmt.Sprintf("%s (%d violations)", s.PromptSafetyStatus, s.PromptSafetyViolations))
	tb.Row("Sync pending", BoolMark(s.SyncPending))
	tb.Row("Report stale", BoolMark(s.ReportStale))
	if s.ReportGenerationMode != "" {
		tb.Row("Report mode", s.ReportGenerationMode)
	}
	tb.Columns(ColumnConfig{Number: 2, Align: AlignLeft})
	return tb.String()
}

// PropositionsTable lists propositions with their evidence counts.
func PropositionsTable(props []knowledge.Proposition, m Mode) string {
	tb := NewTable(m)
	tb.Title("Propositions")
	tb.Header("ID", "Status", "Conf", "Factor -> Mechanism -> Outcome", "Sup", "Con", "Heur")
	for _, p := range props {
		fmo := strings.Join([]string{p.Factor, p.Mechanism, p.Outcome}, " -> ")
		tb.Row(p.ID, p.Status, Score(p.Confidence), Truncate(fmo, 70),
			len(p.SupportingEvidence), len(p.ContradictingEvidence), len(p.HeuristicSupportingEvidence))
	}
	tb.Columns(
		ColumnConfig{Number: 3, Align: AlignRight},
		ColumnConfig{Number: 4, MaxWidth: 70},
		ColumnConfig{Number: 5, Align: AlignRight},
		ColumnConfig{Number: 6, Align: AlignRight},
		ColumnConfig{Number: 7, Align: AlignRight},
	)
	return tb.String()
}

// ScriptTable lists the sections of a script.
func ScriptTable(s *knowledge.InterviewScript, m Mode) string {
	tb := NewTable(m)
	tb.Header("#", "Proposition", "Instruction", "Priority", "Main question", "Probes")
	if s != nil {
		for i, sec := range s.Sections {
			tb.Row(i+1, sec.PropositionID, sec.Instruction, sec.Priority,
				Truncate(sec.MainQuestion, 60), len(sec.Probes))
		}
	}
	tb.Columns(ColumnConfig{Number: 5, MaxWidth: 60})
	return tb.String()
}

// ViolationsTable lists safety findings. Script-level fields show "-" as
// section.
func ViolationsTable(vs []safety.Violation, m Mode) string {
	tb := NewTable(m)
	tb.Header("Section", "Field", "Reason", "Text")
	for _, v := range vs {
		sec := "-"
		if v.SectionIndex >= 0 {
			sec = fmt.Sprint(v.SectionIndex + 1)
		}
		tb.Row(sec, v.Field, v.Reason, Truncate(v.Value, 60))
	}
	return tb.String()
}

// ClustersTable lists candidate clusters of a hypothesis map.
func ClustersTable(hm *linking.Map, m Mode) string {
	tb := NewTable(m)
	tb.Title("Candidate clusters")
	tb.Header("Cluster", "Label", "Evidence", "Potential supporters")
	for _, c := range hm.Clusters {
		var sup []string
		for _, s := range c.Supporters {
			sup = append(sup, s.EvidenceID)
		}
		tb.Row(c.ID, c.Label, List(c.EvidenceIDs), List(sup))
	}
	tb.Footer("", "unassigned", hm.Stats.UnassignedEvidence, "")
	return tb.String()
}
