package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"interviewlab/internal/analyst"
	"interviewlab/internal/orchestrate"
)

var processFlags struct {
	project        string
	conversationID string
	transcript     string
	analysis       string
	language       string
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Merge one interview transcript into a project",
	Long: `Analyses a transcript, merges the evidence into the project, relinks
heuristic suggestions and stores the next script version.

With --analysis the given YAML/JSON analysis object is used instead of
calling the analyst model. Re-running with the same --conversation-id is a
no-op reported as duplicate.`,
	RunE: runProcess,
}

func init() {
	f := processCmd.Flags()
	f.StringVar(&processFlags.project, "project", "", "Project ID (required)")
	f.StringVar(&processFlags.conversationID, "conversation-id", "", "Conversation ID (default: random UUID)")
	f.StringVarP(&processFlags.transcript, "transcript", "t", "", "Transcript file, - for stdin (required)")
	f.StringVar(&processFlags.analysis, "analysis", "", "Pre-computed analysis file (YAML or JSON)")
	f.StringVar(&processFlags.language, "language", "", "Transcript language (default: project language)")

	_ = processCmd.MarkFlagRequired("project")
	_ = processCmd.MarkFlagRequired("transcript")
}

func runProcess(cmd *cobra.Command, _ []string) error {
	text, err := readInput(processFlags.transcript, cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	if strings.TrimSpace(string(text)) == "" {
		return fmt.Errorf("transcript %s is empty", processFlags.transcript)
	}
	var an orchestrate.Analyst
	if processFlags.analysis != "" {
		obj, err := readObject(processFlags.analysis, cmd.InOrStdin())
		if err != nil {
			return err
		}
		an = analyst.Static{Payload: obj}
	}

	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()

	convID := processFlags.conversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	req := orchestrate.Request{
		ProjectID:      processFlags.project,
		ConversationID: convID,
		Transcript:     string(text),
		Language:       processFlags.language,
		Metadata:       map[string]any{"source": "cli"},
	}
	var out *orchestrate.Outcome
	if an != nil {
		out, err = e.orch.ProcessWith(cmd.Context(), req, an)
	} else {
		out, err = e.orch.Process(cmd.Context(), req)
	}
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func printOutcome(w io.Writer, o *orchestrate.Outcome) {
	fmt.Fprintf(w, "Status:         %s\n", o.Status)
	fmt.Fprintf(w, "Project:        %s (%s)\n", o.ProjectID, o.ProjectStatus)
	if o.ConversationID != "" {
		fmt.Fprintf(w, "Conversation:   %s\n", o.ConversationID)
	}
	if o.InterviewID != "" {
		fmt.Fprintf(w, "Interview:      %s\n", o.InterviewID)
	}
	fmt.Fprintf(w, "Script version: %d\n", o.ScriptVersion)
	if o.Status == orchestrate.StatusDuplicate {
		return
	}
	fmt.Fprintf(w, "New evidence:   %d\n", o.NewEvidence)
	fmt.Fprintf(w, "New props:      %d\n", o.NewPropositions)
	if o.HeuristicLinksAdded > 0 {
		fmt.Fprintf(w, "Heuristic:      +%d links\n", o.HeuristicLinksAdded)
	}
	fmt.Fprintf(w, "Prompt safety:  %s (%d violations)\n", o.SafetyStatus, o.SafetyViolations)
	if o.TopicRedirect {
		fmt.Fprintf(w, "Topic redirect: applied\n")
	}
	if o.FallbackScript {
		fmt.Fprintf(w, "Script source:  fallback\n")
	}
	if o.SyncPending {
		fmt.Fprintf(w, "Sync:           pending (run 'interviewlab sync --project=%s')\n", o.ProjectID)
	}
	if o.ReportStale {
		fmt.Fprintf(w, "Report:         stale\n")
	}
	if o.TalkToLink != "" {
		fmt.Fprintf(w, "Talk to agent:  %s\n", o.TalkToLink)
	}
}
