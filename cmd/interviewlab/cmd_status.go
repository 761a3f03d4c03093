package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"interviewlab/internal/format"
)

var statusFlags struct {
	project string
	format  string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project statistics, or list projects when no project is given",
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusFlags.project, "project", "", "Project ID (omit to list all projects)")
	f.StringVar(&statusFlags.format, "format", "ascii", "Table format: ascii, markdown or csv")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(statusFlags.format)
	if err != nil {
		return err
	}
	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()
	out := cmd.OutOrStdout()

	if statusFlags.project == "" {
		list, err := e.orch.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No projects. Run 'interviewlab init' to create one.")
			return nil
		}
		tb := format.NewTable(mode)
		tb.Header("Project", "Status", "Lang", "Interviews", "Script", "Research question")
		for _, s := range list {
			tb.Row(s.ID, s.Status, s.Language, s.Interviews, s.ScriptVersion, format.Truncate(s.ResearchQuestion, 60))
		}
		fmt.Fprintln(out, tb.String())
		return nil
	}

	p, err := e.orch.Load(cmd.Context(), statusFlags.project)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Research question: %s\n\n", p.ResearchQuestion)
	fmt.Fprintln(out, format.StatsTable(p.Stats(), mode))
	if len(p.Propositions) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, format.PropositionsTable(p.Propositions, mode))
	}
	return nil
}
