package main

import (
	"github.com/spf13/cobra"
)

var startFlags struct {
	project string
	agentID string
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Design the initial propositions and the first interview script",
	RunE:  runStart,
}

func init() {
	f := startCmd.Flags()
	f.StringVar(&startFlags.project, "project", "", "Project ID (required)")
	f.StringVar(&startFlags.agentID, "agent-id", "", "Bind the project to this voice agent first")

	_ = startCmd.MarkFlagRequired("project")
}

func runStart(cmd *cobra.Command, _ []string) error {
	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()

	out, err := e.orch.StartProject(cmd.Context(), startFlags.project, startFlags.agentID)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}
