package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncFlags struct {
	project string
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Retry pushing the current prompt to the voice agent",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncFlags.project, "project", "", "Project ID (required)")
	_ = syncCmd.MarkFlagRequired("project")
}

func runSync(cmd *cobra.Command, _ []string) error {
	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()

	pending, err := e.orch.RetrySync(cmd.Context(), syncFlags.project)
	if err != nil {
		return err
	}
	if pending {
		return fmt.Errorf("project %s: prompt sync still pending", syncFlags.project)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Project %s: prompt in sync\n", syncFlags.project)
	return nil
}
