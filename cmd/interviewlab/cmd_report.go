package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reportFlags struct {
	project string
	output  string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Synthesize the project report (markdown)",
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.project, "project", "", "Project ID (required)")
	f.StringVarP(&reportFlags.output, "output", "o", "", "Write the report to this file instead of stdout")

	_ = reportCmd.MarkFlagRequired("project")
}

func runReport(cmd *cobra.Command, _ []string) error {
	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()

	rep, err := e.orch.GenerateReport(cmd.Context(), reportFlags.project)
	if err != nil {
		return err
	}
	if rep.FallbackReason != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "report generated in %s mode: %s\n", rep.Mode, rep.FallbackReason)
	}
	if reportFlags.output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), rep.Markdown)
		return nil
	}
	if err := os.WriteFile(reportFlags.output, []byte(rep.Markdown), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", reportFlags.output)
	return nil
}
