package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var translateFlags struct {
	project  string
	evidence string
	english  string
}

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Record the English rendition of a non-English evidence quote",
	RunE:  runTranslate,
}

func init() {
	f := translateCmd.Flags()
	f.StringVar(&translateFlags.project, "project", "", "Project ID (required)")
	f.StringVar(&translateFlags.evidence, "evidence", "", "Evidence ID, e.g. E004 (required)")
	f.StringVar(&translateFlags.english, "english", "", "English translation of the quote (required)")

	_ = translateCmd.MarkFlagRequired("project")
	_ = translateCmd.MarkFlagRequired("evidence")
	_ = translateCmd.MarkFlagRequired("english")
}

func runTranslate(cmd *cobra.Command, _ []string) error {
	if err := required("english", translateFlags.english); err != nil {
		return err
	}
	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.orch.SetTranslation(cmd.Context(), translateFlags.project, translateFlags.evidence, translateFlags.english); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Evidence %s translated\n", translateFlags.evidence)
	return nil
}
