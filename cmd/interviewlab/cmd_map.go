package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"interviewlab/internal/format"
)

var mapFlags struct {
	project string
	asJSON  bool
	format  string
}

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Show the hypothesis map: links, candidate clusters and unassigned evidence",
	RunE:  runMap,
}

func init() {
	f := mapCmd.Flags()
	f.StringVar(&mapFlags.project, "project", "", "Project ID (required)")
	f.BoolVar(&mapFlags.asJSON, "json", false, "Print the full map as JSON")
	f.StringVar(&mapFlags.format, "format", "ascii", "Table format: ascii, markdown or csv")

	_ = mapCmd.MarkFlagRequired("project")
}

func runMap(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(mapFlags.format)
	if err != nil {
		return err
	}
	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()

	hm, err := e.orch.HypothesisMap(cmd.Context(), mapFlags.project)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if mapFlags.asJSON {
		data, err := json.MarshalIndent(hm, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	st := hm.Stats
	fmt.Fprintf(out, "Hypotheses: %d (%d validated)  Evidence: %d  Unassigned: %d\n\n",
		st.Hypotheses, st.ValidatedHypotheses, st.Evidence, st.UnassignedEvidence)
	fmt.Fprintln(out, format.ClustersTable(hm, mode))
	return nil
}
