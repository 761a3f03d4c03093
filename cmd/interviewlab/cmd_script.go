package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"interviewlab/internal/designer"
	"interviewlab/internal/format"
	"interviewlab/internal/knowledge"
)

var scriptFlags struct {
	project string
	version int
	prompt  bool
	asJSON  bool
	format  string
}

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Show an interview script version or its rendered agent prompt",
	RunE:  runScript,
}

func init() {
	f := scriptCmd.Flags()
	f.StringVar(&scriptFlags.project, "project", "", "Project ID (required)")
	f.IntVar(&scriptFlags.version, "version", 0, "Script version (default: current)")
	f.BoolVar(&scriptFlags.prompt, "prompt", false, "Print the rendered interviewer prompt")
	f.BoolVar(&scriptFlags.asJSON, "json", false, "Print the script as JSON")
	f.StringVar(&scriptFlags.format, "format", "ascii", "Table format: ascii, markdown or csv")

	_ = scriptCmd.MarkFlagRequired("project")
}

func runScript(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(scriptFlags.format)
	if err != nil {
		return err
	}
	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := e.orch.Load(cmd.Context(), scriptFlags.project)
	if err != nil {
		return err
	}
	var s *knowledge.InterviewScript
	if scriptFlags.version == 0 {
		s = p.CurrentScript()
	} else {
		for i := range p.Scripts {
			if p.Scripts[i].Version == scriptFlags.version {
				s = &p.Scripts[i]
			}
		}
	}
	if s == nil {
		return fmt.Errorf("project %s has no script version %d", p.ID, scriptFlags.version)
	}

	out := cmd.OutOrStdout()
	switch {
	case scriptFlags.prompt:
		prompt, err := designer.RenderPrompt(s, p.Language, e.cfg.Engine.MaxSections)
		if err != nil {
			return fmt.Errorf("render prompt: %w", err)
		}
		fmt.Fprintln(out, prompt)
	case scriptFlags.asJSON:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	default:
		fmt.Fprintf(out, "Version %d (%s, convergence %s, novelty %s)\n", s.Version, s.Mode,
			format.Score(s.ConvergenceScore), format.Score(s.NoveltyRate))
		fmt.Fprintf(out, "Changes: %s\n", s.ChangesSummary)
		fmt.Fprintf(out, "Opening: %s\n\n", s.OpeningQuestion)
		fmt.Fprintln(out, format.ScriptTable(s, mode))
		fmt.Fprintf(out, "\nClosing:  %s\nWildcard: %s\n", s.ClosingQuestion, s.Wildcard)
	}
	return nil
}
