package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"interviewlab/internal/designer"
	"interviewlab/internal/format"
	"interviewlab/internal/knowledge"
	"interviewlab/internal/payload"
)

var checkFlags struct {
	file     string
	question string
	language string
	project  string
	format   string
}

var checkScriptCmd = &cobra.Command{
	Use:   "check-script",
	Short: "Run the safety guard over a script file without storing anything",
	Long: `Validates a YAML/JSON script object for personal references and topic
drift and prints the violations and the sanitized sections.

With --project the research question and propositions come from the stored
project.`,
	RunE: runCheckScript,
}

func init() {
	f := checkScriptCmd.Flags()
	f.StringVarP(&checkFlags.file, "file", "f", "", "Script file, - for stdin (required)")
	f.StringVar(&checkFlags.question, "question", "", "Research question for drift checks")
	f.StringVar(&checkFlags.language, "language", "", "Script language: en or ru")
	f.StringVar(&checkFlags.project, "project", "", "Take question, language and propositions from this project")
	f.StringVar(&checkFlags.format, "format", "ascii", "Table format: ascii, markdown or csv")

	_ = checkScriptCmd.MarkFlagRequired("file")
}

func runCheckScript(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(checkFlags.format)
	if err != nil {
		return err
	}
	obj, err := readObject(checkFlags.file, cmd.InOrStdin())
	if err != nil {
		return err
	}
	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()

	rq, lang := checkFlags.question, checkFlags.language
	var props []knowledge.Proposition
	if checkFlags.project != "" {
		p, err := e.orch.Load(cmd.Context(), checkFlags.project)
		if err != nil {
			return err
		}
		props = p.Propositions
		if rq == "" {
			rq = p.ResearchQuestion
		}
		if lang == "" {
			lang = p.Language
		}
	}
	if err := required("question", rq); err != nil {
		return err
	}
	if lang = knowledge.NormalizeLanguage(lang); lang == "" {
		lang = e.cfg.Engine.DefaultLanguage
	}
	if !knowledge.IsSupportedLanguage(lang) {
		return fmt.Errorf("%w: %q", knowledge.ErrUnknownLanguage, checkFlags.language)
	}

	script := designer.ParseScript(payload.Object(obj), rq, 1, e.cfg.Engine.MaxSections)
	res := e.guard.Enforce(script, rq, props, lang)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status:     %s\n", res.Status)
	fmt.Fprintf(out, "Violations: %d\n", len(res.Violations))
	fmt.Fprintf(out, "Redirects:  %d\n", res.Redirects)
	if len(res.Violations) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, format.ViolationsTable(res.Violations, mode))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Opening: %s\n\n", res.Script.OpeningQuestion)
	fmt.Fprintln(out, format.ScriptTable(res.Script, mode))
	return nil
}
