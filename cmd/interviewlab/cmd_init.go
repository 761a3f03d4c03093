package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"interviewlab/internal/orchestrate"
)

var initFlags struct {
	project  string
	question string
	language string
	angles   []string
	agentID  string
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a draft research project",
	RunE:  runInit,
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initFlags.project, "project", "", "Project ID (required)")
	f.StringVar(&initFlags.question, "question", "", "Research question (required)")
	f.StringVar(&initFlags.language, "language", "", "Interview language: en or ru (default from config)")
	f.StringSliceVar(&initFlags.angles, "angle", nil, "Initial angle to explore (repeatable)")
	f.StringVar(&initFlags.agentID, "agent-id", "", "Voice agent receiving the prompt (default from config)")

	_ = initCmd.MarkFlagRequired("project")
	_ = initCmd.MarkFlagRequired("question")
}

func runInit(cmd *cobra.Command, _ []string) error {
	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()

	lang := initFlags.language
	if lang == "" {
		lang = e.cfg.Engine.DefaultLanguage
	}
	agentID := initFlags.agentID
	if agentID == "" {
		agentID = e.cfg.Agent.AgentID
	}
	p, err := e.orch.CreateProject(cmd.Context(), orchestrate.NewProject{
		ID:               initFlags.project,
		ResearchQuestion: initFlags.question,
		Language:         lang,
		InitialAngles:    initFlags.angles,
		AgentID:          agentID,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project:  %s\n", p.ID)
	fmt.Fprintf(out, "Status:   %s\n", p.Status)
	fmt.Fprintf(out, "Language: %s\n", p.Language)
	fmt.Fprintf(out, "Run 'interviewlab start --project=%s' to design the first script.\n", p.ID)
	return nil
}
