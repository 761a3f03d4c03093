package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"interviewlab/internal/demo"
	"interviewlab/internal/events"
	"interviewlab/internal/format"
	"interviewlab/internal/orchestrate"
	"interviewlab/internal/store"
)

var demoFlags struct {
	scenario   string
	list       bool
	showEvents bool
	showReport bool
	format     string
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run an embedded scenario end to end in memory",
	Long: `Creates the scenario project in an in-memory store, starts it with the
scripted designer, replays every interview with its recorded analysis and
writes the evidence-grounded report. No model or agent is contacted.`,
	RunE: runDemo,
}

func init() {
	f := demoCmd.Flags()
	f.StringVar(&demoFlags.scenario, "scenario", "hackathon", "Scenario name")
	f.BoolVar(&demoFlags.list, "list", false, "List the embedded scenarios")
	f.BoolVar(&demoFlags.showEvents, "events", false, "Print the events emitted during the run")
	f.BoolVar(&demoFlags.showReport, "report", true, "Print the final report")
	f.StringVar(&demoFlags.format, "format", "ascii", "Table format: ascii, markdown or csv")
}

func runDemo(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if demoFlags.list {
		names, err := demo.Names()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	}
	mode, err := format.ParseMode(demoFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := demo.Load(demoFlags.scenario)
	if err != nil {
		return err
	}

	bus := events.NewBus(0)
	feed, unsubscribe := bus.Subscribe(sc.ProjectID, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for env := range feed {
			if demoFlags.showEvents {
				fmt.Fprintf(out, "  event %-24s %s\n", env.Event, env.At.Format(time.TimeOnly))
			}
		}
	}()

	st := store.NewMemStore()
	defer st.Close()
	orch := orchestrate.New(orchestrate.Options{
		Store:       st,
		Designer:    sc.Designer(),
		Events:      bus,
		Linking:     cfg.Engine.Linking,
		MaxSections: cfg.Engine.MaxSections,
	})

	ctx := cmd.Context()
	fmt.Fprintf(out, "Scenario: %s\n%s\n\n", sc.Name, strings.TrimSpace(sc.Description))
	if _, err := orch.CreateProject(ctx, sc.NewProject()); err != nil {
		unsubscribe()
		return err
	}
	if _, err := orch.StartProject(ctx, sc.ProjectID, ""); err != nil {
		unsubscribe()
		return err
	}
	results, err := orch.ProcessBatch(ctx, sc.Jobs(), 1)
	if err != nil {
		unsubscribe()
		return err
	}
	rep, err := orch.GenerateReport(ctx, sc.ProjectID)
	unsubscribe()
	<-done
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(out, "%s: failed: %v\n", r.Job.Request.ConversationID, r.Err)
			continue
		}
		fmt.Fprintf(out, "%s -> %s script v%d safety=%s new_evidence=%d\n", r.Job.Request.ConversationID,
			r.Outcome.InterviewID, r.Outcome.ScriptVersion, r.Outcome.SafetyStatus, r.Outcome.NewEvidence)
	}

	p, err := orch.Load(ctx, sc.ProjectID)
	if err != nil {
		return err
	}
	hm, err := orch.HypothesisMap(ctx, sc.ProjectID)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, format.StatsTable(p.Stats(), mode))
	fmt.Fprintln(out)
	fmt.Fprintln(out, format.PropositionsTable(p.Propositions, mode))
	fmt.Fprintln(out)
	fmt.Fprintln(out, format.ClustersTable(hm, mode))
	if demoFlags.showReport {
		fmt.Fprintln(out)
		fmt.Fprintln(out, rep.Markdown)
	}
	return nil
}
