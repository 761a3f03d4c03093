package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"interviewlab/internal/analyst"
	"interviewlab/internal/format"
	"interviewlab/internal/orchestrate"
)

// replayManifest lists transcripts to process in one batch. File paths are
// relative to the manifest.
type replayManifest struct {
	Parallel int           `yaml:"parallel"`
	Jobs     []replayEntry `yaml:"jobs"`
}

type replayEntry struct {
	ProjectID      string         `yaml:"project_id"`
	ConversationID string         `yaml:"conversation_id"`
	Language       string         `yaml:"language"`
	Transcript     string         `yaml:"transcript"`
	TranscriptFile string         `yaml:"transcript_file"`
	Analysis       map[string]any `yaml:"analysis"`
	AnalysisFile   string         `yaml:"analysis_file"`
}

var replayFlags struct {
	manifest string
	parallel int
	format   string
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Process a batch of transcripts listed in a YAML manifest",
	Long: `Processes every job of the manifest. Jobs of the same project run in
manifest order; different projects run concurrently up to --parallel.
A failed job does not stop the others.`,
	RunE: runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.StringVarP(&replayFlags.manifest, "manifest", "m", "", "Manifest file (required)")
	f.IntVar(&replayFlags.parallel, "parallel", 0, "Projects processed concurrently (default: manifest value or 1)")
	f.StringVar(&replayFlags.format, "format", "ascii", "Table format: ascii, markdown or csv")

	_ = replayCmd.MarkFlagRequired("manifest")
}

func loadManifest(path string) (*replayManifest, []orchestrate.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	var m replayManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Jobs) == 0 {
		return nil, nil, fmt.Errorf("manifest %s has no jobs", path)
	}
	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	jobs := make([]orchestrate.Job, 0, len(m.Jobs))
	for i, ent := range m.Jobs {
		if ent.ProjectID == "" {
			return nil, nil, fmt.Errorf("job %d: project_id is required", i+1)
		}
		text := ent.Transcript
		if ent.TranscriptFile != "" {
			b, err := os.ReadFile(resolve(ent.TranscriptFile))
			if err != nil {
				return nil, nil, fmt.Errorf("job %d: %w", i+1, err)
			}
			text = string(b)
		}
		if text == "" {
			return nil, nil, fmt.Errorf("job %d: transcript or transcript_file is required", i+1)
		}
		job := orchestrate.Job{Request: orchestrate.Request{
			ProjectID:      ent.ProjectID,
			ConversationID: ent.ConversationID,
			Transcript:     text,
			Language:       ent.Language,
			Metadata:       map[string]any{"source": "replay", "manifest": filepath.Base(path)},
		}}
		if job.Request.ConversationID == "" {
			job.Request.ConversationID = uuid.NewString()
		}
		analysis := ent.Analysis
		if ent.AnalysisFile != "" {
			if analysis, err = readObject(resolve(ent.AnalysisFile), nil); err != nil {
				return nil, nil, fmt.Errorf("job %d: %w", i+1, err)
			}
		}
		if analysis != nil {
			job.Analyst = analyst.Static{Payload: analysis}
		}
		jobs = append(jobs, job)
	}
	return &m, jobs, nil
}

func runReplay(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(replayFlags.format)
	if err != nil {
		return err
	}
	m, jobs, err := loadManifest(replayFlags.manifest)
	if err != nil {
		return err
	}
	parallel := replayFlags.parallel
	if parallel <= 0 {
		parallel = m.Parallel
	}

	e, err := openEngine(engineExtras{})
	if err != nil {
		return err
	}
	defer e.Close()

	start := time.Now()
	results, err := e.orch.ProcessBatch(cmd.Context(), jobs, parallel)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	tb := format.NewTable(mode)
	tb.Header("#", "Project", "Conversation", "Status", "Interview", "Script", "Error")
	failed := 0
	for i, r := range results {
		req := r.Job.Request
		if r.Err != nil {
			failed++
			tb.Row(i+1, req.ProjectID, format.Truncate(req.ConversationID, 24), "failed", "", "", format.Truncate(r.Err.Error(), 60))
			continue
		}
		tb.Row(i+1, req.ProjectID, format.Truncate(req.ConversationID, 24), r.Outcome.Status,
			r.Outcome.InterviewID, r.Outcome.ScriptVersion, "")
	}
	tb.Columns(format.ColumnConfig{Number: 6, Align: format.AlignRight})
	fmt.Fprintln(cmd.OutOrStdout(), tb.String())
	if mode != format.CSV {
		fmt.Fprintf(cmd.OutOrStdout(), "%d jobs, %d failed in %s\n", len(results), failed, format.FmtDuration(elapsed))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(results))
	}
	return nil
}
