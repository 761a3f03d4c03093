package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"interviewlab/internal/agentsync"
	"interviewlab/internal/analyst"
	"interviewlab/internal/config"
	"interviewlab/internal/designer"
	"interviewlab/internal/events"
	"interviewlab/internal/llm"
	"interviewlab/internal/metrics"
	"interviewlab/internal/orchestrate"
	"interviewlab/internal/safety"
	"interviewlab/internal/store"
	"interviewlab/internal/synthesis"
)

// openStore opens the configured store.
func openStore(cfg config.Config) (store.Store, error) {
	if cfg.Store.Driver == config.DriverMemory {
		return store.NewMemStore(), nil
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// engine bundles an orchestrator with the store it owns.
type engine struct {
	cfg   config.Config
	store store.Store
	orch  *orchestrate.Orchestrator
	guard *safety.Guard
}

func (e *engine) Close() error { return e.store.Close() }

// engineExtras are the optional parts only some commands wire.
type engineExtras struct {
	events  events.Sink
	metrics *metrics.Metrics
}

// openEngine loads the config and wires the orchestrator with the LLM
// collaborators and the agent syncer.
func openEngine(extras engineExtras) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	guard, err := safety.New(cfg.Engine.DriftThreshold)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("safety rules: %w", err)
	}
	orch := orchestrate.New(orchestrate.Options{
		Store:       st,
		Analyst:     analyst.NewLLM(llm.New(cfg.LLMOptions(cfg.LLM.AnalystModel)), cfg.LLM.AnalystModel),
		Designer:    designer.NewLLM(llm.New(cfg.LLMOptions(cfg.LLM.DesignerModel)), cfg.LLM.DesignerModel),
		Syncer:      agentsync.New(cfg.AgentOptions()),
		Synthesizer: synthesis.NewLLM(llm.New(cfg.LLMOptions(cfg.LLM.SynthesizerModel)), cfg.LLM.SynthesizerModel),
		Events:      extras.events,
		Metrics:     extras.metrics,
		Guard:       guard,
		Linking:     cfg.Engine.Linking,
		MaxSections: cfg.Engine.MaxSections,
	})
	return &engine{cfg: cfg, store: st, orch: orch, guard: guard}, nil
}

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// readObject decodes a YAML or JSON object file. YAML is a superset of
// JSON, so one decoder serves both.
func readObject(path string, stdin io.Reader) (map[string]any, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var obj map[string]any
	if err := yaml.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if obj == nil {
		return nil, fmt.Errorf("parse %s: empty document", filepath.Base(path))
	}
	return obj, nil
}

func required(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}
