package config

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"interviewlab/internal/knowledge"
)

func testdataPath(t *testing.T, name string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(file), "testdata", name)
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Engine.Linking.LinkThreshold != 0.70 || cfg.Engine.Linking.MaxSupporters != 6 {
		t.Errorf("linking defaults = %+v", cfg.Engine.Linking)
	}
	opts := cfg.LLMOptions("")
	if opts.Model != "mistral-large-latest" || opts.Timeout != 45*time.Second || opts.RetryBackoff != 800*time.Millisecond {
		t.Errorf("llm options = %+v", opts)
	}
}

func TestLoadFromPath_YAMLOverDefaults(t *testing.T) {
	cfg, err := LoadFromPath(testdataPath(t, "interviewlab.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Engine.DefaultLanguage != knowledge.LangRussian || cfg.Engine.MaxSections != 5 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.Linking.LinkThreshold != 0.8 || cfg.Engine.Linking.MaxSuggestions != 3 {
		t.Errorf("linking = %+v", cfg.Engine.Linking)
	}
	// Untouched sections keep their defaults.
	if cfg.LLM.BaseURL != "https://api.mistral.ai/v1" || cfg.Agent.TimeoutSeconds != 20 {
		t.Errorf("defaults lost: llm=%+v agent=%+v", cfg.LLM, cfg.Agent)
	}
	if got := cfg.LLMOptions(cfg.LLM.AnalystModel).Model; got != "mistral-large-latest" {
		t.Errorf("analyst model = %q", got)
	}
	if got := cfg.LLMOptions(cfg.LLM.DesignerModel).Model; got != "mistral-small-latest" {
		t.Errorf("designer model = %q", got)
	}
}

func TestLoad_DetectsFormat(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
		want string
	}{
		{"json by content", `{"log": {"level": "warn"}}`, "", "warn"},
		{"yaml by content", "log:\n  level: error\n", "", "error"},
		{"yml extension", "log:\n  level: debug\n", ".yml", "debug"},
		{"json extension", `{"log": {"level": "info"}}`, ".JSON", "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load([]byte(tt.data), tt.ext)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Log.Level != tt.want {
				t.Errorf("level = %q, want %q", cfg.Log.Level, tt.want)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load([]byte("log: ["), ".yaml"); err == nil {
		t.Error("broken yaml accepted")
	}
	if _, err := Load([]byte("{"), ""); err == nil {
		t.Error("broken json accepted")
	}
	if _, err := Load([]byte("a = 1"), ".toml"); err == nil {
		t.Error("toml accepted")
	}
	if _, err := LoadFromPath(testdataPath(t, "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"INTERVIEWLAB_DB":            "/tmp/x.db",
		"LLM_API_KEY":                "secret",
		"LLM_TIMEOUT_SECONDS":        "12.5",
		"LLM_MAX_RETRIES":            "not-a-number",
		"AGENT_ID":                   "agent-7",
		"DEFAULT_LANGUAGE":           "RU-ru",
		"MAX_PROPOSITIONS_IN_SCRIPT": "4",
		"LLM_MODEL":                  "   ",
	}
	cfg := Default()
	ApplyEnv(&cfg, func(k string) string { return env[k] })

	want := Default()
	want.Store.Path = "/tmp/x.db"
	want.LLM.APIKey = "secret"
	want.LLM.TimeoutSeconds = 12.5
	want.Agent.AgentID = "agent-7"
	want.Engine.DefaultLanguage = "ru"
	want.Engine.MaxSections = 4
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }},
		{"zero sections", func(c *Config) { c.Engine.MaxSections = 0 }},
		{"drift out of range", func(c *Config) { c.Engine.DriftThreshold = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}

	cfg := Default()
	cfg.Engine.DefaultLanguage = "de"
	if err := cfg.Validate(); !errors.Is(err, knowledge.ErrUnknownLanguage) {
		t.Errorf("unsupported language: err = %v", err)
	}
	cfg = Default()
	cfg.Store = StoreConfig{Driver: DriverMemory}
	if err := cfg.Validate(); err != nil {
		t.Errorf("memory driver without path rejected: %v", err)
	}
}
