// Package config holds interviewlab settings: defaults, a YAML or JSON file,
// then environment overrides.
package config

import (
	"fmt"
	"time"

	"interviewlab/internal/agentsync"
	"interviewlab/internal/designer"
	"interviewlab/internal/knowledge"
	"interviewlab/internal/linking"
	"interviewlab/internal/llm"
	"interviewlab/internal/safety"
	"interviewlab/internal/store"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // text or json
}

// LLMConfig covers the analyst, designer and synthesizer endpoints. Role
// models fall back to Model when empty.
type LLMConfig struct {
	BaseURL             string  `json:"base_url" yaml:"base_url"`
	APIKey              string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Model               string  `json:"model" yaml:"model"`
	AnalystModel        string  `json:"analyst_model,omitempty" yaml:"analyst_model,omitempty"`
	DesignerModel       string  `json:"designer_model,omitempty" yaml:"designer_model,omitempty"`
	SynthesizerModel    string  `json:"synthesizer_model,omitempty" yaml:"synthesizer_model,omitempty"`
	TimeoutSeconds      float64 `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries          int     `json:"max_retries" yaml:"max_retries"`
	RetryBackoffSeconds float64 `json:"retry_backoff_seconds" yaml:"retry_backoff_seconds"`
	RequestsPerSecond   float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

type AgentConfig struct {
	BaseURL        string  `json:"base_url" yaml:"base_url"`
	APIKey         string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	AgentID        string  `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	TimeoutSeconds float64 `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int     `json:"max_retries" yaml:"max_retries"`
}

type EngineConfig struct {
	DefaultLanguage string         `json:"default_language" yaml:"default_language"`
	MaxSections     int            `json:"max_sections" yaml:"max_sections"`
	DriftThreshold  float64        `json:"drift_threshold" yaml:"drift_threshold"`
	Linking         linking.Config `json:"linking" yaml:"linking"`
}

// Config is the full settings tree.
type Config struct {
	Store  StoreConfig  `json:"store" yaml:"store"`
	Log    LogConfig    `json:"log" yaml:"log"`
	LLM    LLMConfig    `json:"llm" yaml:"llm"`
	Agent  AgentConfig  `json:"agent" yaml:"agent"`
	Engine EngineConfig `json:"engine" yaml:"engine"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Store: StoreConfig{Driver: DriverSQLite, Path: store.DefaultDBPath},
		Log:   LogConfig{Level: "info", Format: "text"},
		LLM: LLMConfig{
			BaseURL:             "https://api.mistral.ai/v1",
			Model:               "mistral-large-latest",
			TimeoutSeconds:      45,
			MaxRetries:          3,
			RetryBackoffSeconds: 0.8,
			RequestsPerSecond:   2,
		},
		Agent: AgentConfig{
			BaseURL:        "https://api.elevenlabs.io/v1",
			TimeoutSeconds: 20,
			MaxRetries:     3,
		},
		Engine: EngineConfig{
			DefaultLanguage: knowledge.LangEnglish,
			MaxSections:     designer.DefaultMaxSections,
			DriftThreshold:  safety.DefaultDriftThreshold,
			Linking:         linking.DefaultConfig(),
		},
	}
}

// Validate reports settings the engine cannot run with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if !knowledge.IsSupportedLanguage(c.Engine.DefaultLanguage) {
		return fmt.Errorf("engine.default_language %q: %w", c.Engine.DefaultLanguage, knowledge.ErrUnknownLanguage)
	}
	if c.Engine.MaxSections < 1 {
		return fmt.Errorf("engine.max_sections must be positive, got %d", c.Engine.MaxSections)
	}
	if c.Engine.DriftThreshold < 0 || c.Engine.DriftThreshold > 1 {
		return fmt.Errorf("engine.drift_threshold must be within [0,1], got %v", c.Engine.DriftThreshold)
	}
	return nil
}

// LLMOptions returns client options for the given role model (may be empty).
func (c Config) LLMOptions(model string) llm.Options {
	if model == "" {
		model = c.LLM.Model
	}
	return llm.Options{
		BaseURL:           c.LLM.BaseURL,
		APIKey:            c.LLM.APIKey,
		Model:             model,
		Timeout:           seconds(c.LLM.TimeoutSeconds),
		MaxRetries:        c.LLM.MaxRetries,
		RetryBackoff:      seconds(c.LLM.RetryBackoffSeconds),
		RequestsPerSecond: c.LLM.RequestsPerSecond,
	}
}

func (c Config) AgentOptions() agentsync.Options {
	return agentsync.Options{
		BaseURL:      c.Agent.BaseURL,
		APIKey:       c.Agent.APIKey,
		Timeout:      seconds(c.Agent.TimeoutSeconds),
		MaxRetries:   c.Agent.MaxRetries,
		RetryBackoff: seconds(c.LLM.RetryBackoffSeconds),
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
