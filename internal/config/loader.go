package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"interviewlab/internal/knowledge"
)

// LoadFromPath reads a config file and applies it over Default.
// Format is chosen by extension (.yaml, .yml, .json) or content.
func LoadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses data over Default. ext selects the format; when empty, content
// starting with '{' is JSON and anything else YAML.
func Load(data []byte, ext string) (Config, error) {
	cfg := Default()
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" {
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
			ext = ".json"
		} else {
			ext = ".yaml"
		}
	}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config json: %w", err)
		}
	case ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from the environment. Blank variables are ignored
// and unparsable numbers keep the current value.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v, err := strconv.ParseFloat(strings.TrimSpace(getenv(key)), 64); err == nil {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, err := strconv.Atoi(strings.TrimSpace(getenv(key))); err == nil {
			*dst = v
		}
	}

	str("INTERVIEWLAB_DB", &cfg.Store.Path)
	str("INTERVIEWLAB_LOG_LEVEL", &cfg.Log.Level)
	str("LLM_API_KEY", &cfg.LLM.APIKey)
	str("LLM_BASE_URL", &cfg.LLM.BaseURL)
	str("LLM_MODEL", &cfg.LLM.Model)
	str("ANALYST_MODEL", &cfg.LLM.AnalystModel)
	str("DESIGNER_MODEL", &cfg.LLM.DesignerModel)
	str("SYNTHESIZER_MODEL", &cfg.LLM.SynthesizerModel)
	float("LLM_TIMEOUT_SECONDS", &cfg.LLM.TimeoutSeconds)
	integer("LLM_MAX_RETRIES", &cfg.LLM.MaxRetries)
	float("LLM_RETRY_BACKOFF_SECONDS", &cfg.LLM.RetryBackoffSeconds)
	float("LLM_REQUESTS_PER_SECOND", &cfg.LLM.RequestsPerSecond)
	str("AGENT_API_KEY", &cfg.Agent.APIKey)
	str("AGENT_BASE_URL", &cfg.Agent.BaseURL)
	str("AGENT_ID", &cfg.Agent.AgentID)
	str("DEFAULT_LANGUAGE", &cfg.Engine.DefaultLanguage)
	integer("MAX_PROPOSITIONS_IN_SCRIPT", &cfg.Engine.MaxSections)
	cfg.Engine.DefaultLanguage = knowledge.NormalizeLanguage(cfg.Engine.DefaultLanguage)
}

// Resolve loads path (Default when empty), applies os environment overrides
// and validates the result.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromPath(path); err != nil {
			return Config{}, err
		}
	}
	ApplyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
