// Package agentsync pushes rendered interviewer prompts to the hosted voice
// agent (ElevenLabs conversational AI).
package agentsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"interviewlab/internal/logging"
	"interviewlab/internal/transport"
)

// ErrNotConfigured is returned when the API key or agent id is missing.
var ErrNotConfigured = errors.New("agent sync is not configured")

// Options configures a Client.
type Options struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client updates agent prompts over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	policy  transport.Policy
}

// New returns a client with defaults for missing options.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.elevenlabs.io/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 800 * time.Millisecond
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    &http.Client{Timeout: opts.Timeout},
		policy:  transport.Policy{MaxAttempts: opts.MaxRetries, Backoff: opts.RetryBackoff},
	}
}

type promptUpdate struct {
	ConversationConfig struct {
		Agent struct {
			Prompt struct {
				Prompt string `json:"prompt"`
			} `json:"prompt"`
		} `json:"agent"`
	} `json:"conversation_config"`
}

// PushPrompt replaces the system prompt of agentID.
func (c *Client) PushPrompt(ctx context.Context, agentID, prompt string) error {
	if c == nil || c.apiKey == "" {
		return fmt.Errorf("%w: missing api key", ErrNotConfigured)
	}
	if strings.TrimSpace(agentID) == "" {
		return fmt.Errorf("%w: missing agent id", ErrNotConfigured)
	}
	var body promptUpdate
	body.ConversationConfig.Agent.Prompt.Prompt = prompt
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal prompt update: %w", err)
	}

	endpoint := c.baseURL + "/convai/agents/" + url.PathEscape(agentID)
	_, err = transport.Do(ctx, c.http, c.policy, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("xi-api-key", c.apiKey)
		return r, nil
	})
	if err != nil {
		return fmt.Errorf("update agent %s prompt: %w", agentID, err)
	}
	logging.New("agentsync").Debug("agent prompt updated", "agent_id", agentID, "prompt_chars", len(prompt))
	return nil
}

// TalkToLink is the public conversation link of an agent.
func TalkToLink(agentID string) string {
	return "https://elevenlabs.io/app/talk-to/" + url.PathEscape(agentID)
}
