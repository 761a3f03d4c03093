package agentsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPushPrompt_PatchesAgent(t *testing.T) {
	var gotMethod, gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotKey = r.Method, r.URL.Path, r.Header.Get("xi-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "k"})
	if err := c.PushPrompt(context.Background(), "agent-1", "You are an interviewer."); err != nil {
		t.Fatalf("PushPrompt: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/convai/agents/agent-1" || gotKey != "k" {
		t.Errorf("request = %s %s key=%q", gotMethod, gotPath, gotKey)
	}
	prompt := gotBody["conversation_config"].(map[string]any)["agent"].(map[string]any)["prompt"].(map[string]any)["prompt"]
	if prompt != "You are an interviewer." {
		t.Errorf("prompt = %v", prompt)
	}
}

func TestPushPrompt_NotConfigured(t *testing.T) {
	if err := New(Options{}).PushPrompt(context.Background(), "a", "p"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing key: err = %v", err)
	}
	if err := New(Options{APIKey: "k"}).PushPrompt(context.Background(), " ", "p"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing agent: err = %v", err)
	}
}

func TestPushPrompt_FailsAfterRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "k", MaxRetries: 2})
	c.policy.Sleep = func(context.Context, time.Duration) error { return nil }
	if err := c.PushPrompt(context.Background(), "a", "p"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
