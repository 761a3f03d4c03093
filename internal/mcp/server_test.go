package mcp_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"interviewlab/internal/events"
	mcpserver "interviewlab/internal/mcp"
	"interviewlab/internal/orchestrate"
	"interviewlab/internal/store"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))
	os.Exit(m.Run())
}

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *mcpserver.Server {
	t.Helper()
	bus := events.NewBus(0)
	orch := orchestrate.New(orchestrate.Options{
		Store:  store.NewMemStore(),
		Events: bus,
		Now:    func() time.Time { return testNow },
	})
	return mcpserver.NewServer(mcpserver.Options{Orchestrator: orch, Bus: bus})
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		for _, c := range res.Content {
			if tc, ok := c.(*sdkmcp.TextContent); ok {
				t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
			}
		}
		t.Fatalf("CallTool(%s) returned error", name)
	}
	result := make(map[string]any)
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			if err := json.Unmarshal([]byte(tc.Text), &result); err != nil {
				t.Fatalf("unmarshal tool result: %v (text: %s)", err, tc.Text)
			}
			return result
		}
	}
	t.Fatalf("no text content in tool result")
	return nil
}

func callToolExpectError(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return
	}
	if !res.IsError {
		t.Fatalf("CallTool(%s): expected IsError=true", name)
	}
}

func analysisPayload() map[string]any {
	return map[string]any{
		"new_evidence": []any{
			map[string]any{
				"quote":          "I barely slept during the hackathon.",
				"interpretation": "Sleep deprivation reduced focus",
				"factor":         "sleep deprivation",
				"mechanism":      "fatigue lowers focus",
				"outcome":        "worse demo quality",
				"tags":           []any{"sleep", "fatigue"},
			},
		},
		"evidence_mappings": []any{
			map[string]any{"evidence_id": "E001", "proposition_id": "P001", "relationship": "supports"},
		},
		"metrics": map[string]any{"convergence_score": 0.2, "novelty_rate": 0.9, "mode": "divergent"},
	}
}

func TestServer_ToolDiscovery(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	want := map[string]bool{
		"create_project":    false,
		"start_project":     false,
		"process_interview": false,
		"project_stats":     false,
		"current_script":    false,
		"hypothesis_map":    false,
		"check_script":      false,
		"generate_report":   false,
		"project_events":    false,
	}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestServer_ProjectEventsNeedsBus(t *testing.T) {
	orch := orchestrate.New(orchestrate.Options{Store: store.NewMemStore()})
	srv := mcpserver.NewServer(mcpserver.Options{Orchestrator: orch})
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	for _, tool := range tools.Tools {
		if tool.Name == "project_events" {
			t.Fatal("project_events registered without an event bus")
		}
	}
}

func TestServer_InterviewFlow(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, srv)

	created := callTool(t, ctx, session, "create_project", map[string]any{
		"project_id":        "hack",
		"research_question": "How do participants experience hackathons?",
	})
	if created["status"] != "draft" || created["language"] != "en" {
		t.Fatalf("create_project = %v", created)
	}

	started := callTool(t, ctx, session, "start_project", map[string]any{"project_id": "hack"})
	if started["status"] != orchestrate.StatusStarted {
		t.Fatalf("start_project status = %v", started["status"])
	}
	if started["script_version"] != float64(1) {
		t.Fatalf("start_project script_version = %v, want 1", started["script_version"])
	}

	args := map[string]any{
		"project_id":      "hack",
		"conversation_id": "conv-1",
		"transcript":      "Interviewer: How was it?\nParticipant: I barely slept during the hackathon.",
		"analysis":        analysisPayload(),
	}
	processed := callTool(t, ctx, session, "process_interview", args)
	if processed["status"] != orchestrate.StatusProcessed {
		t.Fatalf("process_interview status = %v", processed["status"])
	}
	if processed["interview_id"] != "INT_001" || processed["new_evidence"] != float64(1) {
		t.Fatalf("process_interview = %v", processed)
	}
	if processed["script_version"] != float64(2) {
		t.Fatalf("script_version = %v, want 2", processed["script_version"])
	}

	dup := callTool(t, ctx, session, "process_interview", args)
	if dup["status"] != orchestrate.StatusDuplicate {
		t.Fatalf("redelivery status = %v, want duplicate", dup["status"])
	}

	stats := callTool(t, ctx, session, "project_stats", map[string]any{"project_id": "hack"})
	if stats["interviews_count"] != float64(1) || stats["evidence_count"] != float64(1) {
		t.Fatalf("project_stats = %v", stats)
	}
	if stats["status"] != "running" {
		t.Fatalf("project status = %v, want running", stats["status"])
	}

	script := callTool(t, ctx, session, "current_script", map[string]any{"project_id": "hack"})
	if prompt, _ := script["prompt"].(string); prompt == "" {
		t.Fatal("current_script returned an empty prompt")
	}

	hm := callTool(t, ctx, session, "hypothesis_map", map[string]any{"project_id": "hack"})
	m, ok := hm["map"].(map[string]any)
	if !ok || m["project_id"] != "hack" {
		t.Fatalf("hypothesis_map = %v", hm)
	}

	report := callTool(t, ctx, session, "generate_report", map[string]any{"project_id": "hack"})
	if report["report_generation_mode"] != "fallback" {
		t.Fatalf("report mode = %v, want fallback without a synthesizer", report["report_generation_mode"])
	}

	evs := callTool(t, ctx, session, "project_events", map[string]any{"project_id": "hack"})
	list, _ := evs["events"].([]any)
	if len(list) == 0 {
		t.Fatalf("project_events = %v", evs)
	}
	last, _ := list[len(list)-1].(map[string]any)
	if evs["next"] != last["seq"].(float64)+1 {
		t.Fatalf("next = %v, last seq = %v", evs["next"], last["seq"])
	}
	tail := callTool(t, ctx, session, "project_events", map[string]any{"project_id": "hack", "since": evs["next"]})
	if rest, _ := tail["events"].([]any); len(rest) != 0 {
		t.Fatalf("events after the cursor = %d, want 0", len(rest))
	}
	if tail["next"] != evs["next"] {
		t.Errorf("empty poll moved the cursor: %v -> %v", evs["next"], tail["next"])
	}
}

func TestServer_CheckScript_Sanitizes(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	out := callTool(t, ctx, session, "check_script", map[string]any{
		"research_question": "How do participants experience hackathons?",
		"script": map[string]any{
			"opening_question": "Tell me about your hackathon experience.",
			"sections": []any{
				map[string]any{
					"proposition_id": "P001",
					"priority":       "high",
					"instruction":    "EXPLORE",
					"main_question":  "Earlier, you mentioned sleep at the hackathon. How did it affect you?",
					"probes":         []any{"Can you give an example?"},
					"context":        "Sleep and hackathon experience",
				},
			},
			"closing_question": "Anything else about the hackathon?",
			"wildcard":         "What surprised you at the hackathon?",
		},
	})
	if out["status"] != "sanitized" {
		t.Fatalf("status = %v, want sanitized", out["status"])
	}
	if vs, _ := out["violations"].([]any); len(vs) == 0 {
		t.Fatal("expected at least one violation")
	}
}

func TestServer_Errors(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	callTool(t, ctx, session, "create_project", map[string]any{
		"project_id":        "p",
		"research_question": "rq",
	})

	t.Run("duplicate project", func(t *testing.T) {
		callToolExpectError(t, ctx, session, "create_project", map[string]any{
			"project_id":        "p",
			"research_question": "rq",
		})
	})
	t.Run("unsupported language", func(t *testing.T) {
		callToolExpectError(t, ctx, session, "create_project", map[string]any{
			"project_id":        "q",
			"research_question": "rq",
			"language":          "de",
		})
	})
	t.Run("unknown project", func(t *testing.T) {
		callToolExpectError(t, ctx, session, "project_stats", map[string]any{"project_id": "missing"})
	})
	t.Run("script before start", func(t *testing.T) {
		callToolExpectError(t, ctx, session, "current_script", map[string]any{"project_id": "p"})
	})
	t.Run("report from draft", func(t *testing.T) {
		callToolExpectError(t, ctx, session, "generate_report", map[string]any{"project_id": "p"})
	})
	t.Run("empty analysis", func(t *testing.T) {
		callToolExpectError(t, ctx, session, "process_interview", map[string]any{
			"project_id":      "p",
			"conversation_id": "c",
			"transcript":      "text",
		})
	})
}
