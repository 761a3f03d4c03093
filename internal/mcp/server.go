package mcp

import (
	"context"
	"fmt"
	"strings"

	"interviewlab/internal/analyst"
	"interviewlab/internal/designer"
	"interviewlab/internal/events"
	"interviewlab/internal/knowledge"
	"interviewlab/internal/linking"
	"interviewlab/internal/logging"
	"interviewlab/internal/orchestrate"
	"interviewlab/internal/payload"
	"interviewlab/internal/safety"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Options wires a Server. Orchestrator is required.
type Options struct {
	Orchestrator *orchestrate.Orchestrator
	Guard        *safety.Guard
	// Bus backs project_events. Without it the tool is not registered.
	Bus         *events.Bus
	MaxSections int
	Version     string
}

// Server wraps the MCP SDK server and exposes the interview pipeline as tools.
type Server struct {
	MCPServer *sdkmcp.Server

	orch        *orchestrate.Orchestrator
	guard       *safety.Guard
	bus         *events.Bus
	maxSections int
}

// NewServer creates an MCP server with the project and script tools.
func NewServer(opts Options) *Server {
	s := &Server{
		orch:        opts.Orchestrator,
		guard:       opts.Guard,
		bus:         opts.Bus,
		maxSections: opts.MaxSections,
	}
	if s.guard == nil {
		s.guard = safety.MustNew(0)
	}
	if s.maxSections <= 0 {
		s.maxSections = designer.DefaultMaxSections
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "interviewlab", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "create_project",
		Description: "Create a draft research project with a research question and interview language (en or ru).",
	}, s.handleCreateProject)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "start_project",
		Description: "Design the initial propositions and the version 1 interviewer script of a draft project.",
	}, s.handleStartProject)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "process_interview",
		Description: "Merge one interview into the project. The caller supplies the structured analysis object (new_evidence, evidence_mappings, proposition_updates, ...). Redelivered conversation ids are reported as duplicate.",
	}, s.handleProcessInterview)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "project_stats",
		Description: "Return the aggregate statistics of a project.",
	}, s.handleProjectStats)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "current_script",
		Description: "Return the current interviewer script and the rendered agent prompt.",
	}, s.handleCurrentScript)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "hypothesis_map",
		Description: "Return the hypothesis map: propositions, evidence, heuristic links and candidate clusters.",
	}, s.handleHypothesisMap)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "check_script",
		Description: "Validate and sanitize a script object against the safety rules without saving anything.",
	}, s.handleCheckScript)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "generate_report",
		Description: "Synthesize the project report. Falls back to a deterministic evidence-grounded report when synthesis fails.",
	}, s.handleGenerateReport)

	if s.bus != nil {
		sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
			Name:        "project_events",
			Description: "Poll the events emitted for a project from a sequence cursor; pass the returned next to resume.",
		}, s.handleProjectEvents)
	}
}

// --- Tool input/output types ---

type createProjectInput struct {
	ProjectID        string   `json:"project_id" jsonschema:"unique project identifier"`
	ResearchQuestion string   `json:"research_question" jsonschema:"research question the interviews explore"`
	Language         string   `json:"language,omitempty" jsonschema:"interview language: en (default) or ru"`
	InitialAngles    []string `json:"initial_angles,omitempty" jsonschema:"optional angles to seed the initial propositions"`
	AgentID          string   `json:"agent_id,omitempty" jsonschema:"voice agent receiving the rendered prompt"`
}

type projectOutput struct {
	ProjectID string                  `json:"project_id"`
	Status    knowledge.ProjectStatus `json:"status"`
	Language  string                  `json:"language"`
}

type startProjectInput struct {
	ProjectID string `json:"project_id" jsonschema:"draft project to start"`
	AgentID   string `json:"agent_id,omitempty" jsonschema:"optional voice agent to bind before the first sync"`
}

type processInterviewInput struct {
	ProjectID      string         `json:"project_id" jsonschema:"project the interview belongs to"`
	ConversationID string         `json:"conversation_id" jsonschema:"idempotency key of the conversation"`
	Transcript     string         `json:"transcript" jsonschema:"full interview transcript"`
	Language       string         `json:"language,omitempty" jsonschema:"transcript language, defaults to the project language"`
	Analysis       map[string]any `json:"analysis" jsonschema:"structured analysis object for this transcript"`
}

type projectInput struct {
	ProjectID string `json:"project_id" jsonschema:"project identifier"`
}

type currentScriptOutput struct {
	Script *knowledge.InterviewScript `json:"script"`
	Prompt string                     `json:"prompt"`
}

type hypothesisMapOutput struct {
	Map *linking.Map `json:"map"`
}

type checkScriptInput struct {
	Script           map[string]any `json:"script" jsonschema:"script object with opening_question, sections, closing_question, wildcard"`
	ResearchQuestion string         `json:"research_question,omitempty" jsonschema:"research question used for topic drift checks, defaults to the project one"`
	Language         string         `json:"language,omitempty" jsonschema:"en (default) or ru"`
	ProjectID        string         `json:"project_id,omitempty" jsonschema:"optional project whose propositions ground redirected sections"`
}

type checkScriptOutput struct {
	Status               string                     `json:"status"`
	Violations           []safety.Violation         `json:"violations"`
	Redirects            int                        `json:"redirects"`
	TopicRedirectApplied bool                       `json:"topic_redirect_applied"`
	Script               *knowledge.InterviewScript `json:"script"`
}

type projectEventsInput struct {
	ProjectID string `json:"project_id" jsonschema:"project identifier"`
	Since     int    `json:"since,omitempty" jsonschema:"sequence number of the first event to return"`
}

type projectEventsOutput struct {
	Events []events.Envelope `json:"events"`
	Next   int               `json:"next"`
}

// --- Tool handlers ---

func (s *Server) handleCreateProject(ctx context.Context, _ *sdkmcp.CallToolRequest, input createProjectInput) (*sdkmcp.CallToolResult, projectOutput, error) {
	p, err := s.orch.CreateProject(ctx, orchestrate.NewProject{
		ID:               input.ProjectID,
		ResearchQuestion: input.ResearchQuestion,
		Language:         input.Language,
		InitialAngles:    input.InitialAngles,
		AgentID:          input.AgentID,
	})
	if err != nil {
		return nil, projectOutput{}, err
	}
	return nil, projectOutput{ProjectID: p.ID, Status: p.Status, Language: p.Language}, nil
}

func (s *Server) handleStartProject(ctx context.Context, _ *sdkmcp.CallToolRequest, input startProjectInput) (*sdkmcp.CallToolResult, orchestrate.Outcome, error) {
	out, err := s.orch.StartProject(ctx, input.ProjectID, input.AgentID)
	if err != nil {
		return nil, orchestrate.Outcome{}, err
	}
	return nil, *out, nil
}

func (s *Server) handleProcessInterview(ctx context.Context, _ *sdkmcp.CallToolRequest, input processInterviewInput) (*sdkmcp.CallToolResult, orchestrate.Outcome, error) {
	if strings.TrimSpace(input.Transcript) == "" {
		return nil, orchestrate.Outcome{}, fmt.Errorf("transcript is required")
	}
	req := orchestrate.Request{
		ProjectID:      input.ProjectID,
		ConversationID: input.ConversationID,
		Transcript:     input.Transcript,
		Language:       input.Language,
		Metadata:       map[string]any{"source": "mcp"},
	}
	out, err := s.orch.ProcessWith(ctx, req, analyst.Static{Payload: input.Analysis})
	if err != nil {
		logging.ForProject("mcp", input.ProjectID).Warn("process_interview failed",
			"conversation_id", input.ConversationID, "error", err)
		return nil, orchestrate.Outcome{}, err
	}
	return nil, *out, nil
}

func (s *Server) handleProjectStats(ctx context.Context, _ *sdkmcp.CallToolRequest, input projectInput) (*sdkmcp.CallToolResult, knowledge.Stats, error) {
	p, err := s.orch.Load(ctx, input.ProjectID)
	if err != nil {
		return nil, knowledge.Stats{}, err
	}
	return nil, p.Stats(), nil
}

func (s *Server) handleCurrentScript(ctx context.Context, _ *sdkmcp.CallToolRequest, input projectInput) (*sdkmcp.CallToolResult, currentScriptOutput, error) {
	p, err := s.orch.Load(ctx, input.ProjectID)
	if err != nil {
		return nil, currentScriptOutput{}, err
	}
	cur := p.CurrentScript()
	if cur == nil {
		return nil, currentScriptOutput{}, fmt.Errorf("project %s has no script yet (call start_project first)", p.ID)
	}
	prompt, err := designer.RenderPrompt(cur, p.Language, s.maxSections)
	if err != nil {
		return nil, currentScriptOutput{}, fmt.Errorf("render prompt: %w", err)
	}
	return nil, currentScriptOutput{Script: cur, Prompt: prompt}, nil
}

func (s *Server) handleHypothesisMap(ctx context.Context, _ *sdkmcp.CallToolRequest, input projectInput) (*sdkmcp.CallToolResult, hypothesisMapOutput, error) {
	m, err := s.orch.HypothesisMap(ctx, input.ProjectID)
	if err != nil {
		return nil, hypothesisMapOutput{}, err
	}
	return nil, hypothesisMapOutput{Map: m}, nil
}

func (s *Server) handleCheckScript(ctx context.Context, _ *sdkmcp.CallToolRequest, input checkScriptInput) (*sdkmcp.CallToolResult, checkScriptOutput, error) {
	if input.Script == nil {
		return nil, checkScriptOutput{}, fmt.Errorf("script is required")
	}
	lang := knowledge.NormalizeLanguage(input.Language)
	if lang == "" {
		lang = knowledge.LangEnglish
	}
	if !knowledge.IsSupportedLanguage(lang) {
		return nil, checkScriptOutput{}, fmt.Errorf("%w: %q", knowledge.ErrUnknownLanguage, input.Language)
	}
	var props []knowledge.Proposition
	rq := strings.TrimSpace(input.ResearchQuestion)
	if input.ProjectID != "" {
		p, err := s.orch.Load(ctx, input.ProjectID)
		if err != nil {
			return nil, checkScriptOutput{}, err
		}
		props = p.Propositions
		if rq == "" {
			rq = p.ResearchQuestion
		}
	}
	if rq == "" {
		return nil, checkScriptOutput{}, fmt.Errorf("research_question is required without project_id")
	}
	script := designer.ParseScript(payload.Object(input.Script), rq, 1, s.maxSections)
	res := s.guard.Enforce(script, rq, props, lang)
	return nil, checkScriptOutput{
		Status:               res.Status,
		Violations:           res.Violations,
		Redirects:            res.Redirects,
		TopicRedirectApplied: res.TopicRedirectApplied,
		Script:               res.Script,
	}, nil
}

func (s *Server) handleGenerateReport(ctx context.Context, _ *sdkmcp.CallToolRequest, input projectInput) (*sdkmcp.CallToolResult, orchestrate.Report, error) {
	rep, err := s.orch.GenerateReport(ctx, input.ProjectID)
	if err != nil {
		return nil, orchestrate.Report{}, err
	}
	return nil, *rep, nil
}

func (s *Server) handleProjectEvents(ctx context.Context, _ *sdkmcp.CallToolRequest, input projectEventsInput) (*sdkmcp.CallToolResult, projectEventsOutput, error) {
	if input.ProjectID == "" {
		return nil, projectEventsOutput{}, fmt.Errorf("project_id is required")
	}
	since := input.Since
	if since < 0 {
		since = 0
	}
	envs := s.bus.Since(input.ProjectID, since)
	next := since
	if n := len(envs); n > 0 {
		next = envs[n-1].Seq + 1
	}
	return nil, projectEventsOutput{Events: envs, Next: next}, nil
}
