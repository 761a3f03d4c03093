package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"interviewlab/internal/designer"
	"interviewlab/internal/events"
	"interviewlab/internal/knowledge"
	"interviewlab/internal/linking"
	"interviewlab/internal/logging"
	"interviewlab/internal/metrics"
	"interviewlab/internal/safety"
)

// Outcome statuses.
const (
	StatusProcessed = "processed"
	StatusDuplicate = "duplicate"
	StatusStarted   = "started"
)

const fallbackSummary = "Fallback script generated after designer failure"

var errNoSyncer = errors.New("no sync collaborator configured")

// Request is one transcript to process.
type Request struct {
	ProjectID      string         `json:"project_id"`
	ConversationID string         `json:"conversation_id"`
	Transcript     string         `json:"transcript"`
	Language       string         `json:"language,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Outcome is the structured result of a run. Degraded runs (fallback
// script, pending sync, sanitized prompt) still report StatusProcessed.
type Outcome struct {
	Status              string                  `json:"status"`
	ProjectID           string                  `json:"project_id"`
	ConversationID      string                  `json:"conversation_id,omitempty"`
	InterviewID         string                  `json:"interview_id,omitempty"`
	ScriptVersion       int                     `json:"script_version"`
	SyncPending         bool                    `json:"sync_pending"`
	ProjectStatus       knowledge.ProjectStatus `json:"project_status"`
	ReportStale         bool                    `json:"report_stale"`
	SafetyStatus        string                  `json:"prompt_safety_status,omitempty"`
	SafetyViolations    int                     `json:"prompt_safety_violations_count"`
	TopicRedirect       bool                    `json:"topic_redirect_applied"`
	FallbackScript      bool                    `json:"fallback_script"`
	NewEvidence         int                     `json:"new_evidence"`
	NewPropositions     int                     `json:"new_propositions"`
	HeuristicLinksAdded int                     `json:"heuristic_links_added"`
	Propositions        int                     `json:"propositions,omitempty"`
	TalkToLink          string                  `json:"talk_to_link,omitempty"`
}

// Process runs the pipeline for req with the configured Analyst.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Outcome, error) {
	return o.ProcessWith(ctx, req, o.analyst)
}

// ProcessWith runs the pipeline for req with a per-call Analyst. A
// conversation id already in the ledger yields StatusDuplicate and leaves
// the project untouched. Analyst, load and save failures are returned and
// nothing is persisted; designer and sync failures only degrade the outcome.
func (o *Orchestrator) ProcessWith(ctx context.Context, req Request, an Analyst) (*Outcome, error) {
	start := o.now()
	defer o.metrics.ObserveRun(start)

	if strings.TrimSpace(req.ProjectID) == "" || strings.TrimSpace(req.ConversationID) == "" {
		return nil, fmt.Errorf("process: project id and conversation id are required")
	}
	if an == nil {
		return nil, fmt.Errorf("process %s: no analyst configured", req.ProjectID)
	}
	log := logging.ForProject("orchestrate", req.ProjectID).With("conversation_id", req.ConversationID)

	unlock := o.lock(req.ProjectID)
	defer unlock()

	p, err := o.store.Load(ctx, req.ProjectID)
	if err != nil {
		o.metrics.Interview(metrics.OutcomeFailed)
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p.IsProcessed(req.ConversationID) {
		log.Info("duplicate conversation ignored")
		o.metrics.Interview(metrics.OutcomeDuplicate)
		out := &Outcome{
			Status:         StatusDuplicate,
			ProjectID:      p.ID,
			ConversationID: req.ConversationID,
			SyncPending:    p.SyncPending,
			ProjectStatus:  p.Status,
			ReportStale:    p.ReportStale,
		}
		if cur := p.CurrentScript(); cur != nil {
			out.ScriptVersion = cur.Version
		}
		return out, nil
	}

	now := o.clock()
	hadReport := p.Status == knowledge.ProjectDone || p.ReportMarkdown != ""
	p.Status = knowledge.ProjectRunning

	lang := knowledge.NormalizeLanguage(req.Language)
	if lang == "" {
		lang = p.Language
	}
	interview := knowledge.Interview{
		ID:             p.NextInterviewID(),
		ConversationID: req.ConversationID,
		Transcript:     req.Transcript,
		Language:       lang,
		CreatedAt:      now,
		Metadata:       req.Metadata,
	}
	p.Interviews = append(p.Interviews, interview)
	index := len(p.Interviews)

	res, err := an.Analyze(ctx, knowledge.AnalysisRequest{
		ProjectID:        p.ID,
		ResearchQuestion: p.ResearchQuestion,
		Language:         lang,
		Transcript:       req.Transcript,
		InterviewID:      interview.ID,
		InterviewIndex:   index,
		Evidence:         p.Evidence,
		Propositions:     p.Propositions,
	})
	if err == nil && res == nil {
		err = errors.New("analyst returned no result")
	}
	if err != nil {
		o.metrics.Interview(metrics.OutcomeFailed)
		return nil, fmt.Errorf("analyze %s: %w", interview.ID, err)
	}
	applied := applyAnalysis(p, res, interview.ID, index, now, log)

	_, linksChanged, linksAdded := linking.Link(p, o.linking)

	script, fallback := o.regenerate(ctx, p, interview.ID, log)
	script.Version = p.NextScriptVersion()
	script.GeneratedAfterInterview = interview.ID
	if script.ResearchQuestion == "" {
		script.ResearchQuestion = p.ResearchQuestion
	}
	guarded := o.enforce(p, script)
	p.Scripts = append(p.Scripts, *guarded.Script)
	current := p.CurrentScript()

	o.sync(ctx, p, current, log)

	becameStale := false
	if hadReport {
		becameStale = !p.ReportStale
		p.ReportStale = true
	}
	p.ProcessedConversationIDs = append(p.ProcessedConversationIDs, req.ConversationID)

	if err := o.store.Save(ctx, p); err != nil {
		o.metrics.Interview(metrics.OutcomeFailed)
		return nil, fmt.Errorf("save project: %w", err)
	}

	source := metrics.SourceDesigner
	if fallback {
		source = metrics.SourceFallback
	}
	o.metrics.Interview(metrics.OutcomeProcessed)
	o.metrics.Script(source, guarded.Status, guarded.Redirects)
	o.metrics.HeuristicLinks(linksAdded)

	for _, e := range applied.evidence {
		o.events.Emit(p.ID, events.NewEvidence, e)
	}
	for _, u := range applied.updates {
		o.events.Emit(p.ID, events.PropositionUpdated, u)
	}
	for _, prop := range applied.propositions {
		o.events.Emit(p.ID, events.NewProposition, prop)
	}
	o.emitScript(p, current, guarded)
	if becameStale {
		o.events.Emit(p.ID, events.ReportStale, map[string]any{
			"project_id": p.ID, "status": p.Status, "report_stale": true,
		})
	}
	o.emitStatus(p)
	o.emitStats(p)
	if linksChanged {
		o.events.Emit(p.ID, events.HeuristicLinksUpdated, map[string]any{
			"project_id": p.ID, "heuristic_links_added": linksAdded,
		})
	}

	log.Info("interview processed",
		"interview_id", interview.ID,
		"script_version", current.Version,
		"evidence", len(applied.evidence),
		"propositions", len(applied.propositions),
		"mappings", applied.mapped,
		"safety", guarded.Status,
		"sync_pending", p.SyncPending)

	return &Outcome{
		Status:              StatusProcessed,
		ProjectID:           p.ID,
		ConversationID:      req.ConversationID,
		InterviewID:         interview.ID,
		ScriptVersion:       current.Version,
		SyncPending:         p.SyncPending,
		ProjectStatus:       p.Status,
		ReportStale:         p.ReportStale,
		SafetyStatus:        guarded.Status,
		SafetyViolations:    len(guarded.Violations),
		TopicRedirect:       guarded.TopicRedirectApplied,
		FallbackScript:      fallback,
		NewEvidence:         len(applied.evidence),
		NewPropositions:     len(applied.propositions),
		HeuristicLinksAdded: linksAdded,
	}, nil
}

// regenerate asks the Designer for the next script. A project without a
// script gets the minimal script; a failing Designer gets it too, tagged as
// a fallback. The returned script is a private copy.
func (o *Orchestrator) regenerate(ctx context.Context, p *knowledge.ProjectState, interviewID string, log *slog.Logger) (*knowledge.InterviewScript, bool) {
	version := p.NextScriptVersion()
	prev := p.CurrentScript()
	if prev == nil {
		return knowledge.MinimalScript(p.ResearchQuestion, p.Propositions, p.Metrics, version, o.maxSections), true
	}
	if o.designer == nil {
		return o.fallbackScript(p, version), true
	}
	script, err := o.designer.UpdateScript(ctx, knowledge.DesignRequest{
		ProjectID:        p.ID,
		ResearchQuestion: p.ResearchQuestion,
		Language:         p.Language,
		InitialAngles:    p.InitialAngles,
		Propositions:     p.Propositions,
		Evidence:         p.Evidence,
		Previous:         prev.Clone(),
		Metrics:          p.Metrics,
		Version:          version,
		MaxSections:      o.maxSections,
	})
	if err == nil && script == nil {
		err = errors.New("designer returned no script")
	}
	if err != nil {
		log.Warn("designer failed, using fallback script", "interview_id", interviewID, "error", err)
		return o.fallbackScript(p, version), true
	}
	return script.Clone(), false
}

func (o *Orchestrator) fallbackScript(p *knowledge.ProjectState, version int) *knowledge.InterviewScript {
	s := knowledge.MinimalScript(p.ResearchQuestion, p.Propositions, p.Metrics, version, o.maxSections)
	s.ChangesSummary = fallbackSummary
	return s
}

// enforce applies the safety guard and records its verdict on p. The
// guarded script's change summary carries a marker when it was rewritten.
func (o *Orchestrator) enforce(p *knowledge.ProjectState, script *knowledge.InterviewScript) safety.Result {
	res := o.guard.Enforce(script, p.ResearchQuestion, p.Propositions, p.Language)
	res.Script = res.Script.Clone()
	p.PromptSafetyStatus = res.Status
	p.PromptSafetyViolations = len(res.Violations)
	if res.Status == knowledge.SafetySanitized || res.Status == knowledge.SafetyFallback {
		marker := fmt.Sprintf("safety_guard=%s violations=%d", res.Status, len(res.Violations))
		if !strings.Contains(res.Script.ChangesSummary, marker) {
			summary := strings.TrimSpace(res.Script.ChangesSummary)
			if summary == "" {
				summary = designer.DefaultChangesSummary
			}
			res.Script.ChangesSummary = fmt.Sprintf("%s [%s]", summary, marker)
		}
	}
	return res
}

// sync pushes the rendered prompt of script to the project's agent. Failure
// leaves SyncPending set for RetrySync.
func (o *Orchestrator) sync(ctx context.Context, p *knowledge.ProjectState, script *knowledge.InterviewScript, log *slog.Logger) {
	p.SyncPending = false
	p.SyncPendingScriptVersion = 0
	if p.AgentID == "" {
		return
	}
	err := o.push(ctx, p, script)
	if err != nil {
		log.Warn("prompt sync failed", "agent_id", p.AgentID, "script_version", script.Version, "error", err)
		o.metrics.SyncFailure()
		p.SyncPending = true
		p.SyncPendingScriptVersion = script.Version
		return
	}
	now := o.clock()
	p.LastPromptUpdateAt = &now
}

func (o *Orchestrator) push(ctx context.Context, p *knowledge.ProjectState, script *knowledge.InterviewScript) error {
	if o.syncer == nil {
		return errNoSyncer
	}
	prompt, err := designer.RenderPrompt(script, p.Language, o.maxSections)
	if err != nil {
		return err
	}
	return o.syncer.PushPrompt(ctx, p.AgentID, prompt)
}

func (o *Orchestrator) emitScript(p *knowledge.ProjectState, script *knowledge.InterviewScript, guarded safety.Result) {
	o.events.Emit(p.ID, events.ScriptUpdated, map[string]any{
		"version":                        script.Version,
		"changes_summary":                script.ChangesSummary,
		"sync_pending":                   p.SyncPending,
		"prompt_safety_status":           p.PromptSafetyStatus,
		"prompt_safety_violations_count": p.PromptSafetyViolations,
	})
	if guarded.Status == knowledge.SafetySanitized || guarded.Status == knowledge.SafetyFallback {
		o.events.Emit(p.ID, events.PromptSanitized, map[string]any{
			"project_id":       p.ID,
			"script_version":   script.Version,
			"status":           guarded.Status,
			"violations_count": len(guarded.Violations),
		})
	}
	if guarded.TopicRedirectApplied {
		o.events.Emit(p.ID, events.TopicRedirectApplied, map[string]any{
			"project_id":     p.ID,
			"script_version": script.Version,
		})
	}
}
