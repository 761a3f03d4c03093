package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"interviewlab/internal/agentsync"
	"interviewlab/internal/events"
	"interviewlab/internal/knowledge"
	"interviewlab/internal/logging"
	"interviewlab/internal/metrics"
	"interviewlab/internal/synthesis"
)

// Default proposition used when the designer proposes none.
const (
	defaultFactor    = "Overall hackathon experience"
	defaultMechanism = "Personal perception of events and constraints"
	defaultOutcome   = "Positive or negative sentiment during participation"
)

// NewProject describes a project to create.
type NewProject struct {
	ID               string   `json:"project_id"`
	ResearchQuestion string   `json:"research_question"`
	Language         string   `json:"language,omitempty"`
	InitialAngles    []string `json:"initial_angles,omitempty"`
	AgentID          string   `json:"agent_id,omitempty"`
}

// CreateProject stores a new draft project.
func (o *Orchestrator) CreateProject(ctx context.Context, np NewProject) (*knowledge.ProjectState, error) {
	id := strings.TrimSpace(np.ID)
	rq := strings.TrimSpace(np.ResearchQuestion)
	if id == "" || rq == "" {
		return nil, fmt.Errorf("create project: id and research question are required")
	}
	lang := knowledge.NormalizeLanguage(np.Language)
	if lang == "" {
		lang = knowledge.LangEnglish
	}
	if !knowledge.IsSupportedLanguage(lang) {
		return nil, fmt.Errorf("create project %s: %w: %q", id, knowledge.ErrUnknownLanguage, np.Language)
	}

	unlock := o.lock(id)
	defer unlock()

	p := knowledge.NewProject(id, rq, lang, o.clock())
	p.InitialAngles = append([]string(nil), np.InitialAngles...)
	p.AgentID = strings.TrimSpace(np.AgentID)
	if err := o.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project %s: %w", id, err)
	}
	logging.ForProject("orchestrate", id).Info("project created", "language", lang)
	o.emitStatus(p)
	return p, nil
}

// StartProject designs the initial propositions and the version 1 script of
// a draft project. agentID, when set, binds the project to that agent first.
func (o *Orchestrator) StartProject(ctx context.Context, projectID, agentID string) (*Outcome, error) {
	log := logging.ForProject("orchestrate", projectID)
	unlock := o.lock(projectID)
	defer unlock()

	p, err := o.store.Load(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p.Status != knowledge.ProjectDraft || len(p.Scripts) > 0 {
		return nil, fmt.Errorf("start project %s in status %s: %w", p.ID, p.Status, ErrInvalidState)
	}
	if agentID = strings.TrimSpace(agentID); agentID != "" {
		p.AgentID = agentID
	}

	var (
		props  []knowledge.Proposition
		script *knowledge.InterviewScript
	)
	if o.designer != nil {
		props, script, err = o.designer.InitialScript(ctx, knowledge.DesignRequest{
			ProjectID:        p.ID,
			ResearchQuestion: p.ResearchQuestion,
			Language:         p.Language,
			InitialAngles:    p.InitialAngles,
			Metrics:          p.Metrics,
			Version:          1,
			MaxSections:      o.maxSections,
		})
	} else {
		err = errors.New("no designer configured")
	}
	fallback := err != nil || script == nil
	if fallback {
		if err != nil {
			log.Warn("initial design failed, using minimal script", "error", err)
		}
		props = []knowledge.Proposition{defaultProposition("P001")}
		script = knowledge.MinimalScript(p.ResearchQuestion, props, p.Metrics, 1, o.maxSections)
	} else {
		script = script.Clone()
	}

	p.Propositions = fixPropositionIDs(props, len(p.Propositions))
	if len(p.Propositions) == 0 {
		p.Propositions = []knowledge.Proposition{defaultProposition(p.NextPropositionID())}
	}
	p.Metrics = knowledge.Metrics{
		ConvergenceScore: knowledge.Clamp01(script.ConvergenceScore),
		NoveltyRate:      knowledge.Clamp01(script.NoveltyRate),
		Mode:             knowledge.ParseMode(string(script.Mode)),
	}
	if len(script.Sections) == 0 {
		script.Sections = bootstrapSections(p.Propositions, o.maxSections)
	}
	script.Version = 1
	if script.ResearchQuestion == "" {
		script.ResearchQuestion = p.ResearchQuestion
	}

	guarded := o.enforce(p, script)
	p.Scripts = []knowledge.InterviewScript{*guarded.Script}
	current := p.CurrentScript()
	o.sync(ctx, p, current, log)

	if err := o.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	source := metrics.SourceDesigner
	if fallback {
		source = metrics.SourceFallback
	}
	o.metrics.Script(source, guarded.Status, guarded.Redirects)

	for _, prop := range p.Propositions {
		o.events.Emit(p.ID, events.NewProposition, prop)
	}
	o.emitScript(p, current, guarded)
	o.emitStatus(p)
	log.Info("project started", "propositions", len(p.Propositions), "sections", len(current.Sections),
		"safety", guarded.Status, "sync_pending", p.SyncPending)

	out := &Outcome{
		Status:           StatusStarted,
		ProjectID:        p.ID,
		ScriptVersion:    current.Version,
		SyncPending:      p.SyncPending,
		ProjectStatus:    p.Status,
		SafetyStatus:     guarded.Status,
		SafetyViolations: len(guarded.Violations),
		TopicRedirect:    guarded.TopicRedirectApplied,
		FallbackScript:   fallback,
		NewPropositions:  len(p.Propositions),
		Propositions:     len(p.Propositions),
	}
	if p.AgentID != "" {
		out.TalkToLink = agentsync.TalkToLink(p.AgentID)
	}
	return out, nil
}

func defaultProposition(id string) knowledge.Proposition {
	return knowledge.Proposition{
		ID:        id,
		Factor:    defaultFactor,
		Mechanism: defaultMechanism,
		Outcome:   defaultOutcome,
		Status:    knowledge.StatusUntested,
	}
}

// fixPropositionIDs gives every proposition without an id, or with an id
// already seen, the next free P%03d id counting from existing+1.
func fixPropositionIDs(props []knowledge.Proposition, existing int) []knowledge.Proposition {
	seen := map[string]bool{}
	next := existing + 1
	out := make([]knowledge.Proposition, 0, len(props))
	for _, prop := range props {
		if prop.ID == "" || seen[prop.ID] {
			for {
				id := fmt.Sprintf("P%03d", next)
				next++
				if !seen[id] {
					prop.ID = id
					break
				}
			}
		}
		if prop.Status == "" {
			prop.Status = knowledge.StatusUntested
		}
		prop.Confidence = knowledge.Clamp01(prop.Confidence)
		// No evidence exists before the first interview.
		prop.SupportingEvidence = nil
		prop.ContradictingEvidence = nil
		prop.HeuristicSupportingEvidence = nil
		seen[prop.ID] = true
		out = append(out, prop)
	}
	return out
}

func bootstrapSections(props []knowledge.Proposition, limit int) []knowledge.ScriptSection {
	var out []knowledge.ScriptSection
	for _, prop := range props {
		if len(out) >= limit {
			break
		}
		out = append(out, knowledge.ScriptSection{
			PropositionID: prop.ID,
			Priority:      knowledge.PriorityHigh,
			Instruction:   knowledge.InstructionExplore,
			MainQuestion:  fmt.Sprintf("Could you tell me more about %s?", strings.ToLower(prop.Factor)),
			Probes:        []string{"Can you give an example?", "What happened next?"},
			Context:       "Bootstrap section",
		})
	}
	return out
}

// Report is the result of GenerateReport.
type Report struct {
	ProjectID      string `json:"project_id"`
	Markdown       string `json:"report"`
	Mode           string `json:"report_generation_mode"`
	FallbackReason string `json:"report_fallback_reason,omitempty"`
}

// GenerateReport writes the project report. Pending evidence translations
// are filled first when the synthesizer can translate. Any synthesizer
// failure yields the deterministic grounded report instead.
func (o *Orchestrator) GenerateReport(ctx context.Context, projectID string) (*Report, error) {
	log := logging.ForProject("orchestrate", projectID)
	unlock := o.lock(projectID)
	defer unlock()

	p, err := o.store.Load(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p.Status != knowledge.ProjectRunning && p.Status != knowledge.ProjectDone {
		return nil, fmt.Errorf("report for project %s in status %s: %w", p.ID, p.Status, ErrInvalidState)
	}
	p.Status = knowledge.ProjectReporting
	if err := o.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	o.emitStatus(p)

	if tr, ok := o.synthesizer.(Translator); ok {
		translations, err := tr.Translate(ctx, p)
		if err != nil {
			log.Warn("evidence translation failed", "error", err)
		}
		for id, english := range translations {
			if err := p.SetTranslation(id, english); err != nil {
				log.Debug("translation dropped", "evidence", id, "error", err)
			}
		}
	}

	var markdown string
	if o.synthesizer != nil {
		markdown, err = o.synthesizer.Synthesize(ctx, p)
	} else {
		err = errors.New("no synthesizer configured")
	}
	if err == nil && strings.TrimSpace(markdown) == "" {
		err = errors.New("synthesizer returned an empty report")
	}
	if err != nil {
		log.Warn("synthesis failed, using grounded fallback report", "error", err)
		markdown = synthesis.Fallback(p, err.Error())
		p.ReportGenerationMode = knowledge.ReportModeFallback
		p.ReportFallbackReason = err.Error()
	} else {
		p.ReportGenerationMode = knowledge.ReportModeLLM
		p.ReportFallbackReason = ""
	}

	now := o.clock()
	p.ReportMarkdown = markdown
	p.ReportGeneratedAt = &now
	p.ReportStale = false
	p.Status = knowledge.ProjectDone
	if err := o.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}

	o.events.Emit(p.ID, events.ReportReady, map[string]any{
		"project_id":             p.ID,
		"report_generation_mode": p.ReportGenerationMode,
		"report_fallback_reason": p.ReportFallbackReason,
	})
	o.emitStatus(p)
	o.emitStats(p)
	log.Info("report generated", "mode", p.ReportGenerationMode)

	return &Report{
		ProjectID:      p.ID,
		Markdown:       markdown,
		Mode:           p.ReportGenerationMode,
		FallbackReason: p.ReportFallbackReason,
	}, nil
}

// RetrySync pushes the current script again when a previous push failed.
// It reports whether the project is still pending afterwards.
func (o *Orchestrator) RetrySync(ctx context.Context, projectID string) (bool, error) {
	log := logging.ForProject("orchestrate", projectID)
	unlock := o.lock(projectID)
	defer unlock()

	p, err := o.store.Load(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("load project: %w", err)
	}
	cur := p.CurrentScript()
	if !p.SyncPending || cur == nil {
		return p.SyncPending, nil
	}
	o.sync(ctx, p, cur, log)
	if err := o.store.Save(ctx, p); err != nil {
		return true, fmt.Errorf("save project: %w", err)
	}
	o.emitStatus(p)
	return p.SyncPending, nil
}

// SetTranslation records the English rendition of one evidence quote.
func (o *Orchestrator) SetTranslation(ctx context.Context, projectID, evidenceID, english string) error {
	unlock := o.lock(projectID)
	defer unlock()

	p, err := o.store.Load(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if err := p.SetTranslation(evidenceID, strings.TrimSpace(english)); err != nil {
		return err
	}
	if err := o.store.Save(ctx, p); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}
