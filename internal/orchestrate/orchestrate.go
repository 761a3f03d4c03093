// Package orchestrate drives research projects through their lifecycle:
// project creation, the initial script, the per-interview processing
// pipeline and report generation. Runs for one project never interleave.
package orchestrate

import (
	"context"
	"errors"
	"sync"
	"time"

	"interviewlab/internal/designer"
	"interviewlab/internal/events"
	"interviewlab/internal/knowledge"
	"interviewlab/internal/linking"
	"interviewlab/internal/metrics"
	"interviewlab/internal/safety"
	"interviewlab/internal/store"
)

// ErrInvalidState is returned for an operation the project's lifecycle
// state does not allow.
var ErrInvalidState = errors.New("invalid project state")

// Analyst turns one transcript into structured analysis proposals.
type Analyst interface {
	Analyze(ctx context.Context, req knowledge.AnalysisRequest) (*knowledge.AnalysisResult, error)
}

// Designer produces interview scripts.
type Designer interface {
	InitialScript(ctx context.Context, req knowledge.DesignRequest) ([]knowledge.Proposition, *knowledge.InterviewScript, error)
	UpdateScript(ctx context.Context, req knowledge.DesignRequest) (*knowledge.InterviewScript, error)
}

// Syncer pushes a rendered interviewer prompt to an external agent.
type Syncer interface {
	PushPrompt(ctx context.Context, agentID, prompt string) error
}

// Synthesizer writes the final report.
type Synthesizer interface {
	Synthesize(ctx context.Context, p *knowledge.ProjectState) (string, error)
}

// Translator fills English renditions of pending evidence quotes. A
// Synthesizer that also implements Translator is asked to translate before
// the report is written.
type Translator interface {
	Translate(ctx context.Context, p *knowledge.ProjectState) (map[string]string, error)
}

// Options wires an Orchestrator. Store is required; nil collaborators
// degrade the way a failing collaborator would.
type Options struct {
	Store       store.Store
	Analyst     Analyst
	Designer    Designer
	Syncer      Syncer
	Synthesizer Synthesizer
	Events      events.Sink
	Metrics     *metrics.Metrics
	Guard       *safety.Guard
	Linking     linking.Config
	MaxSections int
	Now         func() time.Time
}

// Orchestrator runs project operations against a Store.
type Orchestrator struct {
	store       store.Store
	analyst     Analyst
	designer    Designer
	syncer      Syncer
	synthesizer Synthesizer
	events      events.Sink
	metrics     *metrics.Metrics
	guard       *safety.Guard
	linking     linking.Config
	maxSections int
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an Orchestrator. Missing options take their defaults.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:       opts.Store,
		analyst:     opts.Analyst,
		designer:    opts.Designer,
		syncer:      opts.Syncer,
		synthesizer: opts.Synthesizer,
		events:      opts.Events,
		metrics:     opts.Metrics,
		guard:       opts.Guard,
		linking:     opts.Linking,
		maxSections: opts.MaxSections,
		now:         opts.Now,
		locks:       make(map[string]*sync.Mutex),
	}
	if o.events == nil {
		o.events = events.Discard{}
	}
	if o.guard == nil {
		o.guard = safety.MustNew(0)
	}
	if o.linking == (linking.Config{}) {
		o.linking = linking.DefaultConfig()
	}
	if o.maxSections <= 0 {
		o.maxSections = designer.DefaultMaxSections
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// lock serialises runs for one project and returns the unlock func.
func (o *Orchestrator) lock(projectID string) func() {
	o.mu.Lock()
	l, ok := o.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[projectID] = l
	}
	o.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (o *Orchestrator) clock() time.Time { return o.now().UTC() }

// Load returns the stored state of a project.
func (o *Orchestrator) Load(ctx context.Context, projectID string) (*knowledge.ProjectState, error) {
	return o.store.Load(ctx, projectID)
}

// List returns summaries of all stored projects.
func (o *Orchestrator) List(ctx context.Context) ([]store.Summary, error) {
	return o.store.List(ctx)
}

// HypothesisMap returns the structural evidence/hypothesis map of a project.
func (o *Orchestrator) HypothesisMap(ctx context.Context, projectID string) (*linking.Map, error) {
	p, err := o.store.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return linking.BuildMap(p, o.linking, o.clock()), nil
}

func (o *Orchestrator) emitStatus(p *knowledge.ProjectState) {
	o.events.Emit(p.ID, events.ProjectStatus, map[string]any{
		"project_id":                     p.ID,
		"status":                         p.Status,
		"report_stale":                   p.ReportStale,
		"sync_pending":                   p.SyncPending,
		"prompt_safety_status":           p.PromptSafetyStatus,
		"prompt_safety_violations_count": p.PromptSafetyViolations,
	})
}

func (o *Orchestrator) emitStats(p *knowledge.ProjectState) {
	o.events.Emit(p.ID, events.ProjectStats, p.Stats())
}
