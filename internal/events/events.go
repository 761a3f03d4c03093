// Package events fans out domain events of research projects to in-process
// subscribers and keeps a bounded log for polling clients.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names.
const (
	NewEvidence           = "new_evidence"
	PropositionUpdated    = "proposition_updated"
	NewProposition        = "new_proposition"
	ScriptUpdated         = "script_updated"
	PromptSanitized       = "prompt_sanitized"
	TopicRedirectApplied  = "topic_redirect_applied"
	HeuristicLinksUpdated = "heuristic_links_updated"
	ReportStale           = "report_stale"
	ReportReady           = "report_ready"
	ProjectStatus         = "project_status"
	ProjectStats          = "project_stats"
)

// Envelope is one delivered event. Seq increases by one per Emit on a bus
// and is the polling cursor.
type Envelope struct {
	ID        string    `json:"id"`
	Seq       int       `json:"seq"`
	ProjectID string    `json:"project_id"`
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	At        time.Time `json:"at"`
}

// Sink receives events. Emit must not block.
type Sink interface {
	Emit(projectID, event string, data any)
}

// Discard is a Sink that drops everything.
type Discard struct{}

// Emit does nothing.
func (Discard) Emit(string, string, any) {}

// DefaultLogSize is the number of envelopes kept per bus.
const DefaultLogSize = 512

type subscriber struct {
	project string
	ch      chan Envelope
}

// Bus delivers events at most once. A subscriber whose buffer is full misses
// the event; the emitter never waits.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]subscriber
	nextID  int
	seq     int
	log     []Envelope
	logSize int
	dropped int
	now     func() time.Time
}

// NewBus returns a bus keeping the last logSize envelopes (DefaultLogSize
// when logSize <= 0).
func NewBus(logSize int) *Bus {
	if logSize <= 0 {
		logSize = DefaultLogSize
	}
	return &Bus{subs: map[int]subscriber{}, logSize: logSize, now: time.Now}
}

// Subscribe registers a channel for projectID ("" receives every project).
// The returned func unsubscribes and closes the channel.
func (b *Bus) Subscribe(projectID string, buffer int) (<-chan Envelope, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Envelope, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscriber{project: projectID, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Emit records the event and offers it to every matching subscriber.
func (b *Bus) Emit(projectID, event string, data any) {
	env := Envelope{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Event:     event,
		Data:      data,
		At:        b.now().UTC(),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	env.Seq = b.seq
	b.log = append(b.log, env)
	if over := len(b.log) - b.logSize; over > 0 {
		b.log = append(b.log[:0:0], b.log[over:]...)
	}
	for _, s := range b.subs {
		if s.project != "" && s.project != projectID {
			continue
		}
		select {
		case s.ch <- env:
		default:
			b.dropped++
		}
	}
}

// Since returns a copy of the logged envelopes of projectID ("" for all)
// whose Seq is at least seq. Envelopes trimmed from the log are gone; the
// remaining ones are never skipped.
func (b *Bus) Since(projectID string, seq int) []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Envelope
	for _, env := range b.log {
		if env.Seq < seq || (projectID != "" && env.ProjectID != projectID) {
			continue
		}
		out = append(out, env)
	}
	return out
}

// Dropped is the number of deliveries skipped because a buffer was full.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
