package store

import (
	"context"
	"errors"
	"time"

	"interviewlab/internal/knowledge"
)

// DefaultDBPath is the default relative path for the SQLite DB (per-workspace).
// Open() creates the parent dir (.interviewlab).
const DefaultDBPath = ".interviewlab/interviewlab.db"

var (
	// ErrNotFound is returned when no project has the requested id.
	ErrNotFound = errors.New("project not found")
	// ErrExists is returned by Create for an id that is already taken.
	ErrExists = errors.New("project already exists")
)

// Summary is the listing view of a stored project.
type Summary struct {
	ID               string                  `json:"id"`
	ResearchQuestion string                  `json:"research_question"`
	Status           knowledge.ProjectStatus `json:"status"`
	Language         string                  `json:"language"`
	Interviews       int                     `json:"interviews"`
	ScriptVersion    int                     `json:"script_version"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// Store is the persistence facade for project state.
// The orchestrator and CLI use only this interface; implementation is SQLite or in-memory.
// Loaded states are private copies: mutating one never affects the store
// until Save.
type Store interface {
	Create(ctx context.Context, p *knowledge.ProjectState) error
	Load(ctx context.Context, id string) (*knowledge.ProjectState, error)
	// Save replaces the stored state of an existing project.
	Save(ctx context.Context, p *knowledge.ProjectState) error
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

func summarize(p *knowledge.ProjectState, updated time.Time) Summary {
	s := Summary{
		ID:               p.ID,
		ResearchQuestion: p.ResearchQuestion,
		Status:           p.Status,
		Language:         p.Language,
		Interviews:       len(p.Interviews),
		UpdatedAt:        updated,
	}
	if cur := p.CurrentScript(); cur != nil {
		s.ScriptVersion = cur.Version
	}
	return s
}
