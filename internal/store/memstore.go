package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"interviewlab/internal/knowledge"
)

type memEntry struct {
	snapshot []byte
	summary  Summary
}

// MemStore implements Store in memory. Projects are held as JSON snapshots
// so callers never share state with the store.
type MemStore struct {
	mu       sync.RWMutex
	projects map[string]memEntry
	now      func() time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{projects: map[string]memEntry{}, now: time.Now}
}

func (s *MemStore) put(p *knowledge.ProjectState) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode project %s: %w", p.ID, err)
	}
	s.projects[p.ID] = memEntry{snapshot: raw, summary: summarize(p, s.now().UTC())}
	return nil
}

// Create implements Store.
func (s *MemStore) Create(_ context.Context, p *knowledge.ProjectState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, p.ID)
	}
	return s.put(p)
}

// Load implements Store.
func (s *MemStore) Load(_ context.Context, id string) (*knowledge.ProjectState, error) {
	s.mu.RLock()
	e, ok := s.projects[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var p knowledge.ProjectState
	if err := json.Unmarshal(e.snapshot, &p); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", id, err)
	}
	return &p, nil
}

// Save implements Store.
func (s *MemStore) Save(_ context.Context, p *knowledge.ProjectState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	return s.put(p)
}

// List implements Store. Projects are ordered by id.
func (s *MemStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.projects))
	for _, e := range s.projects {
		out = append(out, e.summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete implements Store.
func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.projects, id)
	return nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
