package projects

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
)

// InMemoryStore keeps projects in memory for tests and development.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[id.ProjectID]*Project
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{rows: make(map[id.ProjectID]*Project)}
}

func (s *InMemoryStore) Seed(projects ...*Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range projects {
		clone := *p
		s.rows[p.ID] = &clone
	}
}

func (s *InMemoryStore) Get(_ context.Context, projectID id.ProjectID) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, sentinel.ErrNotFound)
	}
	clone := *p
	return &clone, nil
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Project
	for _, p := range s.rows {
		if p.IsActive {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
