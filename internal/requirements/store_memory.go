package requirements

import (
	"context"
	"sync"

	id "prequal/pkg/domain"
)

// InMemoryStore keeps project requirements in memory for tests and
// development.
type InMemoryStore struct {
	mu     sync.RWMutex
	byProj map[id.ProjectID][]Requirement
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byProj: make(map[id.ProjectID][]Requirement)}
}

// Seed replaces the requirements for a project.
func (s *InMemoryStore) Seed(projectID id.ProjectID, reqs []Requirement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byProj[projectID] = append([]Requirement(nil), reqs...)
}

func (s *InMemoryStore) ListByProject(_ context.Context, projectID id.ProjectID) ([]Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Requirement(nil), s.byProj[projectID]...), nil
}
