package questionnaire

import (
	"context"
	"sync"

	id "prequal/pkg/domain"
)

// InMemoryStore keeps question banks in memory for tests and development.
type InMemoryStore struct {
	mu     sync.RWMutex
	byProj map[id.ProjectID][]Question
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byProj: make(map[id.ProjectID][]Question)}
}

// Seed replaces the questions for a project.
func (s *InMemoryStore) Seed(projectID id.ProjectID, questions []Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byProj[projectID] = append([]Question(nil), questions...)
}

func (s *InMemoryStore) ListByProject(_ context.Context, projectID id.ProjectID) ([]Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Question(nil), s.byProj[projectID]...), nil
}
