package templates

import (
	"context"
	"sync"

	"prequal/internal/forms/schema"
)

// InMemoryStore keeps template sets in memory for tests and development.
type InMemoryStore struct {
	mu   sync.RWMutex
	sets map[schema.TemplateKind][]string
}

// NewInMemory constructs an empty in-memory template store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{sets: make(map[schema.TemplateKind][]string)}
}

// Seed replaces the entries for a kind.
func (s *InMemoryStore) Seed(kind schema.TemplateKind, names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[kind] = append([]string(nil), names...)
}

func (s *InMemoryStore) List(_ context.Context, kind schema.TemplateKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.sets[kind]...), nil
}
