package submission

import (
	"context"
	"fmt"
	"sync"

	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
)

type key struct {
	app  id.ApplicationID
	form id.FormNumber
}

// InMemoryStore keeps submission rows in memory for tests and development.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[key]*FormSubmission
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{rows: make(map[key]*FormSubmission)}
}

func (s *InMemoryStore) Create(_ context.Context, sub *FormSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{app: sub.ApplicationID, form: sub.FormNumber}
	if _, ok := s.rows[k]; ok {
		return fmt.Errorf("submission for form %d: %w", sub.FormNumber, sentinel.ErrConflict)
	}
	s.rows[k] = sub.Clone()
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, appID id.ApplicationID, form id.FormNumber) (*FormSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.rows[key{app: appID, form: form}]
	if !ok {
		return nil, fmt.Errorf("submission for form %d: %w", form, sentinel.ErrNotFound)
	}
	return sub.Clone(), nil
}

func (s *InMemoryStore) ListByApplication(_ context.Context, appID id.ApplicationID) ([]*FormSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*FormSubmission
	for k, sub := range s.rows {
		if k.app == appID {
			out = append(out, sub.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, appID id.ApplicationID, form id.FormNumber,
	validate func(*FormSubmission) error,
	mutate func(*FormSubmission)) (*FormSubmission, error) {

	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.rows[key{app: appID, form: form}]
	if !ok {
		return nil, fmt.Errorf("submission for form %d: %w", form, sentinel.ErrNotFound)
	}
	if err := validate(sub); err != nil {
		return sub.Clone(), err
	}
	mutate(sub)
	return sub.Clone(), nil
}
