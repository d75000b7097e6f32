package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
)

// InMemoryStore keeps applications in memory for tests and development.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[id.ApplicationID]*Application
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{rows: make(map[id.ApplicationID]*Application)}
}

func (s *InMemoryStore) Create(_ context.Context, app *Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if existing.VendorID == app.VendorID && existing.ProjectID == app.ProjectID {
			return fmt.Errorf("application for project %s: %w", app.ProjectID, sentinel.ErrConflict)
		}
	}
	s.rows[app.ID] = app.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, appID id.ApplicationID) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.rows[appID]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", appID, sentinel.ErrNotFound)
	}
	return app.Clone(), nil
}

func (s *InMemoryStore) ListByVendor(_ context.Context, vendorID id.VendorID) ([]*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Application
	for _, app := range s.rows {
		if app.VendorID == vendorID {
			out = append(out, app.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, appID id.ApplicationID,
	validate func(*Application) error,
	mutate func(*Application)) (*Application, error) {

	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.rows[appID]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", appID, sentinel.ErrNotFound)
	}
	if err := validate(app); err != nil {
		return app.Clone(), err
	}
	mutate(app)
	return app.Clone(), nil
}

func (s *InMemoryStore) Delete(_ context.Context, appID id.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[appID]; !ok {
		return fmt.Errorf("application %s: %w", appID, sentinel.ErrNotFound)
	}
	delete(s.rows, appID)
	return nil
}
