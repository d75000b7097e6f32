package audit

import (
	"context"
	"sync"

	id "prequal/pkg/domain"
)

// InMemorySink collects events in memory for tests and single-node use.
type InMemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything written so far.
func (s *InMemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}

// EventsByApplication filters written events by application.
func (s *InMemorySink) EventsByApplication(appID id.ApplicationID) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.ApplicationID == appID {
			out = append(out, e)
		}
	}
	return out
}
