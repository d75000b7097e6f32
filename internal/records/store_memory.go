package records

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"prequal/internal/forms/schema"
	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
)

// InMemoryStore keeps records in memory for tests and development.
type InMemoryStore struct {
	mu       sync.RWMutex
	records  map[id.RecordID]*Record
	children map[id.RecordID]*ChildRecord
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records:  make(map[id.RecordID]*Record),
		children: make(map[id.RecordID]*ChildRecord),
	}
}

func (s *InMemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("record %s: %w", rec.ID, sentinel.ErrConflict)
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, recordID id.RecordID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", recordID, sentinel.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) ListByForm(_ context.Context, appID id.ApplicationID, form id.FormNumber) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, rec := range s.records {
		if rec.ApplicationID == appID && rec.FormNumber == form {
			out = append(out, rec.Clone())
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

func (s *InMemoryStore) CountByForm(_ context.Context, appID id.ApplicationID, form id.FormNumber) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if rec.ApplicationID == appID && rec.FormNumber == form {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) FindByFieldText(_ context.Context, appID id.ApplicationID, form id.FormNumber, field, value string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.ApplicationID != appID || rec.FormNumber != form {
			continue
		}
		if strings.EqualFold(fieldText(rec.Fields, field), value) {
			return rec.Clone(), nil
		}
	}
	return nil, fmt.Errorf("record with %s=%s: %w", field, value, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Execute(_ context.Context, recordID id.RecordID,
	validate func(*Record) error,
	mutate func(*Record)) (*Record, error) {

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", recordID, sentinel.ErrNotFound)
	}
	if err := validate(rec); err != nil {
		return rec.Clone(), err
	}
	mutate(rec)
	return rec.Clone(), nil
}

func (s *InMemoryStore) Delete(_ context.Context, recordID id.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[recordID]; !ok {
		return fmt.Errorf("record %s: %w", recordID, sentinel.ErrNotFound)
	}
	delete(s.records, recordID)
	for childID, child := range s.children {
		if child.ParentID == recordID {
			delete(s.children, childID)
		}
	}
	return nil
}

func (s *InMemoryStore) CreateChild(_ context.Context, child *ChildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.children[child.ID]; ok {
		return fmt.Errorf("child record %s: %w", child.ID, sentinel.ErrConflict)
	}
	s.children[child.ID] = child.Clone()
	return nil
}

func (s *InMemoryStore) GetChild(_ context.Context, childID id.RecordID) (*ChildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	child, ok := s.children[childID]
	if !ok {
		return nil, fmt.Errorf("child record %s: %w", childID, sentinel.ErrNotFound)
	}
	return child.Clone(), nil
}

func (s *InMemoryStore) ListChildren(_ context.Context, parentID id.RecordID) ([]*ChildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ChildRecord
	for _, child := range s.children {
		if child.ParentID == parentID {
			out = append(out, child.Clone())
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

func (s *InMemoryStore) DeleteChild(_ context.Context, childID id.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.children[childID]; !ok {
		return fmt.Errorf("child record %s: %w", childID, sentinel.ErrNotFound)
	}
	delete(s.children, childID)
	return nil
}

func fieldText(fields schema.Fields, name string) string {
	v := fields.Get(name)
	switch v.Kind() {
	case schema.KindText:
		return v.Text()
	case schema.KindChoice:
		c, _ := v.Choice()
		return c.Name
	}
	return ""
}
