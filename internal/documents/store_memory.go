package documents

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "prequal/pkg/domain"
	"prequal/pkg/platform/sentinel"
)

// InMemoryStore keeps document metadata in memory for tests and development.
type InMemoryStore struct {
	mu         sync.RWMutex
	docs       map[id.DocumentID]*Document
	vendorDocs map[id.DocumentID]*VendorDocument
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		docs:       make(map[id.DocumentID]*Document),
		vendorDocs: make(map[id.DocumentID]*VendorDocument),
	}
}

func (s *InMemoryStore) Create(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("document %s: %w", doc.ID, sentinel.ErrConflict)
	}
	c := *doc
	s.docs[doc.ID] = &c
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, docID id.DocumentID) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
	}
	c := *doc
	return &c, nil
}

func (s *InMemoryStore) ListByRecord(_ context.Context, recordID id.RecordID) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Document
	for _, doc := range s.docs {
		if doc.RelatedEntityID == recordID {
			c := *doc
			out = append(out, &c)
		}
	}
	sortDocs(out)
	return out, nil
}

func (s *InMemoryStore) ListByForm(_ context.Context, appID id.ApplicationID, form id.FormNumber) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Document
	for _, doc := range s.docs {
		if doc.ApplicationID == appID && doc.FormNumber == form {
			c := *doc
			out = append(out, &c)
		}
	}
	sortDocs(out)
	return out, nil
}

func (s *InMemoryStore) CountByRecordAndType(_ context.Context, recordID id.RecordID, docType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, doc := range s.docs {
		if doc.RelatedEntityID == recordID && doc.DocumentType == docType {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) Delete(_ context.Context, docID id.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
	}
	delete(s.docs, docID)
	return nil
}

func (s *InMemoryStore) CreateVendorDoc(_ context.Context, doc *VendorDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.vendorDocs {
		if existing.VendorID == doc.VendorID && existing.Category == doc.Category && existing.Key == doc.Key {
			return fmt.Errorf("%s %s: %w", doc.Category, doc.Key, sentinel.ErrConflict)
		}
	}
	c := *doc
	s.vendorDocs[doc.ID] = &c
	return nil
}

func (s *InMemoryStore) GetVendorDoc(_ context.Context, docID id.DocumentID) (*VendorDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.vendorDocs[docID]
	if !ok {
		return nil, fmt.Errorf("vendor document %s: %w", docID, sentinel.ErrNotFound)
	}
	c := *doc
	return &c, nil
}

func (s *InMemoryStore) ListVendorDocs(_ context.Context, vendorID id.VendorID, category VendorDocCategory) ([]*VendorDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*VendorDocument
	for _, doc := range s.vendorDocs {
		if doc.VendorID == vendorID && doc.Category == category {
			c := *doc
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *InMemoryStore) DeleteVendorDoc(_ context.Context, docID id.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vendorDocs[docID]; !ok {
		return fmt.Errorf("vendor document %s: %w", docID, sentinel.ErrNotFound)
	}
	delete(s.vendorDocs, docID)
	return nil
}

func sortDocs(docs []*Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID.String() < docs[j].ID.String()
	})
}
