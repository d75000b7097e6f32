package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// BlobStore is the storage collaborator boundary: store bytes under a key,
// delete them, and mint a retrievable URL. This package never inspects blob
// contents.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// InMemoryBlobStore holds blobs in memory for tests and development.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *InMemoryBlobStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("read blob body: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = buf.Bytes()
	return nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *InMemoryBlobStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.blobs[key]; !ok {
		return "", fmt.Errorf("blob %s not found", key)
	}
	return "memory://" + key, nil
}

// Has reports whether a blob exists, for tests.
func (s *InMemoryBlobStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok
}
