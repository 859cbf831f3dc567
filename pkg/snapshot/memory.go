package snapshot

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	h := Hash(data)
	s.mu.Lock()
	if _, ok := s.blobs[h]; !ok {
		s.blobs[h] = append([]byte(nil), data...)
	}
	s.mu.Unlock()
	return h, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, hash string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blobs[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return append([]byte(nil), data...), nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
