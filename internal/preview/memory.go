package preview

import (
	"context"
	"sync"
)

// MemoryStore keeps previews in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	previews map[string]*Preview
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{previews: make(map[string]*Preview)}
}

func (s *MemoryStore) Put(_ context.Context, mimeType string, data []byte) (string, error) {
	id := newID()
	s.mu.Lock()
	s.previews[id] = &Preview{ID: id, MIMEType: mimeType, Data: data}
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Preview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.previews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.previews[id]; !ok {
		return ErrNotFound
	}
	delete(s.previews, id)
	return nil
}

// Len returns the number of live previews.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.previews)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
