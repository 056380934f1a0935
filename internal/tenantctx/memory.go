package tenantctx

import (
	"context"
	"sync"
)

// MemoryStore implements SelectionStore using in-process storage
type MemoryStore struct {
	mu         sync.RWMutex
	selections map[string]uint
}

var _ SelectionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory selection store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		selections: make(map[string]uint),
	}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if tenantID, ok := s.selections[sessionID]; ok {
		return tenantID, nil
	}
	return 0, ErrNoSelection
}

func (s *MemoryStore) Set(ctx context.Context, sessionID string, tenantID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selections[sessionID] = tenantID
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.selections, sessionID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
