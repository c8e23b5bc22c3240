package memory

import (
	"context"
	"sync"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/storage"
)

// CycleStore is an in-memory implementation of storage.CycleStore.
type CycleStore struct {
	mu    sync.RWMutex
	state *domain.CycleState
}

// NewCycleStore creates a new in-memory cycle store.
func NewCycleStore() *CycleStore {
	return &CycleStore{}
}

var _ storage.CycleStore = (*CycleStore)(nil)

// Save replaces the current cycle state.
func (s *CycleStore) Save(_ context.Context, state *domain.CycleState) error {
	if state == nil || state.CycleStart.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *state
	s.state = &c
	return nil
}

// Current returns the saved cycle state.
func (s *CycleStore) Current(_ context.Context) (*domain.CycleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, storage.ErrNotFound
	}

	c := *s.state
	return &c, nil
}
