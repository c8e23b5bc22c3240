package memory

import (
	"context"
	"sync"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/storage"
)

// SeenMintStore is an in-memory implementation of storage.SeenMintStore.
type SeenMintStore struct {
	mu        sync.RWMutex
	seenMints map[string]domain.Venue
}

// NewSeenMintStore creates a new in-memory seen mint store.
func NewSeenMintStore() *SeenMintStore {
	return &SeenMintStore{
		seenMints: make(map[string]domain.Venue),
	}
}

var _ storage.SeenMintStore = (*SeenMintStore)(nil)

// MarkSeen records that a mint has been observed.
func (s *SeenMintStore) MarkSeen(_ context.Context, mint string, venue domain.Venue) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seenMints[mint]; !ok {
		s.seenMints[mint] = venue
	}
	return nil
}

// Forget removes a mint from the set.
func (s *SeenMintStore) Forget(_ context.Context, mint string) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.seenMints, mint)
	return nil
}

// LoadSeen returns all seen mints.
func (s *SeenMintStore) LoadSeen(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mints := make([]string, 0, len(s.seenMints))
	for mint := range s.seenMints {
		mints = append(mints, mint)
	}
	return mints, nil
}
