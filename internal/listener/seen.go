package listener

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/logging"
	"launch-sniper/internal/storage"
)

// Seen is the process-wide set of mints already handed to the dispatcher.
// It is shared by all listeners and optionally backed by a store.
type Seen struct {
	mu     sync.Mutex
	mints  map[string]struct{}
	store  storage.SeenMintStore
	logger *zap.Logger
}

// NewSeen creates a seen set. store may be nil.
func NewSeen(store storage.SeenMintStore, logger *zap.Logger) *Seen {
	return &Seen{
		mints:  make(map[string]struct{}),
		store:  store,
		logger: logging.OrNop(logger),
	}
}

// Warm loads previously seen mints from the store.
func (s *Seen) Warm(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	mints, err := s.store.LoadSeen(ctx)
	if err != nil {
		return fmt.Errorf("load seen mints: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mints {
		s.mints[m] = struct{}{}
	}
	return nil
}

// Add marks mint as seen. Returns false if it was already seen.
func (s *Seen) Add(ctx context.Context, mint string, venue domain.Venue) bool {
	s.mu.Lock()
	if _, ok := s.mints[mint]; ok {
		s.mu.Unlock()
		return false
	}
	s.mints[mint] = struct{}{}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.MarkSeen(ctx, mint, venue); err != nil {
			s.logger.Warn("persist seen mint failed", zap.String("mint", mint), zap.Error(err))
		}
	}
	return true
}

// Release forgets mint so a later observation is evaluated again.
func (s *Seen) Release(ctx context.Context, mint string) {
	s.mu.Lock()
	delete(s.mints, mint)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Forget(ctx, mint); err != nil {
			s.logger.Warn("forget seen mint failed", zap.String("mint", mint), zap.Error(err))
		}
	}
}

// Len returns the number of seen mints.
func (s *Seen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mints)
}
