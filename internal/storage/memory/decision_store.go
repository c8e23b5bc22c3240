package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/storage"
)

// DecisionStore is an in-memory implementation of storage.DecisionStore.
type DecisionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Decision // keyed by decision_id
}

// NewDecisionStore creates a new in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{
		data: make(map[string]*domain.Decision),
	}
}

var _ storage.DecisionStore = (*DecisionStore)(nil)

// Insert appends a decision. Returns ErrDuplicateKey if decision_id exists.
func (s *DecisionStore) Insert(_ context.Context, d *domain.Decision) error {
	if d == nil || d.DecisionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.DecisionID]; exists {
		return storage.ErrDuplicateKey
	}

	c := *d
	s.data[d.DecisionID] = &c
	return nil
}

// GetByMint retrieves all decisions for a mint, ordered by evaluated_at ASC.
func (s *DecisionStore) GetByMint(_ context.Context, mint string) ([]*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Decision
	for _, d := range s.data {
		if d.Mint == mint {
			c := *d
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EvaluatedAt.Before(result[j].EvaluatedAt)
	})

	return result, nil
}

// CountByStage counts decisions evaluated at or after since.
func (s *DecisionStore) CountByStage(_ context.Context, since time.Time) (map[domain.Stage]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.Stage]int)
	for _, d := range s.data {
		if d.EvaluatedAt.Before(since) {
			continue
		}
		counts[d.FailedStage]++
	}
	return counts, nil
}
