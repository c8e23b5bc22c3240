package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/storage"
)

// PurchaseStore is an in-memory implementation of storage.PurchaseStore.
type PurchaseStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PurchaseRecord // keyed by id
}

// NewPurchaseStore creates a new in-memory purchase store.
func NewPurchaseStore() *PurchaseStore {
	return &PurchaseStore{
		data: make(map[string]*domain.PurchaseRecord),
	}
}

var _ storage.PurchaseStore = (*PurchaseStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if id exists.
func (s *PurchaseStore) Insert(_ context.Context, r *domain.PurchaseRecord) error {
	if r == nil || r.ID == "" || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.ID] = copyRecord(r)
	return nil
}

// GetByMint retrieves the earliest record for a mint. Returns ErrNotFound if not exists.
func (s *PurchaseStore) GetByMint(_ context.Context, mint string) (*domain.PurchaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.PurchaseRecord
	for _, r := range s.data {
		if r.Mint != mint {
			continue
		}
		if found == nil || r.Timestamp.Before(found.Timestamp) {
			found = r
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return copyRecord(found), nil
}

// GetByCycle retrieves records of a cycle, ordered by timestamp ASC.
// Cycles are matched at millisecond precision, as in the SQL stores.
func (s *PurchaseStore) GetByCycle(_ context.Context, cycleStart time.Time) ([]*domain.PurchaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PurchaseRecord
	for _, r := range s.data {
		if r.CycleStart.UnixMilli() == cycleStart.UnixMilli() {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

func copyRecord(r *domain.PurchaseRecord) *domain.PurchaseRecord {
	c := *r
	if r.EntryPriceUSD != nil {
		p := *r.EntryPriceUSD
		c.EntryPriceUSD = &p
	}
	return &c
}
