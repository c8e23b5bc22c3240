package postgres

import (
	"context"
	"fmt"
	"time"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/storage"
)

// CycleStore is a PostgreSQL implementation of storage.CycleStore.
// The cycle_state table holds a single row with id 1.
type CycleStore struct {
	pool *Pool
}

// NewCycleStore creates a new PostgreSQL cycle store.
func NewCycleStore(pool *Pool) *CycleStore {
	return &CycleStore{pool: pool}
}

var _ storage.CycleStore = (*CycleStore)(nil)

// Save upserts the current cycle state.
func (s *CycleStore) Save(ctx context.Context, state *domain.CycleState) error {
	if state == nil || state.CycleStart.IsZero() {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO cycle_state (id, cycle_start_ms, updated_at_ms)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET cycle_start_ms = EXCLUDED.cycle_start_ms,
		    updated_at_ms = EXCLUDED.updated_at_ms
	`, state.CycleStart.UnixMilli(), state.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save cycle state: %w", err)
	}
	return nil
}

// Current returns the saved cycle state.
func (s *CycleStore) Current(ctx context.Context) (*domain.CycleState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT cycle_start_ms, updated_at_ms
		FROM cycle_state
		WHERE id = 1
	`)

	var startMs, updatedMs int64
	if err := row.Scan(&startMs, &updatedMs); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get cycle state: %w", err)
	}

	return &domain.CycleState{
		CycleStart: time.UnixMilli(startMs).UTC(),
		UpdatedAt:  time.UnixMilli(updatedMs).UTC(),
	}, nil
}
