package postgres

import (
	"context"
	"fmt"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/storage"
)

// SeenMintStore is a PostgreSQL implementation of storage.SeenMintStore.
type SeenMintStore struct {
	pool *Pool
}

// NewSeenMintStore creates a new PostgreSQL seen mint store.
func NewSeenMintStore(pool *Pool) *SeenMintStore {
	return &SeenMintStore{pool: pool}
}

var _ storage.SeenMintStore = (*SeenMintStore)(nil)

// MarkSeen records that a mint has been observed.
func (s *SeenMintStore) MarkSeen(ctx context.Context, mint string, venue domain.Venue) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO seen_mints (mint, venue, seen_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (mint) DO NOTHING
	`, mint, string(venue))
	if err != nil {
		return fmt.Errorf("mark mint seen: %w", err)
	}
	return nil
}

// Forget removes a mint from the set.
func (s *SeenMintStore) Forget(ctx context.Context, mint string) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM seen_mints WHERE mint = $1`, mint); err != nil {
		return fmt.Errorf("forget mint: %w", err)
	}
	return nil
}

// LoadSeen returns all seen mints.
func (s *SeenMintStore) LoadSeen(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT mint FROM seen_mints`)
	if err != nil {
		return nil, fmt.Errorf("query seen mints: %w", err)
	}
	defer rows.Close()

	var mints []string
	for rows.Next() {
		var mint string
		if err := rows.Scan(&mint); err != nil {
			return nil, err
		}
		mints = append(mints, mint)
	}

	return mints, rows.Err()
}
