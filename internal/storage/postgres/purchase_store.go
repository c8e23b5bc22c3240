package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/storage"
)

// PurchaseStore implements storage.PurchaseStore using PostgreSQL.
type PurchaseStore struct {
	pool *Pool
}

// NewPurchaseStore creates a new PurchaseStore.
func NewPurchaseStore(pool *Pool) *PurchaseStore {
	return &PurchaseStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PurchaseStore = (*PurchaseStore)(nil)

const purchaseColumns = `
	id, mint, venue, amount::text, tx_id,
	timestamp_ms, cycle_start_ms, entry_price_usd
`

// Insert adds a new record. Returns ErrDuplicateKey if id exists.
func (s *PurchaseStore) Insert(ctx context.Context, r *domain.PurchaseRecord) error {
	if r == nil || r.ID == "" || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO purchase_records (
			id, mint, venue, amount, tx_id,
			timestamp_ms, cycle_start_ms, entry_price_usd
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.Mint, string(r.Venue), r.Amount.String(), r.TxID,
		r.Timestamp.UnixMilli(), r.CycleStart.UnixMilli(), r.EntryPriceUSD,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert purchase record: %w", err)
	}
	return nil
}

// GetByMint retrieves the earliest record for a mint. Returns ErrNotFound if not exists.
func (s *PurchaseStore) GetByMint(ctx context.Context, mint string) (*domain.PurchaseRecord, error) {
	query := `SELECT ` + purchaseColumns + `
		FROM purchase_records
		WHERE mint = $1
		ORDER BY timestamp_ms ASC
		LIMIT 1
	`

	r, err := scanPurchaseRecord(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get purchase record by mint: %w", err)
	}
	return r, nil
}

// GetByCycle retrieves records of a cycle, ordered by timestamp ASC.
func (s *PurchaseStore) GetByCycle(ctx context.Context, cycleStart time.Time) ([]*domain.PurchaseRecord, error) {
	query := `SELECT ` + purchaseColumns + `
		FROM purchase_records
		WHERE cycle_start_ms = $1
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, cycleStart.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query purchase records by cycle: %w", err)
	}
	defer rows.Close()

	var result []*domain.PurchaseRecord
	for rows.Next() {
		r, err := scanPurchaseRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase record: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanPurchaseRecord(row pgx.Row) (*domain.PurchaseRecord, error) {
	var (
		r            domain.PurchaseRecord
		venue        string
		amount       string
		timestampMs  int64
		cycleStartMs int64
	)

	err := row.Scan(
		&r.ID, &r.Mint, &venue, &amount, &r.TxID,
		&timestampMs, &cycleStartMs, &r.EntryPriceUSD,
	)
	if err != nil {
		return nil, err
	}

	r.Venue = domain.Venue(venue)
	r.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	r.Timestamp = time.UnixMilli(timestampMs).UTC()
	r.CycleStart = time.UnixMilli(cycleStartMs).UTC()
	return &r, nil
}
