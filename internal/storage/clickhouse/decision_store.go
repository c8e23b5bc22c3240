package clickhouse

import (
	"context"
	"fmt"
	"time"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/storage"
)

// DecisionStore implements storage.DecisionStore using ClickHouse.
type DecisionStore struct {
	conn *Conn
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(conn *Conn) *DecisionStore {
	return &DecisionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

// Insert appends a decision. ReplacingMergeTree does not reject duplicates,
// so decision_id uniqueness is checked before the write.
func (s *DecisionStore) Insert(ctx context.Context, d *domain.Decision) error {
	if d == nil || d.DecisionID == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, d.DecisionID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO decisions (
			decision_id, mint, venue, passed, failed_stage, reason, retryable,
			liquidity_usd, age_minutes, top10_holder_pct, risk_score, price_usd,
			evaluated_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		d.DecisionID, d.Mint, string(d.Venue), boolToUInt8(d.Passed),
		string(d.FailedStage), d.Reason, boolToUInt8(d.Retryable),
		d.Facts.LiquidityUSD, d.Facts.AgeMinutes, d.Facts.Top10HolderPct,
		d.Facts.RiskScore, d.Facts.PriceUSD,
		uint64(d.EvaluatedAt.UnixMilli()),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves all decisions for a mint, ordered by evaluated_at ASC.
func (s *DecisionStore) GetByMint(ctx context.Context, mint string) ([]*domain.Decision, error) {
	query := `
		SELECT decision_id, mint, venue, passed, failed_stage, reason, retryable,
			liquidity_usd, age_minutes, top10_holder_pct, risk_score, price_usd,
			evaluated_at_ms
		FROM decisions FINAL
		WHERE mint = ?
		ORDER BY evaluated_at_ms ASC, decision_id ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// CountByStage counts decisions evaluated at or after since, keyed by failed stage.
func (s *DecisionStore) CountByStage(ctx context.Context, since time.Time) (map[domain.Stage]int, error) {
	query := `
		SELECT failed_stage, count(*)
		FROM decisions FINAL
		WHERE evaluated_at_ms >= ?
		GROUP BY failed_stage
	`

	rows, err := s.conn.Query(ctx, query, uint64(since.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("count by stage: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Stage]int)
	for rows.Next() {
		var stage string
		var n uint64
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		counts[domain.Stage(stage)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage counts: %w", err)
	}
	return counts, nil
}

func (s *DecisionStore) exists(ctx context.Context, decisionID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM decisions WHERE decision_id = ?`, decisionID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanDecisions(rows chRows) ([]*domain.Decision, error) {
	var result []*domain.Decision

	for rows.Next() {
		var d domain.Decision
		var venue, stage string
		var passed, retryable uint8
		var evaluatedAtMs uint64

		err := rows.Scan(
			&d.DecisionID, &d.Mint, &venue, &passed, &stage, &d.Reason, &retryable,
			&d.Facts.LiquidityUSD, &d.Facts.AgeMinutes, &d.Facts.Top10HolderPct,
			&d.Facts.RiskScore, &d.Facts.PriceUSD,
			&evaluatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}

		d.Venue = domain.Venue(venue)
		d.FailedStage = domain.Stage(stage)
		d.Passed = passed == 1
		d.Retryable = retryable == 1
		d.EvaluatedAt = time.UnixMilli(int64(evaluatedAtMs)).UTC()
		result = append(result, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision rows: %w", err)
	}
	return result, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
