package storage

import (
	"context"
	"time"

	"launch-sniper/internal/domain"
)

// PurchaseStore provides access to purchase_records storage.
// Records are immutable: the store is append-only.
type PurchaseStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, r *domain.PurchaseRecord) error

	// GetByMint retrieves the record for a mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.PurchaseRecord, error)

	// GetByCycle retrieves records counted against cycleStart, ordered by timestamp ASC.
	GetByCycle(ctx context.Context, cycleStart time.Time) ([]*domain.PurchaseRecord, error)
}

// CycleStore persists the current cycle start of the ledger.
type CycleStore interface {
	// Save replaces the current cycle state.
	Save(ctx context.Context, s *domain.CycleState) error

	// Current returns the saved cycle state. Returns ErrNotFound if nothing was saved.
	Current(ctx context.Context) (*domain.CycleState, error)
}

// DecisionStore provides access to the validation decision log.
type DecisionStore interface {
	// Insert appends a decision. Returns ErrDuplicateKey if decision_id exists.
	Insert(ctx context.Context, d *domain.Decision) error

	// GetByMint retrieves all decisions for a mint, ordered by evaluated_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Decision, error)

	// CountByStage counts decisions evaluated at or after since, keyed by
	// failed stage. Passed decisions are counted under StageNone.
	CountByStage(ctx context.Context, since time.Time) (map[domain.Stage]int, error)
}

// SeenMintStore persists the listeners' seen set so a restart does not
// re-evaluate mints that already reached a final decision.
type SeenMintStore interface {
	// MarkSeen records a mint. Marking an already seen mint is a no-op.
	MarkSeen(ctx context.Context, mint string, venue domain.Venue) error

	// Forget removes a mint so it can be evaluated again.
	Forget(ctx context.Context, mint string) error

	// LoadSeen returns all seen mints (for warming the in-memory set).
	LoadSeen(ctx context.Context) ([]string, error)
}
