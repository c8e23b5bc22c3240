// Package ledger tracks purchases against the per-cycle quota.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/logging"
	"launch-sniper/internal/observability"
	"launch-sniper/internal/storage"
)

// DefaultCycleLength is the quota window.
const DefaultCycleLength = 30 * 24 * time.Hour

// ErrQuotaExhausted is returned by RecordBuy when the cycle is full.
var ErrQuotaExhausted = errors.New("cycle quota exhausted")

// Ledger holds the cycle start and the buys recorded since then.
// All methods are safe for concurrent use.
type Ledger struct {
	mu          sync.Mutex
	maxBuys     int
	cycleLength time.Duration
	cycleStart  time.Time
	records     []domain.PurchaseRecord
	pending     int // reserved slots whose swap is in flight

	purchases storage.PurchaseStore
	cycles    storage.CycleStore
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures Ledger.
type Option func(*Ledger)

// WithStores persists purchases and the cycle start.
func WithStores(purchases storage.PurchaseStore, cycles storage.CycleStore) Option {
	return func(l *Ledger) {
		l.purchases = purchases
		l.cycles = cycles
	}
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(l *Ledger) {
		l.logger = logging.OrNop(lg)
	}
}

// WithClock sets the time source for the initial cycle start.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a ledger whose cycle starts now.
func New(maxBuys int, cycleLength time.Duration, opts ...Option) *Ledger {
	if cycleLength <= 0 {
		cycleLength = DefaultCycleLength
	}
	l := &Ledger{
		maxBuys:     maxBuys,
		cycleLength: cycleLength,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.cycleStart = truncate(l.now())
	observability.UpdateCycle(l.cycleStart, 0)
	return l
}

// truncate drops sub-millisecond precision so in-memory times match stored ones.
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Restore loads the saved cycle and its purchases. Without a saved cycle
// the current one is persisted. A no-op without stores.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.cycles == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.cycles.Current(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return l.saveCycle(ctx)
	}
	if err != nil {
		return fmt.Errorf("load cycle: %w", err)
	}

	l.cycleStart = truncate(state.CycleStart)
	l.records = nil
	if l.purchases != nil {
		recs, err := l.purchases.GetByCycle(ctx, l.cycleStart)
		if err != nil {
			return fmt.Errorf("load cycle purchases: %w", err)
		}
		for _, r := range recs {
			l.records = append(l.records, *r)
		}
	}

	l.logger.Info("ledger restored",
		zap.Time("cycle_start", l.cycleStart),
		zap.Int("buys", len(l.records)),
		zap.Int("max_buys", l.maxBuys))
	observability.UpdateCycle(l.cycleStart, len(l.records))
	return nil
}

func (l *Ledger) saveCycle(ctx context.Context) error {
	if l.cycles == nil {
		return nil
	}
	err := l.cycles.Save(ctx, &domain.CycleState{CycleStart: l.cycleStart, UpdatedAt: truncate(time.Now())})
	if err != nil {
		return fmt.Errorf("save cycle: %w", err)
	}
	return nil
}

// IsCycleDue reports whether a full cycle has elapsed at now.
func (l *Ledger) IsCycleDue(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isDue(now)
}

func (l *Ledger) isDue(now time.Time) bool {
	return now.Sub(l.cycleStart) >= l.cycleLength
}

// Rollover closes the current cycle and starts a new one at now.
// Returns the closed cycle.
func (l *Ledger) Rollover(ctx context.Context, now time.Time) domain.CycleSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rollover(ctx, now)
}

// RolloverIfDue rolls over only when the cycle is due, under one lock, so
// concurrent callers close a cycle exactly once. Returns nil when not due.
func (l *Ledger) RolloverIfDue(ctx context.Context, now time.Time) *domain.CycleSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.isDue(now) {
		return nil
	}
	closed := l.rollover(ctx, now)
	return &closed
}

func (l *Ledger) rollover(ctx context.Context, now time.Time) domain.CycleSnapshot {
	closed := l.snapshot()

	l.cycleStart = truncate(now)
	l.records = nil
	// in-flight reservations carry over and commit into the new cycle

	// the in-memory cycle has already moved on; a failed save only costs
	// the restart path an older cycle start
	if err := l.saveCycle(ctx); err != nil {
		l.logger.Error("persist rollover failed", zap.Error(err))
	}

	l.logger.Info("cycle rolled over",
		zap.Time("closed_start", closed.CycleStart),
		zap.Int("closed_buys", closed.BuysCompleted),
		zap.Time("cycle_start", l.cycleStart))
	observability.UpdateCycle(l.cycleStart, 0)
	return closed
}

// CanBuy reports whether the quota allows another purchase. Reserved
// slots count as used.
func (l *Ledger) CanBuy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.canBuy()
}

func (l *Ledger) canBuy() bool {
	return len(l.records)+l.pending < l.maxBuys
}

// RecordBuy appends a purchase. Returns ErrQuotaExhausted if the cycle is full.
func (l *Ledger) RecordBuy(ctx context.Context, rec domain.PurchaseRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.recordBuy(ctx, rec)
	return err
}

func (l *Ledger) recordBuy(ctx context.Context, rec domain.PurchaseRecord) (domain.PurchaseRecord, error) {
	if !l.canBuy() {
		return domain.PurchaseRecord{}, ErrQuotaExhausted
	}

	rec.CycleStart = l.cycleStart
	rec.Timestamp = truncate(rec.Timestamp)
	l.records = append(l.records, rec)

	if l.purchases != nil {
		// the swap already landed on chain, so the in-memory count stands
		// even when the write fails
		if err := l.purchases.Insert(ctx, &rec); err != nil {
			l.logger.Error("persist purchase failed",
				zap.String("mint", rec.Mint),
				zap.String("tx", rec.TxID),
				zap.Error(err))
		}
	}

	observability.UpdateCycle(l.cycleStart, len(l.records))
	return rec, nil
}

// Snapshot returns a copy of the current cycle.
func (l *Ledger) Snapshot() domain.CycleSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

func (l *Ledger) snapshot() domain.CycleSnapshot {
	recs := make([]domain.PurchaseRecord, len(l.records))
	copy(recs, l.records)
	return domain.CycleSnapshot{
		CycleStart:    l.cycleStart,
		BuysCompleted: len(l.records),
		MaxBuys:       l.maxBuys,
		Records:       recs,
	}
}

// Reservation holds one quota slot between Reserve and Commit or Cancel.
// The ledger lock is not held in between, so a slow swap does not block
// rollover checks or other candidates.
type Reservation struct {
	l    *Ledger
	done bool
}

// Reserve claims a slot for a purchase about to be attempted. Returns
// ErrQuotaExhausted when recorded plus reserved buys fill the cycle.
func (l *Ledger) Reserve() (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.canBuy() {
		return nil, ErrQuotaExhausted
	}
	l.pending++
	return &Reservation{l: l}, nil
}

// Commit records the purchase in the reserved slot and returns it as
// stored, with the cycle start set. A reservation commits once.
func (r *Reservation) Commit(ctx context.Context, rec domain.PurchaseRecord) (domain.PurchaseRecord, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if r.done {
		return domain.PurchaseRecord{}, errors.New("reservation already settled")
	}
	r.done = true
	r.l.pending--
	return r.l.recordBuy(ctx, rec)
}

// Cancel frees the slot. No-op after Commit.
func (r *Reservation) Cancel() {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.l.pending--
}
