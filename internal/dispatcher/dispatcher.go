// Package dispatcher drives each candidate through validation, the purchase
// decision and notification.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/idhash"
	"launch-sniper/internal/ledger"
	"launch-sniper/internal/logging"
	"launch-sniper/internal/notify"
	"launch-sniper/internal/observability"
	"launch-sniper/internal/storage"
)

// Default configuration values.
const (
	DefaultWorkers       = 4
	DefaultNotifyTimeout = 20 * time.Second
)

// Validator evaluates a candidate.
type Validator interface {
	Validate(ctx context.Context, c domain.Candidate) domain.ValidationResult
}

// Executor buys a validated candidate.
type Executor interface {
	Execute(ctx context.Context, c domain.Candidate, v domain.ValidationResult, operator string) (*domain.PurchaseRecord, error)
}

// Releaser makes a mint eligible for evaluation again.
type Releaser interface {
	Release(ctx context.Context, mint string)
}

// Outcome is the terminal state of one candidate.
type Outcome string

const (
	OutcomeRejected         Outcome = "rejected"          // failed validation
	OutcomeAnnounced        Outcome = "announced"         // validated, no purchase attempted
	OutcomeQuotaExhausted   Outcome = "quota_exhausted"   // validated, cycle quota reached
	OutcomeBought           Outcome = "bought"            // purchase recorded
	OutcomePurchaseRejected Outcome = "purchase_rejected" // executor refused or swap failed
)

// Config holds dispatcher settings.
type Config struct {
	Workers       int
	AdminIdentity string
	NotifyTimeout time.Duration
}

// Dispatcher consumes candidates from all listeners.
type Dispatcher struct {
	cfg       Config
	validator Validator
	ledger    *ledger.Ledger
	sink      notify.Sink
	executor  Executor
	decisions storage.DecisionStore
	seen      Releaser
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures Dispatcher.
type Option func(*Dispatcher)

// WithExecutor enables purchases. Without it validated candidates are
// only announced.
func WithExecutor(e Executor) Option {
	return func(d *Dispatcher) {
		d.executor = e
	}
}

// WithDecisions appends every validation result to store.
func WithDecisions(store storage.DecisionStore) Option {
	return func(d *Dispatcher) {
		d.decisions = store
	}
}

// WithReleaser releases candidates rejected on unavailable data.
func WithReleaser(r Releaser) Option {
	return func(d *Dispatcher) {
		d.seen = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logging.OrNop(l)
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// New creates a dispatcher.
func New(cfg Config, v Validator, l *ledger.Ledger, sink notify.Sink, opts ...Option) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	d := &Dispatcher{
		cfg:       cfg,
		validator: v,
		ledger:    l,
		sink:      sink,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes candidates with a fixed worker pool until ctx is cancelled
// or in is closed.
func (d *Dispatcher) Run(ctx context.Context, in <-chan domain.Candidate) {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case c, ok := <-in:
					if !ok {
						return
					}
					observability.UpdateQueueDepth(len(in))
					d.Handle(ctx, c)
				}
			}
		}()
	}
	wg.Wait()
}

// Handle runs one candidate through the pipeline and returns its outcome.
func (d *Dispatcher) Handle(ctx context.Context, c domain.Candidate) Outcome {
	log := d.logger.With(zap.String("mint", c.Mint), zap.String("venue", c.Venue.String()))

	if closed := d.ledger.RolloverIfDue(ctx, d.now()); closed != nil {
		log.Info("cycle rolled over", zap.Int("closed_buys", closed.BuysCompleted))
		d.emit(ctx, domain.Event{Kind: domain.EventNewCycle, At: d.now(), ClosedCycle: closed})
	}

	v := d.validator.Validate(ctx, c)
	observability.RecordValidation(v.FailedStage.String(), v.Retryable)
	d.recordDecision(ctx, c, v)

	if !v.Passed {
		log.Debug("candidate rejected",
			zap.String("stage", v.FailedStage.String()),
			zap.String("reason", v.Reason),
			zap.Bool("retryable", v.Retryable))
		d.emit(ctx, domain.Event{Kind: domain.EventRejected, At: d.now(), Candidate: &c, Validation: &v})
		if v.Retryable && d.seen != nil {
			d.seen.Release(ctx, c.Mint)
		}
		return OutcomeRejected
	}

	outcome := d.purchase(ctx, c, v)

	d.emit(ctx, domain.Event{Kind: domain.EventAnnounced, At: d.now(), Candidate: &c, Validation: &v})
	return outcome
}

func (d *Dispatcher) purchase(ctx context.Context, c domain.Candidate, v domain.ValidationResult) Outcome {
	if d.executor == nil {
		return OutcomeAnnounced
	}

	if !d.ledger.CanBuy() {
		observability.RecordPurchase(domain.RejectQuotaExhausted.String())
		d.emit(ctx, domain.Event{
			Kind:      domain.EventPurchaseRejected,
			At:        d.now(),
			Candidate: &c,
			Reason:    domain.RejectQuotaExhausted,
		})
		return OutcomeQuotaExhausted
	}

	rec, err := d.executor.Execute(ctx, c, v, d.cfg.AdminIdentity)
	if err != nil {
		reason := domain.RejectExecutionFailed
		var pe *domain.PurchaseError
		if errors.As(err, &pe) {
			reason = pe.Reason
		}
		d.emit(ctx, domain.Event{
			Kind:      domain.EventPurchaseRejected,
			At:        d.now(),
			Candidate: &c,
			Reason:    reason,
			Detail:    err.Error(),
		})
		if reason == domain.RejectQuotaExhausted {
			return OutcomeQuotaExhausted
		}
		return OutcomePurchaseRejected
	}

	d.emit(ctx, domain.Event{Kind: domain.EventBought, At: d.now(), Candidate: &c, Validation: &v, Record: rec})
	return OutcomeBought
}

func (d *Dispatcher) recordDecision(ctx context.Context, c domain.Candidate, v domain.ValidationResult) {
	if d.decisions == nil {
		return
	}
	at := d.now()
	id := idhash.ComputeDecisionID(c.Mint, c.Venue, at.UnixMilli())
	err := d.decisions.Insert(ctx, domain.NewDecision(id, c, v, at))
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		d.logger.Warn("store decision failed", zap.String("mint", c.Mint), zap.Error(err))
	}
}

// emit delivers ev to the sink. Delivery failures never affect the pipeline.
func (d *Dispatcher) emit(ctx context.Context, ev domain.Event) {
	if d.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.NotifyTimeout)
	defer cancel()

	if err := d.sink.Notify(ctx, ev); err != nil {
		d.logger.Warn("notification failed", zap.String("event", string(ev.Kind)), zap.Error(err))
	}
}
