// Package executor performs the single-flight purchase of a validated candidate.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/idhash"
	"launch-sniper/internal/ledger"
	"launch-sniper/internal/logging"
	"launch-sniper/internal/observability"
)

// DefaultCallTimeout bounds the balance query and the swap.
const DefaultCallTimeout = 30 * time.Second

// Balancer reports the paying wallet's SOL balance.
type Balancer interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
}

// Swapper spends SOL on a token and returns the transaction signature.
type Swapper interface {
	Swap(ctx context.Context, mint string, amount decimal.Decimal, slippageBps int) (string, error)
}

// Config holds the purchase parameters.
type Config struct {
	AdminIdentity  string
	BuyAmount      decimal.Decimal
	TransactionFee decimal.Decimal
	SlippageBps    int
	CallTimeout    time.Duration
}

// Executor buys validated candidates for the admin operator.
type Executor struct {
	cfg     Config
	ledger  *ledger.Ledger
	wallet  Balancer
	swapper Swapper
	logger  *zap.Logger
	now     func() time.Time

	mu sync.Mutex
	// mints bought or being bought by this process
	claimed map[string]struct{}
}

// Option configures Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logging.OrNop(l)
	}
}

// WithClock sets the time source for purchase timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// New creates an executor.
func New(cfg Config, l *ledger.Ledger, wallet Balancer, swapper Swapper, opts ...Option) *Executor {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	e := &Executor{
		cfg:     cfg,
		ledger:  l,
		wallet:  wallet,
		swapper: swapper,
		logger:  zap.NewNop(),
		now:     time.Now,
		claimed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute buys candidate on behalf of operator. Refusals are returned as
// *domain.PurchaseError and leave the ledger unchanged. Checks run in order:
// authorization, duplicate, quota, validation, balance, swap.
func (e *Executor) Execute(ctx context.Context, c domain.Candidate, v domain.ValidationResult, operator string) (*domain.PurchaseRecord, error) {
	rec, err := e.execute(ctx, c, v, operator)
	if err != nil {
		var pe *domain.PurchaseError
		if errors.As(err, &pe) {
			observability.RecordPurchase(pe.Reason.String())
		}
		e.logger.Info("purchase rejected",
			zap.String("mint", c.Mint),
			zap.Error(err))
		return nil, err
	}

	observability.RecordPurchase("bought")
	e.logger.Info("purchase recorded",
		zap.String("mint", rec.Mint),
		zap.String("venue", rec.Venue.String()),
		zap.String("amount", rec.Amount.String()),
		zap.String("tx", rec.TxID))
	return rec, nil
}

func (e *Executor) execute(ctx context.Context, c domain.Candidate, v domain.ValidationResult, operator string) (*domain.PurchaseRecord, error) {
	if operator == "" || operator != e.cfg.AdminIdentity {
		return nil, reject(domain.RejectUnauthorized, nil)
	}

	if !e.claim(c.Mint) {
		return nil, reject(domain.RejectAlreadyPurchased, nil)
	}
	bought := false
	defer func() {
		if !bought {
			e.unclaim(c.Mint)
		}
	}()

	// The slot is reserved under the ledger lock; balance and swap run
	// without it.
	res, err := e.ledger.Reserve()
	if err != nil {
		return nil, reject(domain.RejectQuotaExhausted, nil)
	}
	defer res.Cancel()

	if !v.Passed {
		return nil, reject(domain.RejectValidationFailed, fmt.Errorf("failed stage %s", v.FailedStage))
	}

	required := e.cfg.BuyAmount.Add(e.cfg.TransactionFee)
	balance, err := e.balance(ctx)
	if err != nil {
		return nil, reject(domain.RejectInsufficientBalance, err)
	}
	if balance.LessThan(required) {
		return nil, reject(domain.RejectInsufficientBalance,
			fmt.Errorf("balance %s SOL below required %s SOL", balance, required))
	}

	sig, err := e.swap(ctx, c.Mint)
	if err != nil {
		return nil, reject(domain.RejectExecutionFailed, err)
	}

	rec, err := res.Commit(ctx, domain.PurchaseRecord{
		ID:            idhash.ComputePurchaseID(c.Mint, c.Venue, sig),
		Mint:          c.Mint,
		Venue:         c.Venue,
		Amount:        e.cfg.BuyAmount,
		TxID:          sig,
		Timestamp:     e.now(),
		EntryPriceUSD: v.Facts.PriceUSD,
	})
	if err != nil {
		return nil, reject(domain.RejectQuotaExhausted, err)
	}
	bought = true
	return &rec, nil
}

// claim marks mint as taken. False when it was bought or is being bought.
func (e *Executor) claim(mint string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.claimed[mint]; dup {
		return false
	}
	e.claimed[mint] = struct{}{}
	return true
}

func (e *Executor) unclaim(mint string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.claimed, mint)
}

func (e *Executor) balance(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return e.wallet.Balance(ctx)
}

func (e *Executor) swap(ctx context.Context, mint string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	sig, err := e.swapper.Swap(ctx, mint, e.cfg.BuyAmount, e.cfg.SlippageBps)
	observability.RecordSwapLatency(time.Since(start).Seconds())
	return sig, err
}

func reject(reason domain.RejectReason, err error) *domain.PurchaseError {
	return &domain.PurchaseError{Reason: reason, Err: err}
}
