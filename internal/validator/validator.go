// Package validator runs the ordered eligibility chain over a candidate.
package validator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/gateway"
	"launch-sniper/internal/logging"
)

// DefaultCallTimeout bounds each market data query.
const DefaultCallTimeout = 8 * time.Second

// MarketData is the gateway surface the chain needs.
type MarketData interface {
	BondingPhase(ctx context.Context, mint string, venue domain.Venue) (bool, error)
	LiquiditySnapshot(ctx context.Context, mint string) (*gateway.Liquidity, error)
	HolderDistribution(ctx context.Context, mint string) (float64, error)
	RiskScore(ctx context.Context, mint string) (float64, error)
	DevHistory(ctx context.Context, mint string) (bool, error)
	SocialSignal(ctx context.Context, mint string) (bool, error)
}

// Thresholds are the configured filter limits.
type Thresholds struct {
	MinLiquidityUSD    float64
	MaxTokenAgeMinutes float64
	MaxTop10HoldersPct float64
	MaxRiskScore       float64
}

// Validator evaluates candidates. Safe for concurrent use.
type Validator struct {
	data        MarketData
	limits      Thresholds
	callTimeout time.Duration
	logger      *zap.Logger
}

// Option configures Validator.
type Option func(*Validator)

// WithCallTimeout sets the deadline applied to each market data query.
func WithCallTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.callTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		v.logger = logging.OrNop(l)
	}
}

// New creates a validator.
func New(data MarketData, limits Thresholds, opts ...Option) *Validator {
	v := &Validator{
		data:        data,
		limits:      limits,
		callTimeout: DefaultCallTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// stage is one link of the chain. It records facts into res and returns a
// failure reason, or "" to continue. A non-nil error is a data failure.
type stage struct {
	name domain.Stage
	run  func(ctx context.Context, c domain.Candidate, res *domain.ValidationResult) (string, error)
}

func (v *Validator) chain() []stage {
	return []stage{
		{domain.StageBondingPhase, v.bondingPhase},
		{domain.StageLiquidity, v.liquidity},
		{domain.StageAge, v.age},
		{domain.StageHolders, v.holders},
		{domain.StageRisk, v.risk},
		{domain.StageDevHistory, v.devHistory},
		{domain.StageSocial, v.social},
	}
}

// Validate runs the chain in order and stops at the first failing stage.
// Any market data failure fails the stage.
func (v *Validator) Validate(ctx context.Context, c domain.Candidate) domain.ValidationResult {
	var res domain.ValidationResult

	for _, s := range v.chain() {
		callCtx, cancel := context.WithTimeout(ctx, v.callTimeout)
		reason, err := s.run(callCtx, c, &res)
		cancel()

		if err != nil {
			res.FailedStage = s.name
			res.Reason = fmt.Sprintf("data unavailable: %v", err)
			res.Retryable = true
			v.logger.Debug("stage failed on data",
				zap.String("mint", c.Mint),
				zap.String("stage", s.name.String()),
				zap.Error(err))
			return res
		}
		if reason != "" {
			res.FailedStage = s.name
			res.Reason = reason
			v.logger.Debug("stage rejected",
				zap.String("mint", c.Mint),
				zap.String("stage", s.name.String()),
				zap.String("reason", reason))
			return res
		}
	}

	res.Passed = true
	return res
}

func (v *Validator) bondingPhase(ctx context.Context, c domain.Candidate, _ *domain.ValidationResult) (string, error) {
	if !c.Venue.IsValid() {
		return fmt.Sprintf("unknown venue %q", c.Venue), nil
	}
	ok, err := v.data.BondingPhase(ctx, c.Mint, c.Venue)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("not in %s launch phase", c.Venue), nil
	}
	return "", nil
}

func (v *Validator) liquidity(ctx context.Context, c domain.Candidate, res *domain.ValidationResult) (string, error) {
	snap, err := v.data.LiquiditySnapshot(ctx, c.Mint)
	if err != nil {
		return "", err
	}
	res.Facts.LiquidityUSD = ptr(snap.LiquidityUSD)
	res.Facts.AgeMinutes = ptr(snap.PairAgeMinutes)
	res.Facts.PriceUSD = snap.PriceUSD

	if snap.LiquidityUSD < v.limits.MinLiquidityUSD {
		return fmt.Sprintf("liquidity $%.2f below $%.2f", snap.LiquidityUSD, v.limits.MinLiquidityUSD), nil
	}
	return "", nil
}

// age reuses the snapshot taken by the liquidity stage.
func (v *Validator) age(_ context.Context, _ domain.Candidate, res *domain.ValidationResult) (string, error) {
	if res.Facts.AgeMinutes == nil {
		return "", gateway.ErrUnavailable
	}
	if age := *res.Facts.AgeMinutes; age > v.limits.MaxTokenAgeMinutes {
		return fmt.Sprintf("age %.1fm above %.1fm", age, v.limits.MaxTokenAgeMinutes), nil
	}
	return "", nil
}

func (v *Validator) holders(ctx context.Context, c domain.Candidate, res *domain.ValidationResult) (string, error) {
	pct, err := v.data.HolderDistribution(ctx, c.Mint)
	if err != nil {
		return "", err
	}
	res.Facts.Top10HolderPct = ptr(pct)
	if pct > v.limits.MaxTop10HoldersPct {
		return fmt.Sprintf("top 10 holders own %.2f%%, above %.2f%%", pct, v.limits.MaxTop10HoldersPct), nil
	}
	return "", nil
}

func (v *Validator) risk(ctx context.Context, c domain.Candidate, res *domain.ValidationResult) (string, error) {
	score, err := v.data.RiskScore(ctx, c.Mint)
	if err != nil {
		return "", err
	}
	res.Facts.RiskScore = ptr(score)
	if score > v.limits.MaxRiskScore {
		return fmt.Sprintf("risk score %.0f above %.0f", score, v.limits.MaxRiskScore), nil
	}
	return "", nil
}

func (v *Validator) devHistory(ctx context.Context, c domain.Candidate, _ *domain.ValidationResult) (string, error) {
	ok, err := v.data.DevHistory(ctx, c.Mint)
	if err != nil {
		return "", err
	}
	if !ok {
		return "developer history check failed", nil
	}
	return "", nil
}

func (v *Validator) social(ctx context.Context, c domain.Candidate, _ *domain.ValidationResult) (string, error) {
	ok, err := v.data.SocialSignal(ctx, c.Mint)
	if err != nil {
		return "", err
	}
	if !ok {
		return "no social signal", nil
	}
	return "", nil
}

func ptr(v float64) *float64 {
	return &v
}
