package validator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/gateway"
)

type fakeData struct {
	mu    sync.Mutex
	calls []string

	bonding    bool
	bondingErr error
	liq        *gateway.Liquidity
	liqErr     error
	top10      float64
	top10Err   error
	risk       float64
	riskErr    error
	dev        bool
	devErr     error
	social     bool
	socialErr  error
	block      bool // block until ctx is done on every call
}

func healthy() *fakeData {
	price := 0.001
	return &fakeData{
		bonding: true,
		liq:     &gateway.Liquidity{LiquidityUSD: 100000, PairAgeMinutes: 2, PriceUSD: &price},
		top10:   30,
		risk:    5,
		dev:     true,
		social:  true,
	}
}

func (f *fakeData) record(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeData) BondingPhase(ctx context.Context, _ string, _ domain.Venue) (bool, error) {
	if err := f.record(ctx, "bonding"); err != nil {
		return false, err
	}
	return f.bonding, f.bondingErr
}

func (f *fakeData) LiquiditySnapshot(ctx context.Context, _ string) (*gateway.Liquidity, error) {
	if err := f.record(ctx, "liquidity"); err != nil {
		return nil, err
	}
	return f.liq, f.liqErr
}

func (f *fakeData) HolderDistribution(ctx context.Context, _ string) (float64, error) {
	if err := f.record(ctx, "holders"); err != nil {
		return 0, err
	}
	return f.top10, f.top10Err
}

func (f *fakeData) RiskScore(ctx context.Context, _ string) (float64, error) {
	if err := f.record(ctx, "risk"); err != nil {
		return 0, err
	}
	return f.risk, f.riskErr
}

func (f *fakeData) DevHistory(ctx context.Context, _ string) (bool, error) {
	if err := f.record(ctx, "dev"); err != nil {
		return false, err
	}
	return f.dev, f.devErr
}

func (f *fakeData) SocialSignal(ctx context.Context, _ string) (bool, error) {
	if err := f.record(ctx, "social"); err != nil {
		return false, err
	}
	return f.social, f.socialErr
}

var limits = Thresholds{
	MinLiquidityUSD:    10000,
	MaxTokenAgeMinutes: 30,
	MaxTop10HoldersPct: 50,
	MaxRiskScore:       20,
}

var candidate = domain.Candidate{Mint: "mint-1", Venue: domain.VenuePumpFun}

func TestValidate_AllStagesPass(t *testing.T) {
	data := healthy()
	res := New(data, limits).Validate(context.Background(), candidate)

	require.True(t, res.Passed)
	assert.Equal(t, domain.StageNone, res.FailedStage)
	assert.False(t, res.Retryable)
	assert.Equal(t, []string{"bonding", "liquidity", "holders", "risk", "dev", "social"}, data.calls)

	require.NotNil(t, res.Facts.LiquidityUSD)
	assert.Equal(t, 100000.0, *res.Facts.LiquidityUSD)
	assert.Equal(t, 2.0, *res.Facts.AgeMinutes)
	assert.Equal(t, 30.0, *res.Facts.Top10HolderPct)
	assert.Equal(t, 5.0, *res.Facts.RiskScore)
	assert.Equal(t, 0.001, *res.Facts.PriceUSD)
}

func TestValidate_ReportsFirstFailingStage(t *testing.T) {
	data := healthy()
	data.liq.PairAgeMinutes = 90 // stage 3 fails
	data.dev = false             // stage 6 would fail too

	res := New(data, limits).Validate(context.Background(), candidate)

	assert.False(t, res.Passed)
	assert.Equal(t, domain.StageAge, res.FailedStage)
	assert.False(t, res.Retryable)
	assert.NotContains(t, data.calls, "dev")
	assert.NotContains(t, data.calls, "holders")
	assert.Nil(t, res.Facts.Top10HolderPct)
}

func TestValidate_FailClosedOnUnavailableRisk(t *testing.T) {
	data := healthy()
	data.liq = &gateway.Liquidity{LiquidityUSD: 50000, PairAgeMinutes: 5}
	data.top10 = 20
	data.riskErr = gateway.ErrUnavailable

	res := New(data, limits).Validate(context.Background(), candidate)

	assert.False(t, res.Passed)
	assert.Equal(t, domain.StageRisk, res.FailedStage)
	assert.True(t, res.Retryable)
	assert.Nil(t, res.Facts.RiskScore)
	assert.NotContains(t, data.calls, "dev")
}

func TestValidate_SingleStageFailures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*fakeData)
		stage     domain.Stage
		retryable bool
	}{
		{"not bonding", func(f *fakeData) { f.bonding = false }, domain.StageBondingPhase, false},
		{"bonding unknown", func(f *fakeData) { f.bondingErr = gateway.ErrNotFound }, domain.StageBondingPhase, true},
		{"low liquidity", func(f *fakeData) { f.liq.LiquidityUSD = 9999.99 }, domain.StageLiquidity, false},
		{"no pair", func(f *fakeData) { f.liq, f.liqErr = nil, gateway.ErrNotFound }, domain.StageLiquidity, true},
		{"concentrated", func(f *fakeData) { f.top10 = 50.01 }, domain.StageHolders, false},
		{"holders unavailable", func(f *fakeData) { f.top10Err = gateway.ErrUnavailable }, domain.StageHolders, true},
		{"risky", func(f *fakeData) { f.risk = 21 }, domain.StageRisk, false},
		{"bad dev", func(f *fakeData) { f.dev = false }, domain.StageDevHistory, false},
		{"no social", func(f *fakeData) { f.social = false }, domain.StageSocial, false},
		{"social unavailable", func(f *fakeData) { f.socialErr = gateway.ErrUnavailable }, domain.StageSocial, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := healthy()
			tt.mutate(data)

			res := New(data, limits).Validate(context.Background(), candidate)
			assert.False(t, res.Passed)
			assert.Equal(t, tt.stage, res.FailedStage)
			assert.Equal(t, tt.retryable, res.Retryable)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestValidate_BoundaryValuesPass(t *testing.T) {
	data := healthy()
	data.liq.LiquidityUSD = limits.MinLiquidityUSD
	data.liq.PairAgeMinutes = limits.MaxTokenAgeMinutes
	data.top10 = limits.MaxTop10HoldersPct
	data.risk = limits.MaxRiskScore

	res := New(data, limits).Validate(context.Background(), candidate)
	assert.True(t, res.Passed)
}

func TestValidate_UnknownVenueRejectedWithoutQueries(t *testing.T) {
	data := healthy()
	res := New(data, limits).Validate(context.Background(), domain.Candidate{Mint: "m", Venue: "orca"})

	assert.False(t, res.Passed)
	assert.Equal(t, domain.StageBondingPhase, res.FailedStage)
	assert.Empty(t, data.calls)
}

func TestValidate_TimeoutFailsClosed(t *testing.T) {
	data := healthy()
	data.block = true

	start := time.Now()
	res := New(data, limits, WithCallTimeout(20*time.Millisecond)).Validate(context.Background(), candidate)

	assert.False(t, res.Passed)
	assert.Equal(t, domain.StageBondingPhase, res.FailedStage)
	assert.True(t, res.Retryable)
	assert.Less(t, time.Since(start), 2*time.Second)
}
