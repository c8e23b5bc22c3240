package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/logging"
	"launch-sniper/internal/storage"
)

// DefaultPriceTimeout bounds each current-price lookup.
const DefaultPriceTimeout = 10 * time.Second

// PriceSource returns the current USD price of a mint.
type PriceSource interface {
	PriceUSD(ctx context.Context, mint string) (float64, error)
}

// Generator produces cycle reports.
type Generator struct {
	prices       PriceSource
	priceTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. prices may be nil, in which
// case every row is reported as unpriced.
func NewGenerator(prices PriceSource, logger *zap.Logger) *Generator {
	return &Generator{
		prices:       prices,
		priceTimeout: DefaultPriceTimeout,
		logger:       logging.OrNop(logger),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithPriceTimeout sets the per-lookup timeout.
func (g *Generator) WithPriceTimeout(d time.Duration) *Generator {
	if d > 0 {
		g.priceTimeout = d
	}
	return g
}

// Generate prices every record of snap. Price lookups that fail mark the
// row unavailable; they never fail the report.
func (g *Generator) Generate(ctx context.Context, snap domain.CycleSnapshot) *Report {
	r := &Report{
		GeneratedAt:   g.now(),
		CycleStart:    snap.CycleStart,
		MaxBuys:       snap.MaxBuys,
		BuysCompleted: snap.BuysCompleted,
		TotalSpent:    decimal.Zero,
		TotalPnL:      decimal.Zero,
	}

	prices := make(map[string]*float64)
	for _, rec := range snap.Records {
		if _, ok := prices[rec.Mint]; !ok {
			prices[rec.Mint] = g.currentPrice(ctx, rec.Mint)
		}
		row := buildRow(rec, prices[rec.Mint])
		if row.PriceUnavailable {
			r.Unpriced++
		}
		r.TotalSpent = r.TotalSpent.Add(row.Amount)
		r.TotalPnL = r.TotalPnL.Add(row.PnL)
		r.Rows = append(r.Rows, row)
	}

	sort.SliceStable(r.Rows, func(i, j int) bool {
		return r.Rows[i].Timestamp.Before(r.Rows[j].Timestamp)
	})
	return r
}

func (g *Generator) currentPrice(ctx context.Context, mint string) *float64 {
	if g.prices == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.priceTimeout)
	defer cancel()

	p, err := g.prices.PriceUSD(ctx, mint)
	if err != nil {
		g.logger.Warn("current price unavailable", zap.String("mint", mint), zap.Error(err))
		return nil
	}
	return &p
}

func buildRow(rec domain.PurchaseRecord, current *float64) RecordRow {
	row := RecordRow{
		Mint:            rec.Mint,
		Venue:           rec.Venue,
		TxID:            rec.TxID,
		Timestamp:       rec.Timestamp,
		Amount:          rec.Amount,
		EntryPriceUSD:   rec.EntryPriceUSD,
		CurrentPriceUSD: current,
		PnL:             decimal.Zero,
	}
	if rec.EntryPriceUSD == nil || *rec.EntryPriceUSD <= 0 || current == nil {
		row.PriceUnavailable = true
		return row
	}

	ratio := decimal.NewFromFloat(*current).Div(decimal.NewFromFloat(*rec.EntryPriceUSD))
	row.PnL = rec.Amount.Mul(ratio.Sub(decimal.NewFromInt(1))).Round(9)
	return row
}

// LoadSnapshot rebuilds the current cycle from storage, for reporting
// outside a running process.
func LoadSnapshot(ctx context.Context, cycles storage.CycleStore, purchases storage.PurchaseStore, maxBuys int) (domain.CycleSnapshot, error) {
	state, err := cycles.Current(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.CycleSnapshot{MaxBuys: maxBuys}, nil
		}
		return domain.CycleSnapshot{}, fmt.Errorf("load cycle: %w", err)
	}

	recs, err := purchases.GetByCycle(ctx, state.CycleStart)
	if err != nil {
		return domain.CycleSnapshot{}, fmt.Errorf("load purchases: %w", err)
	}

	snap := domain.CycleSnapshot{
		CycleStart:    state.CycleStart,
		BuysCompleted: len(recs),
		MaxBuys:       maxBuys,
		Records:       make([]domain.PurchaseRecord, 0, len(recs)),
	}
	for _, r := range recs {
		snap.Records = append(snap.Records, *r)
	}
	return snap, nil
}
