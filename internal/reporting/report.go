// Package reporting builds the cycle report: every purchase of a cycle
// priced at the current market price, with per-record and total PnL.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"launch-sniper/internal/domain"
)

// Report is the PnL summary of one cycle.
type Report struct {
	GeneratedAt   time.Time
	CycleStart    time.Time
	MaxBuys       int
	BuysCompleted int

	Rows []RecordRow

	TotalSpent decimal.Decimal // SOL
	TotalPnL   decimal.Decimal // SOL, priced rows only
	Unpriced   int             // rows flagged price unavailable
}

// RecordRow is one purchase in the report.
type RecordRow struct {
	Mint            string
	Venue           domain.Venue
	TxID            string
	Timestamp       time.Time
	Amount          decimal.Decimal
	EntryPriceUSD   *float64
	CurrentPriceUSD *float64

	// PnL is amount * (current/entry - 1) in SOL. Zero when unpriced.
	PnL              decimal.Decimal
	PriceUnavailable bool
}

// ReturnPct returns the price change since entry in percent, or nil.
func (r RecordRow) ReturnPct() *float64 {
	if r.PriceUnavailable {
		return nil
	}
	pct := (*r.CurrentPriceUSD / *r.EntryPriceUSD - 1) * 100
	return &pct
}
