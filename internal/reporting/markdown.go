package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Cycle Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Cycle Start | %s |\n", formatTime(r.CycleStart)))
	sb.WriteString(fmt.Sprintf("| Buys | %d / %d |\n", r.BuysCompleted, r.MaxBuys))
	sb.WriteString(fmt.Sprintf("| Spent (SOL) | %s |\n", r.TotalSpent.String()))
	sb.WriteString(fmt.Sprintf("| PnL (SOL) | %s |\n", r.TotalPnL.StringFixed(4)))
	if r.Unpriced > 0 {
		sb.WriteString(fmt.Sprintf("| Price Unavailable | %d |\n", r.Unpriced))
	}
	sb.WriteString("\n")

	sb.WriteString("## Purchases\n\n")
	if len(r.Rows) == 0 {
		sb.WriteString("No purchases in this cycle.\n")
		return sb.String()
	}

	sb.WriteString("| Time | Mint | Venue | Amount | Entry USD | Current USD | Return | PnL (SOL) |\n")
	sb.WriteString("|------|------|-------|--------|-----------|-------------|--------|-----------|\n")
	for _, row := range r.Rows {
		ret := "price unavailable"
		if pct := row.ReturnPct(); pct != nil {
			ret = fmt.Sprintf("%+.2f%%", *pct)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			formatTime(row.Timestamp), row.Mint, row.Venue,
			row.Amount.String(), formatPrice(row.EntryPriceUSD), formatPrice(row.CurrentPriceUSD),
			ret, row.PnL.StringFixed(4)))
	}
	return sb.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.10g", *p)
}
