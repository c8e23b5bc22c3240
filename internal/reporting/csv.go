package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders report rows as CSV string.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("timestamp,mint,venue,tx_id,amount_sol,entry_price_usd,current_price_usd,pnl_sol,price_unavailable\n")

	for _, row := range r.Rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%t\n",
			row.Timestamp.UTC().Format(time.RFC3339),
			row.Mint,
			row.Venue,
			row.TxID,
			row.Amount.String(),
			csvPrice(row.EntryPriceUSD),
			csvPrice(row.CurrentPriceUSD),
			row.PnL.StringFixed(9),
			row.PriceUnavailable,
		))
	}

	return sb.String()
}

func csvPrice(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%g", *p)
}
