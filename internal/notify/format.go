package notify

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/gateway"
	"launch-sniper/internal/reporting"
)

const (
	dexScreenerTokenURL = "https://dexscreener.com/solana/%s"
	pumpFunCoinURL      = "https://pump.fun/coin/%s"
	solscanTxURL        = "https://solscan.io/tx/%s"
)

func formatAnnouncement(c *domain.Candidate, v *domain.ValidationResult, info *gateway.TokenInfo, dexPaid *bool) string {
	var sb strings.Builder

	title := "New token"
	if info != nil && (info.Name != "" || info.Symbol != "") {
		title = fmt.Sprintf("%s (%s)", html.EscapeString(info.Name), html.EscapeString(info.Symbol))
	}
	sb.WriteString(fmt.Sprintf("🚀 <b>%s</b> on %s\n\n", title, venueName(c.Venue)))
	sb.WriteString(fmt.Sprintf("Mint: <code>%s</code>\n", c.Mint))

	if info != nil {
		if info.PriceUSD > 0 {
			sb.WriteString(fmt.Sprintf("Price: $%s\n", formatUSDPrice(info.PriceUSD)))
		}
		if info.MarketCapUSD > 0 {
			sb.WriteString(fmt.Sprintf("Market cap: $%s\n", formatUSD(info.MarketCapUSD)))
		}
		if info.LiquidityUSD > 0 {
			sb.WriteString(fmt.Sprintf("Liquidity: $%s\n", formatUSD(info.LiquidityUSD)))
		}
		if info.Volume24hUSD > 0 {
			sb.WriteString(fmt.Sprintf("Volume 24h: $%s\n", formatUSD(info.Volume24hUSD)))
		}
		if !info.ListedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("Listed: %s\n", info.ListedAt.UTC().Format("2006-01-02 15:04 UTC")))
		}
	} else if v != nil {
		if f := v.Facts.LiquidityUSD; f != nil {
			sb.WriteString(fmt.Sprintf("Liquidity: $%s\n", formatUSD(*f)))
		}
		if f := v.Facts.PriceUSD; f != nil {
			sb.WriteString(fmt.Sprintf("Price: $%s\n", formatUSDPrice(*f)))
		}
	}

	if v != nil {
		if f := v.Facts.Top10HolderPct; f != nil {
			sb.WriteString(fmt.Sprintf("Top 10 holders: %.1f%%\n", *f))
		}
		if f := v.Facts.RiskScore; f != nil {
			sb.WriteString(fmt.Sprintf("Risk score: %.0f/100\n", *f))
		}
	}
	if dexPaid != nil {
		sb.WriteString(fmt.Sprintf("Dex paid: %s\n", yesNo(*dexPaid)))
	}

	sb.WriteString(fmt.Sprintf("\n<a href=\"%s\">DexScreener</a>", fmt.Sprintf(dexScreenerTokenURL, c.Mint)))
	if c.Venue == domain.VenuePumpFun {
		sb.WriteString(fmt.Sprintf(" | <a href=\"%s\">pump.fun</a>", fmt.Sprintf(pumpFunCoinURL, c.Mint)))
	}
	return sb.String()
}

func formatBought(r *domain.PurchaseRecord) string {
	var sb strings.Builder
	sb.WriteString("🟢 <b>Bought</b>\n\n")
	sb.WriteString(fmt.Sprintf("Mint: <code>%s</code>\n", r.Mint))
	sb.WriteString(fmt.Sprintf("Venue: %s\n", venueName(r.Venue)))
	sb.WriteString(fmt.Sprintf("Amount: %s SOL\n", r.Amount.String()))
	if r.EntryPriceUSD != nil {
		sb.WriteString(fmt.Sprintf("Entry price: $%s\n", formatUSDPrice(*r.EntryPriceUSD)))
	}
	sb.WriteString(fmt.Sprintf("Tx: <a href=\"%s\">%s</a>\n", fmt.Sprintf(solscanTxURL, r.TxID), shorten(r.TxID)))
	return sb.String()
}

func formatPurchaseRejected(ev domain.Event) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔴 <b>Purchase rejected</b>: %s\n\n", ev.Reason))
	if ev.Candidate != nil {
		sb.WriteString(fmt.Sprintf("Mint: <code>%s</code>\n", ev.Candidate.Mint))
		sb.WriteString(fmt.Sprintf("Venue: %s\n", venueName(ev.Candidate.Venue)))
	}
	if ev.Detail != "" {
		sb.WriteString(fmt.Sprintf("Detail: %s\n", html.EscapeString(ev.Detail)))
	}
	return sb.String()
}

func formatNewCycle(at time.Time, r *reporting.Report) string {
	var sb strings.Builder
	sb.WriteString("🔄 <b>New cycle started</b>\n")
	if !at.IsZero() {
		sb.WriteString(fmt.Sprintf("%s\n", at.UTC().Format("2006-01-02 15:04 UTC")))
	}
	if r == nil {
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\n<b>Previous cycle</b> (from %s)\n", r.CycleStart.UTC().Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Buys: %d / %d\n", r.BuysCompleted, r.MaxBuys))
	sb.WriteString(fmt.Sprintf("Spent: %s SOL\n", r.TotalSpent.String()))
	sb.WriteString(fmt.Sprintf("PnL: %s SOL\n", r.TotalPnL.StringFixed(4)))

	if len(r.Rows) > 0 {
		sb.WriteString("\n")
		for _, row := range r.Rows {
			ret := "price unavailable"
			if pct := row.ReturnPct(); pct != nil {
				ret = fmt.Sprintf("%+.1f%%, %s SOL", *pct, row.PnL.StringFixed(4))
			}
			sb.WriteString(fmt.Sprintf("• <code>%s</code> %s\n", shorten(row.Mint), ret))
		}
	}
	return sb.String()
}

func venueName(v domain.Venue) string {
	switch v {
	case domain.VenuePumpFun:
		return "pump.fun"
	case domain.VenueRaydium:
		return "Raydium"
	default:
		return string(v)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// shorten abbreviates long base58 strings as head...tail.
func shorten(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// formatUSD formats large amounts with K/M/B suffixes.
func formatUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// formatUSDPrice keeps four significant digits for sub-dollar prices.
func formatUSDPrice(v float64) string {
	if v >= 1 || v <= 0 {
		return fmt.Sprintf("%.4f", v)
	}
	digits := int(math.Ceil(-math.Log10(v))) + 3
	return fmt.Sprintf("%.*f", digits, v)
}
