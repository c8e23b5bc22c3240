package gateway

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const topHolders = 10

// HolderDistribution returns the share of supply, in percent, held by the
// ten largest token accounts (all of them if fewer than ten).
func (g *Gateway) HolderDistribution(ctx context.Context, mint string) (float64, error) {
	if g.rpc == nil {
		return 0, classify("rpc", ErrUnavailable)
	}

	accounts, err := g.rpc.GetTokenLargestAccounts(ctx, mint)
	if err != nil {
		return 0, unavailable(fmt.Errorf("largest accounts: %w", err))
	}
	supply, err := g.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return 0, unavailable(fmt.Errorf("token supply: %w", err))
	}
	if supply == nil {
		return 0, unavailable(fmt.Errorf("token supply: empty result"))
	}

	total, err := decimal.NewFromString(supply.Amount)
	if err != nil || !total.IsPositive() {
		return 0, unavailable(fmt.Errorf("token supply %q is not positive", supply.Amount))
	}

	balances := make([]decimal.Decimal, 0, len(accounts))
	for _, a := range accounts {
		amt, err := decimal.NewFromString(a.Amount)
		if err != nil {
			return 0, unavailable(fmt.Errorf("holder %s amount %q: %w", a.Address, a.Amount, err))
		}
		balances = append(balances, amt)
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].GreaterThan(balances[j])
	})
	if len(balances) > topHolders {
		balances = balances[:topHolders]
	}

	sum := decimal.Zero
	for _, b := range balances {
		sum = sum.Add(b)
	}

	pct, _ := sum.Div(total).Mul(decimal.NewFromInt(100)).Float64()
	return pct, nil
}
