package gateway

import (
	"context"
	"strconv"
	"time"
)

// Liquidity is the DexScreener view of the best pair for a mint.
type Liquidity struct {
	LiquidityUSD   float64
	PairAgeMinutes float64
	PriceUSD       *float64 // nil when the pair reports no USD price
}

type dexTokensResponse struct {
	Pairs []*dexPair `json:"pairs"`
}

type dexPair struct {
	ChainID       string    `json:"chainId"`
	DexID         string    `json:"dexId"`
	PairAddress   string    `json:"pairAddress"`
	BaseToken     dexToken  `json:"baseToken"`
	PriceUSD      string    `json:"priceUsd"`
	Liquidity     *dexLiq   `json:"liquidity"`
	Volume        dexVolume `json:"volume"`
	FDV           float64   `json:"fdv"`
	MarketCap     float64   `json:"marketCap"`
	PairCreatedAt int64     `json:"pairCreatedAt"` // unix ms
	Info          *dexInfo  `json:"info"`
}

type dexToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type dexLiq struct {
	USD float64 `json:"usd"`
}

type dexVolume struct {
	H24 float64 `json:"h24"`
}

type dexInfo struct {
	ImageURL string `json:"imageUrl"`
	Websites []struct {
		URL string `json:"url"`
	} `json:"websites"`
	Socials []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"socials"`
}

func (p *dexPair) priceUSD() *float64 {
	if p.PriceUSD == "" {
		return nil
	}
	v, err := strconv.ParseFloat(p.PriceUSD, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (p *dexPair) liquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

// bestPair fetches the Solana pair with the deepest liquidity for mint.
func (g *Gateway) bestPair(ctx context.Context, mint string) (*dexPair, error) {
	return g.pairs.fetch(ctx, mint, func(ctx context.Context) (*dexPair, error) {
		var resp dexTokensResponse
		if err := g.dex.GetJSON(ctx, joinURL(g.cfg.DexScreenerURL, "latest", "dex", "tokens", mint), &resp); err != nil {
			return nil, classify("dexscreener", err)
		}

		var best *dexPair
		for _, p := range resp.Pairs {
			if p == nil || (p.ChainID != "" && p.ChainID != "solana") {
				continue
			}
			if best == nil || p.liquidityUSD() > best.liquidityUSD() {
				best = p
			}
		}
		if best == nil {
			return nil, classify("dexscreener", ErrNotFound)
		}
		return best, nil
	})
}

// LiquiditySnapshot returns liquidity, pair age and price of the best pair.
// Returns ErrNotFound when no pair is listed.
func (g *Gateway) LiquiditySnapshot(ctx context.Context, mint string) (*Liquidity, error) {
	pair, err := g.bestPair(ctx, mint)
	if err != nil {
		return nil, err
	}
	if pair.Liquidity == nil || pair.PairCreatedAt <= 0 {
		return nil, classify("dexscreener", ErrUnavailable)
	}

	created := time.UnixMilli(pair.PairCreatedAt)
	age := g.now().Sub(created).Minutes()
	if age < 0 {
		age = 0
	}

	return &Liquidity{
		LiquidityUSD:   pair.liquidityUSD(),
		PairAgeMinutes: age,
		PriceUSD:       pair.priceUSD(),
	}, nil
}

// PriceUSD returns the current USD price of mint.
func (g *Gateway) PriceUSD(ctx context.Context, mint string) (float64, error) {
	pair, err := g.bestPair(ctx, mint)
	if err != nil {
		return 0, err
	}
	p := pair.priceUSD()
	if p == nil {
		return 0, classify("dexscreener", ErrUnavailable)
	}
	return *p, nil
}

// SocialSignal reports whether the token has a social presence. With
// RequireSocial unset the check always passes.
func (g *Gateway) SocialSignal(ctx context.Context, mint string) (bool, error) {
	if !g.cfg.RequireSocial {
		return true, nil
	}
	pair, err := g.bestPair(ctx, mint)
	if err != nil {
		return false, err
	}
	if pair.Info == nil {
		return false, nil
	}
	for _, s := range pair.Info.Socials {
		if s.URL != "" {
			return true, nil
		}
	}
	for _, w := range pair.Info.Websites {
		if w.URL != "" {
			return true, nil
		}
	}
	return false, nil
}
