package gateway

import (
	"context"
	"time"
)

// TokenInfo is the presentation data used in announcements.
type TokenInfo struct {
	Mint         string
	Name         string
	Symbol       string
	PriceUSD     float64
	MarketCapUSD float64
	Volume24hUSD float64
	LiquidityUSD float64
	ListedAt     time.Time
	ImageURL     string
	Source       string
}

type pumpLatest struct {
	MintAddress string `json:"mint_address"`
	Mint        string `json:"mint"`
}

type pumpToken struct {
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
	Volume    float64 `json:"volume"`
	Liquidity float64 `json:"liquidity"`
	ImageURL  string  `json:"image_url"`
	CreatedAt int64   `json:"created_timestamp"` // unix ms
}

type pumpStatus struct {
	DexPaid bool `json:"dex_paid"`
}

// LatestMint asks the pump.fun API for the most recently created mint.
func (g *Gateway) LatestMint(ctx context.Context) (string, error) {
	var resp pumpLatest
	if err := g.pumpfun.GetJSON(ctx, joinURL(g.cfg.PumpFunAPIURL, "tokens", "latest"), &resp); err != nil {
		return "", classify("pumpfun", err)
	}
	mint := resp.MintAddress
	if mint == "" {
		mint = resp.Mint
	}
	if mint == "" {
		return "", classify("pumpfun", ErrNotFound)
	}
	return mint, nil
}

// TokenInfo returns announcement data from DexScreener, falling back to the
// pump.fun API when no pair is listed yet.
func (g *Gateway) TokenInfo(ctx context.Context, mint string) (*TokenInfo, error) {
	pair, err := g.bestPair(ctx, mint)
	if err == nil {
		info := &TokenInfo{
			Mint:         mint,
			Name:         pair.BaseToken.Name,
			Symbol:       pair.BaseToken.Symbol,
			MarketCapUSD: pair.MarketCap,
			Volume24hUSD: pair.Volume.H24,
			LiquidityUSD: pair.liquidityUSD(),
			Source:       "dexscreener",
		}
		if p := pair.priceUSD(); p != nil {
			info.PriceUSD = *p
		}
		if info.MarketCapUSD == 0 {
			info.MarketCapUSD = pair.FDV
		}
		if pair.PairCreatedAt > 0 {
			info.ListedAt = time.UnixMilli(pair.PairCreatedAt).UTC()
		}
		if pair.Info != nil {
			info.ImageURL = pair.Info.ImageURL
		}
		return info, nil
	}

	g.logger.Debug("dexscreener token info failed, trying pump.fun")

	var tok pumpToken
	if perr := g.pumpfun.GetJSON(ctx, joinURL(g.cfg.PumpFunAPIURL, "tokens", mint), &tok); perr != nil {
		return nil, classify("pumpfun", perr)
	}
	info := &TokenInfo{
		Mint:         mint,
		Name:         tok.Name,
		Symbol:       tok.Symbol,
		PriceUSD:     tok.Price,
		MarketCapUSD: tok.MarketCap,
		Volume24hUSD: tok.Volume,
		LiquidityUSD: tok.Liquidity,
		ImageURL:     tok.ImageURL,
		Source:       "pumpfun",
	}
	if tok.CreatedAt > 0 {
		info.ListedAt = time.UnixMilli(tok.CreatedAt).UTC()
	}
	return info, nil
}

// DexPaid reports whether the token paid for its DexScreener listing.
func (g *Gateway) DexPaid(ctx context.Context, mint string) (bool, error) {
	var st pumpStatus
	if err := g.pumpfun.GetJSON(ctx, joinURL(g.cfg.PumpFunAPIURL, "tokens", mint, "status"), &st); err != nil {
		return false, classify("pumpfun", err)
	}
	return st.DexPaid, nil
}
