package gateway

import (
	"context"
	"fmt"
	"math"
)

// rugReport is the subset of the RugCheck token report we read.
type rugReport struct {
	ScoreNormalised *float64 `json:"score_normalised"`
	RiskScore       *float64 `json:"risk_score"`
	Rugged          bool     `json:"rugged"`
	Creator         string   `json:"creator"`
	CreatorTokens   []struct {
		Mint string `json:"mint"`
	} `json:"creatorTokens"`
}

func (g *Gateway) report(ctx context.Context, mint string) (*rugReport, error) {
	return g.reports.fetch(ctx, mint, func(ctx context.Context) (*rugReport, error) {
		var r rugReport
		if err := g.rug.GetJSON(ctx, joinURL(g.cfg.RugCheckURL, "tokens", mint, "report"), &r); err != nil {
			return nil, classify("rugcheck", err)
		}
		return &r, nil
	})
}

// RiskScore returns the normalised risk score in [0,100]. A report without
// a score is treated as maximum risk.
func (g *Gateway) RiskScore(ctx context.Context, mint string) (float64, error) {
	r, err := g.report(ctx, mint)
	if err != nil {
		return 0, unavailable(err)
	}

	score := 100.0
	switch {
	case r.ScoreNormalised != nil:
		score = *r.ScoreNormalised
	case r.RiskScore != nil:
		score = *r.RiskScore
	}
	return math.Max(0, math.Min(100, score)), nil
}

// DevHistory reports whether the token creator looks acceptable: the token
// is not flagged rugged and the creator has not launched more than
// MaxDevPriorTokens other tokens.
func (g *Gateway) DevHistory(ctx context.Context, mint string) (bool, error) {
	r, err := g.report(ctx, mint)
	if err != nil {
		return false, unavailable(err)
	}
	if r.Rugged {
		return false, nil
	}
	if g.cfg.MaxDevPriorTokens > 0 {
		prior := 0
		for _, t := range r.CreatorTokens {
			if t.Mint != mint {
				prior++
			}
		}
		if prior > g.cfg.MaxDevPriorTokens {
			return false, nil
		}
	}
	return true, nil
}

// unavailable downgrades ErrNotFound: a missing report is not a safe report.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
