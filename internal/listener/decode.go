package listener

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/solana"
)

// mintPattern matches "mint: <pubkey>" style fields printed by launch programs.
var mintPattern = regexp.MustCompile(`(?i)\bmint[\s:=]+([1-9A-HJ-NP-Za-km-z]{32,44})`)

// matchesMarker reports whether any log line contains marker, ignoring case.
func matchesMarker(logs []string, marker string) bool {
	marker = strings.ToLower(marker)
	for _, line := range logs {
		if strings.Contains(strings.ToLower(line), marker) {
			return true
		}
	}
	return false
}

// mintFromLogs extracts a mint address printed in the program logs.
func mintFromLogs(logs []string) string {
	for _, line := range logs {
		for _, m := range mintPattern.FindAllStringSubmatch(line, -1) {
			if m[1] != domain.WSOLMint && solana.IsValidPubkey(m[1]) {
				return m[1]
			}
		}
	}
	return ""
}

// mintFromTransaction returns the first non-WSOL mint in the post token
// balances of the creation transaction.
func (l *Listener) mintFromTransaction(ctx context.Context, signature string) (string, error) {
	if l.txs == nil || signature == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.LookupTimeout)
	defer cancel()

	tx, err := l.txs.GetTransaction(ctx, signature)
	if err != nil {
		return "", fmt.Errorf("get transaction %s: %w", signature, err)
	}
	if tx == nil || tx.Meta == nil {
		return "", nil
	}
	for _, b := range tx.Meta.PostTokenBalances {
		if b.Mint != "" && b.Mint != domain.WSOLMint {
			return b.Mint, nil
		}
	}
	return "", nil
}

func (l *Listener) mintFromAPI(ctx context.Context) (string, error) {
	if l.api == nil {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.LookupTimeout)
	defer cancel()
	return l.api.LatestMint(ctx)
}

// decode runs the venue's extraction chain and returns the first mint found.
func (l *Listener) decode(ctx context.Context, n solana.LogNotification) (string, domain.DecodeStrategy) {
	for _, strategy := range l.cfg.Venue.Decoders {
		var (
			mint string
			err  error
		)
		switch strategy {
		case domain.DecodeLogMint:
			mint = mintFromLogs(n.Logs)
		case domain.DecodeTxBalances:
			mint, err = l.mintFromTransaction(ctx, n.Signature)
		case domain.DecodeVenueAPI:
			mint, err = l.mintFromAPI(ctx)
		}
		if err != nil {
			l.logger.Debug("decode step failed", l.fields(n, zap.String("strategy", string(strategy)), zap.Error(err))...)
			continue
		}
		if mint != "" {
			return mint, strategy
		}
	}
	return "", ""
}
