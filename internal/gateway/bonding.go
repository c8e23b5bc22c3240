package gateway

import (
	"context"
	"encoding/base64"
	"fmt"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/solana"
)

// Pump.fun bonding curve account layout: 8-byte discriminator, five u64
// reserve fields, then the complete flag.
const (
	bondingCurveSeed       = "bonding-curve"
	bondingCompleteOffset  = 8 + 5*8
	bondingCurveMinDataLen = bondingCompleteOffset + 1
)

// BondingPhase reports whether the mint is in the venue's tradable launch
// phase. Pump.fun: the bonding curve exists and is not complete. Raydium:
// the mint account exists and is initialized. Unknown venues are rejected.
func (g *Gateway) BondingPhase(ctx context.Context, mint string, venue domain.Venue) (bool, error) {
	if g.rpc == nil {
		return false, classify("rpc", ErrUnavailable)
	}

	switch venue {
	case domain.VenuePumpFun:
		return g.pumpFunBonding(ctx, mint)
	case domain.VenueRaydium:
		return g.mintInitialized(ctx, mint)
	default:
		return false, nil
	}
}

// BondingCurveAddress derives the pump.fun bonding curve PDA for mint.
func BondingCurveAddress(mint, programID string) (string, error) {
	mintKey, err := solana.DecodePubkey(mint)
	if err != nil {
		return "", err
	}
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(bondingCurveSeed), mintKey}, programID)
	return addr, err
}

func (g *Gateway) pumpFunBonding(ctx context.Context, mint string) (bool, error) {
	program := g.cfg.PumpFunProgram
	if program == "" {
		program = domain.PumpFunProgramID
	}
	curve, err := BondingCurveAddress(mint, program)
	if err != nil {
		// not a valid mint, so never tradable
		return false, nil
	}

	acc, err := g.rpc.GetAccountInfo(ctx, curve)
	if err != nil {
		return false, unavailable(fmt.Errorf("bonding curve %s: %w", curve, err))
	}
	if acc == nil {
		return false, fmt.Errorf("bonding curve %s: %w", curve, ErrNotFound)
	}

	data, err := base64.StdEncoding.DecodeString(acc.Data)
	if err != nil || len(data) < bondingCurveMinDataLen {
		return false, unavailable(fmt.Errorf("bonding curve %s: malformed account data", curve))
	}
	return data[bondingCompleteOffset] == 0, nil
}

func (g *Gateway) mintInitialized(ctx context.Context, mint string) (bool, error) {
	acc, err := g.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return false, unavailable(fmt.Errorf("mint account: %w", err))
	}
	if acc == nil {
		return false, fmt.Errorf("mint account %s: %w", mint, ErrNotFound)
	}
	info, err := solana.ParseMint(acc.Data)
	if err != nil {
		return false, unavailable(err)
	}
	return info.IsInitialized, nil
}
