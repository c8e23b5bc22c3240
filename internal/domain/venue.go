package domain

import (
	"fmt"
	"strings"
)

// Venue identifies the on-chain program that emitted a creation event.
type Venue string

const (
	VenuePumpFun Venue = "pumpfun"
	VenueRaydium Venue = "raydium"
)

// Known program IDs.
const (
	PumpFunProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	RaydiumAMMV4     = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	WSOLMint         = "So11111111111111111111111111111111111111112"
)

// String returns the string representation of Venue.
func (v Venue) String() string {
	return string(v)
}

// IsValid checks if the venue is a known value.
func (v Venue) IsValid() bool {
	return v == VenuePumpFun || v == VenueRaydium
}

// ParseVenue converts a config name into a Venue.
func ParseVenue(s string) (Venue, error) {
	v := Venue(strings.ToLower(strings.TrimSpace(s)))
	if !v.IsValid() {
		return "", fmt.Errorf("unknown venue %q", s)
	}
	return v, nil
}

// Commitment is the Solana confirmation level used for subscriptions.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// IsValid checks if the commitment is a known value.
func (c Commitment) IsValid() bool {
	return c == CommitmentProcessed || c == CommitmentConfirmed || c == CommitmentFinalized
}

// DecodeStrategy names one step of a venue's mint extraction chain.
type DecodeStrategy string

const (
	DecodeLogMint    DecodeStrategy = "log"         // mint printed in the program logs
	DecodeTxBalances DecodeStrategy = "transaction" // post token balances of the creation tx
	DecodeVenueAPI   DecodeStrategy = "api"         // venue HTTP API (latest launch)
)

// VenueConfig is the per-venue record looked up once at startup.
type VenueConfig struct {
	Venue          Venue
	ProgramID      string
	CreationMarker string
	Commitment     Commitment
	Decoders       []DecodeStrategy
}

// DefaultVenueConfig returns the built-in settings for a venue.
func DefaultVenueConfig(v Venue) (VenueConfig, bool) {
	switch v {
	case VenuePumpFun:
		return VenueConfig{
			Venue:          VenuePumpFun,
			ProgramID:      PumpFunProgramID,
			CreationMarker: "initialize",
			Commitment:     CommitmentConfirmed,
			Decoders:       []DecodeStrategy{DecodeLogMint, DecodeTxBalances, DecodeVenueAPI},
		}, true
	case VenueRaydium:
		return VenueConfig{
			Venue:          VenueRaydium,
			ProgramID:      RaydiumAMMV4,
			CreationMarker: "initialize2",
			Commitment:     CommitmentConfirmed,
			Decoders:       []DecodeStrategy{DecodeLogMint, DecodeTxBalances},
		}, true
	default:
		return VenueConfig{}, false
	}
}
