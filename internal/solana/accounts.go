package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// MintInfo is the decoded SPL token mint account.
//
// Layout:
//   - mintAuthority: COption<Pubkey> (36 bytes)
//   - supply: u64 (8 bytes)
//   - decimals: u8 (1 byte)
//   - isInitialized: bool (1 byte)
//   - freezeAuthority: COption<Pubkey> (36 bytes)
type MintInfo struct {
	Supply        uint64
	Decimals      int
	IsInitialized bool
}

const mintAccountSize = 82

// ParseMint decodes base64 mint account data.
func ParseMint(data string) (*MintInfo, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode mint data: %w", err)
	}
	if len(decoded) < mintAccountSize {
		return nil, fmt.Errorf("mint data too short: %d", len(decoded))
	}

	return &MintInfo{
		Supply:        binary.LittleEndian.Uint64(decoded[36:44]),
		Decimals:      int(decoded[44]),
		IsInitialized: decoded[45] != 0,
	}, nil
}
