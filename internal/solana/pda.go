package solana

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const pdaMarker = "ProgramDerivedAddress"

// FindProgramAddress derives a program derived address for seeds under
// programID, searching bumps from 255 down. Returns the address and bump.
func FindProgramAddress(seeds [][]byte, programID string) (string, byte, error) {
	programBytes, err := DecodePubkey(programID)
	if err != nil {
		return "", 0, fmt.Errorf("program id: %w", err)
	}

	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0, 64+len(pdaMarker))
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programBytes...)
		data = append(data, []byte(pdaMarker)...)

		hash := sha256.Sum256(data)

		// A valid PDA must be off the ed25519 curve.
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), bump, nil
		}
	}

	return "", 0, fmt.Errorf("no viable bump for program %s", programID)
}

// DecodePubkey decodes a base58 public key and checks its length.
func DecodePubkey(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode base58 %q: %w", s, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("public key %q has %d bytes, want 32", s, len(b))
	}
	return b, nil
}

// IsValidPubkey reports whether s decodes to a 32-byte public key.
func IsValidPubkey(s string) bool {
	_, err := DecodePubkey(s)
	return err == nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
