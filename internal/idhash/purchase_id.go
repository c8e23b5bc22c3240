package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"launch-sniper/internal/domain"
)

// ComputePurchaseID computes a deterministic purchase id using SHA256.
// Formula: SHA256(mint|venue|tx_id)
// Returns hex-encoded hash (64 characters).
func ComputePurchaseID(mint string, venue domain.Venue, txID string) string {
	data := fmt.Sprintf("%s|%s|%s", mint, string(venue), txID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
