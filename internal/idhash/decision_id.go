package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"launch-sniper/internal/domain"
)

// ComputeDecisionID computes a deterministic decision id using SHA256.
// Formula: SHA256(mint|venue|evaluated_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputeDecisionID(mint string, venue domain.Venue, evaluatedAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", mint, string(venue), evaluatedAtMs)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
