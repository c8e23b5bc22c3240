package domain

import "time"

// Candidate is a newly observed asset eligible for evaluation.
type Candidate struct {
	Mint         string    // asset address, unique
	Venue        Venue     // program that emitted the creation event
	Signature    string    // creation transaction signature
	Slot         int64     // Solana slot of the creation event
	DiscoveredAt time.Time // first observation
}
