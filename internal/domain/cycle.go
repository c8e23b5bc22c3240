package domain

import "time"

// CycleState is the persisted part of the cycle ledger.
type CycleState struct {
	CycleStart time.Time
	UpdatedAt  time.Time
}

// CycleSnapshot is a read-only copy of the ledger at a point in time.
type CycleSnapshot struct {
	CycleStart    time.Time
	BuysCompleted int
	MaxBuys       int
	Records       []PurchaseRecord
}
