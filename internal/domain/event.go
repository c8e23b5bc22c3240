package domain

import "time"

// EventKind is the type of a notification event.
type EventKind string

const (
	EventNewCycle         EventKind = "NEW_CYCLE"
	EventRejected         EventKind = "REJECTED"
	EventAnnounced        EventKind = "ANNOUNCED"
	EventBought           EventKind = "BOUGHT"
	EventPurchaseRejected EventKind = "PURCHASE_REJECTED"
)

// Event is the structured message handed to notification sinks.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind       EventKind
	At         time.Time
	Candidate  *Candidate
	Validation *ValidationResult
	Record     *PurchaseRecord
	Reason     RejectReason
	Detail     string

	// NewCycle only: the cycle that just closed.
	ClosedCycle *CycleSnapshot
}
