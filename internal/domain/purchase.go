package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseRecord is one executed buy. Immutable once created.
type PurchaseRecord struct {
	ID            string          // deterministic hash of mint and tx
	Mint          string          // candidate identifier
	Venue         Venue           // venue the candidate came from
	Amount        decimal.Decimal // SOL spent
	TxID          string          // swap transaction signature
	Timestamp     time.Time       // execution time
	CycleStart    time.Time       // cycle the buy counts against
	EntryPriceUSD *float64        // price snapshot from validation (nullable)
}

// RejectReason explains why the executor refused a purchase.
type RejectReason string

const (
	RejectUnauthorized        RejectReason = "UNAUTHORIZED"
	RejectQuotaExhausted      RejectReason = "QUOTA_EXHAUSTED"
	RejectValidationFailed    RejectReason = "VALIDATION_FAILED"
	RejectInsufficientBalance RejectReason = "INSUFFICIENT_BALANCE"
	RejectExecutionFailed     RejectReason = "EXECUTION_FAILED"
	RejectAlreadyPurchased    RejectReason = "ALREADY_PURCHASED"
)

// String returns the string representation of RejectReason.
func (r RejectReason) String() string {
	return string(r)
}

// PurchaseError is returned by the executor for every refused purchase.
type PurchaseError struct {
	Reason RejectReason
	Err    error
}

func (e *PurchaseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("purchase rejected: %s", e.Reason)
	}
	return fmt.Sprintf("purchase rejected: %s: %v", e.Reason, e.Err)
}

func (e *PurchaseError) Unwrap() error {
	return e.Err
}
