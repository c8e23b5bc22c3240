package domain

import "time"

// Decision is a persisted validation outcome.
// Corresponds to the decisions table in ClickHouse.
type Decision struct {
	DecisionID  string // deterministic hash
	Mint        string
	Venue       Venue
	Passed      bool
	FailedStage Stage
	Reason      string
	Retryable   bool
	Facts       Facts
	EvaluatedAt time.Time
}

// NewDecision builds a Decision from a validation result.
func NewDecision(id string, c Candidate, r ValidationResult, at time.Time) *Decision {
	return &Decision{
		DecisionID:  id,
		Mint:        c.Mint,
		Venue:       c.Venue,
		Passed:      r.Passed,
		FailedStage: r.FailedStage,
		Reason:      r.Reason,
		Retryable:   r.Retryable,
		Facts:       r.Facts,
		EvaluatedAt: at,
	}
}
