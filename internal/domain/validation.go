package domain

// Stage is one step of the validation chain.
type Stage string

const (
	StageNone         Stage = ""
	StageBondingPhase Stage = "bonding_phase"
	StageLiquidity    Stage = "liquidity"
	StageAge          Stage = "age"
	StageHolders      Stage = "holder_distribution"
	StageRisk         Stage = "risk_score"
	StageDevHistory   Stage = "dev_history"
	StageSocial       Stage = "social_signal"
)

// Stages lists the validation chain in evaluation order.
var Stages = []Stage{
	StageBondingPhase,
	StageLiquidity,
	StageAge,
	StageHolders,
	StageRisk,
	StageDevHistory,
	StageSocial,
}

// String returns the string representation of Stage.
func (s Stage) String() string {
	if s == StageNone {
		return "none"
	}
	return string(s)
}

// Facts is the market snapshot captured while validating.
// Pointers are nil when the stage producing them did not run.
type Facts struct {
	LiquidityUSD   *float64
	AgeMinutes     *float64
	Top10HolderPct *float64
	RiskScore      *float64
	PriceUSD       *float64
}

// ValidationResult is the outcome of running the chain on a candidate.
type ValidationResult struct {
	Passed      bool
	FailedStage Stage
	Reason      string // diagnostic for the failing stage
	Retryable   bool   // failed on unavailable data, not on a determined value
	Facts       Facts
}
