package domain

import "time"

// StrategyStatus is the state of a (symbol, strategy) pair.
type StrategyStatus string

const (
	StrategyActive   StrategyStatus = "ACTIVE"
	StrategyTesting  StrategyStatus = "TESTING"
	StrategyDegraded StrategyStatus = "DEGRADED"
	StrategyDisabled StrategyStatus = "DISABLED"
)

// StrategyState is the canonical per-(symbol, strategy) record. Created at
// registration with neutral multipliers, mutated only by the evaluator.
type StrategyState struct {
	Symbol        string
	Strategy      string
	Status        StrategyStatus
	Weight        float64 // risk multiplier, clamped to [0, 1]
	TPMult        float64
	SLMult        float64
	DisabledUntil *time.Time
	LastReason    string
	UpdatedAt     time.Time
}

// NewStrategyState registers a fresh pair with neutral settings.
func NewStrategyState(symbol, strategy string, now time.Time) StrategyState {
	return StrategyState{
		Symbol:    symbol,
		Strategy:  strategy,
		Status:    StrategyActive,
		Weight:    1.0,
		TPMult:    1.0,
		SLMult:    1.0,
		UpdatedAt: now,
	}
}

// PerfStats are rolling performance metrics for a (symbol, strategy) pair
// over its closed trades.
type PerfStats struct {
	Trades     int
	Wins       int
	WinRate    float64
	Expectancy float64 // mean pnl per trade
	MaxDD      float64 // max drawdown of the replayed equity curve, relative
	ActiveDays int     // distinct UTC days with at least one close
}
