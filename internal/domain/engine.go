package domain

import "time"

// EngineStatus is the process-wide trading state.
type EngineStatus string

const (
	EngineLearning  EngineStatus = "LEARNING"
	EngineActive    EngineStatus = "ACTIVE"
	EnginePaper     EngineStatus = "PAPER"
	EngineLive      EngineStatus = "LIVE"
	EnginePaused    EngineStatus = "PAUSED"
	EngineDailyLock EngineStatus = "DAILY_LOCK"
	EngineDDLock    EngineStatus = "DD_LOCK"
	EngineLocked    EngineStatus = "LOCKED"
)

// Locked reports whether new trades are suppressed. Open trades keep
// being managed even while locked.
func (s EngineStatus) Locked() bool {
	switch s {
	case EnginePaused, EngineDailyLock, EngineDDLock, EngineLocked:
		return true
	}
	return false
}

// EngineState is the singleton account-level record. It is created once
// with defaults on first run and mutated for the lifetime of the engine.
type EngineState struct {
	Status       EngineStatus
	PeakBalance  float64
	DailyDate    string // UTC calendar day of the current accounting window, "2006-01-02"
	DailyPnL     float64
	AdaptiveRisk float64
}

// BalanceSample is one point of the append-only balance ledger.
type BalanceSample struct {
	Timestamp time.Time
	Balance   float64
}

// Drawdown returns the relative decline of balance from peak, 0 when
// peak is not yet meaningful.
func Drawdown(peak, balance float64) float64 {
	if peak <= 0 {
		return 0
	}
	dd := (peak - balance) / peak
	if dd < 0 {
		return 0
	}
	return dd
}

// UTCDay formats t as the engine's daily accounting key.
func UTCDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
