package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"impulsebot/config"
	"impulsebot/internal/application/engine"
	"impulsebot/internal/domain"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		StartBalance: 1000, PointValue: 1, MinLot: 0.01,
		BaseTPPoints: 20, BaseSLPoints: 10,
		TrailStart: 10, TrailDistance: 6, PartialFraction: 0.5,
		MinRisk: 0.005, MaxRisk: 0.02, RiskStep: 0.0025,
		MaxDailyLoss: 0.05, MaxDrawdown: 0.10,
		AdaptiveWindow: 30, AdaptiveMinSample: 10, LossStreakCut: 3,
		BlockCooldownHours: 6, BlockLossStreak: 3,
		DisableDDThreshold: 0.20, StrategyCooldownHours: 24,
		MinTradesForOpt: 10, MinWinrate: 0.5,
	}
}

// closedWithPnL builds a window of closed trades, newest first.
func closedWithPnL(pnls ...float64) []domain.Trade {
	out := make([]domain.Trade, len(pnls))
	for i, p := range pnls {
		out[i] = domain.Trade{ID: "t", Status: domain.TradeClosed, PnL: p}
	}
	return out
}

func repeat(pnl float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = pnl
	}
	return out
}

func TestGovernor_PositionSize(t *testing.T) {
	g := engine.NewGovernor(testEngineConfig())

	assert.Equal(t, 0.5, g.PositionSize(1000, 10, 0.005))
	assert.Equal(t, 2.0, g.PositionSize(1000, 10, 0.02))

	// Below the minimum lot the floor applies.
	assert.Equal(t, 0.01, g.PositionSize(100, 10, 0.0001))

	// Degenerate stop distance never divides by zero.
	assert.Equal(t, 0.01, g.PositionSize(1000, 0, 0.01))
}

func TestGovernor_AdaptiveRisk_SmallSample(t *testing.T) {
	g := engine.NewGovernor(testEngineConfig())

	recent := closedWithPnL(repeat(10, 5)...)
	assert.Equal(t, 0.005, g.AdaptiveRisk(recent, 0.015))
}

func TestGovernor_AdaptiveRisk_WinningWindow(t *testing.T) {
	g := engine.NewGovernor(testEngineConfig())

	recent := closedWithPnL(repeat(10, 12)...)
	assert.InDelta(t, 0.015, g.AdaptiveRisk(recent, 0.01), 1e-9)

	// Already at the cap: clamped.
	assert.InDelta(t, 0.02, g.AdaptiveRisk(recent, 0.02), 1e-9)
}

func TestGovernor_AdaptiveRisk_LosingStreakCuts(t *testing.T) {
	g := engine.NewGovernor(testEngineConfig())

	// Newest three are losses, the rest winners.
	pnls := append([]float64{-5, -5, -5}, repeat(10, 9)...)
	recent := closedWithPnL(pnls...)
	assert.InDelta(t, 0.0075, g.AdaptiveRisk(recent, 0.01), 1e-9)

	// Never below the floor.
	assert.InDelta(t, 0.005, g.AdaptiveRisk(recent, 0.005), 1e-9)
}

func TestGovernor_AdaptiveRisk_WindowDrawdownCuts(t *testing.T) {
	g := engine.NewGovernor(testEngineConfig())

	// Newest trades are winners (no streak), but the window's replayed
	// equity curve has a deep drawdown from the older losses.
	pnls := append([]float64{5, 5, 5}, repeat(-40, 7)...)
	recent := closedWithPnL(pnls...)
	assert.InDelta(t, 0.0075, g.AdaptiveRisk(recent, 0.01), 1e-9)
}

func TestGovernor_DailyLossCheck(t *testing.T) {
	g := engine.NewGovernor(testEngineConfig())
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	st := domain.EngineState{
		Status:    domain.EnginePaper,
		DailyDate: "2026-03-02",
		DailyPnL:  -60,
	}

	// -60 on a 950 balance breaches the 5% daily limit.
	g.DailyLossCheck(&st, 950, now)
	assert.Equal(t, domain.EngineDailyLock, st.Status)

	// Same day: stays locked.
	g.DailyLossCheck(&st, 950, now.Add(time.Hour))
	assert.Equal(t, domain.EngineDailyLock, st.Status)

	// Next UTC day: window rolls over, lock clears, pnl resets.
	g.DailyLossCheck(&st, 950, now.Add(24*time.Hour))
	assert.Equal(t, domain.EnginePaper, st.Status)
	assert.Equal(t, 0.0, st.DailyPnL)
	assert.Equal(t, "2026-03-03", st.DailyDate)
}

func TestGovernor_DrawdownCheck_Hysteresis(t *testing.T) {
	g := engine.NewGovernor(testEngineConfig())

	st := domain.EngineState{Status: domain.EnginePaper, PeakBalance: 1000}

	// 10% from peak locks.
	g.DrawdownCheck(&st, 900)
	assert.Equal(t, domain.EngineDDLock, st.Status)

	// Partial recovery above half the limit keeps the lock.
	g.DrawdownCheck(&st, 930)
	assert.Equal(t, domain.EngineDDLock, st.Status)

	// Below half the limit the lock releases.
	g.DrawdownCheck(&st, 960)
	assert.Equal(t, domain.EnginePaper, st.Status)
}
