package engine

import (
	"math"
	"time"

	"impulsebot/config"
	"impulsebot/internal/domain"
)

// Governor computes position sizes and the adaptive risk fraction, and
// evaluates the account-level circuit breakers. It mutates only the
// EngineState passed to it — all the account state it governs is handed
// in explicitly.
type Governor struct {
	cfg config.EngineConfig
}

// NewGovernor builds a governor from the engine config.
func NewGovernor(cfg config.EngineConfig) *Governor {
	return &Governor{cfg: cfg}
}

// PositionSize returns the lot for the given stop distance and risk
// fraction, rounded to 2 decimals. Never returns less than the minimum lot.
func (g *Governor) PositionSize(balance, stopDistancePoints, riskFraction float64) float64 {
	if stopDistancePoints <= 0 {
		return g.cfg.MinLot
	}
	lot := balance * riskFraction / (stopDistancePoints * g.cfg.PointValue)
	lot = math.Round(lot*100) / 100
	if lot < g.cfg.MinLot {
		lot = g.cfg.MinLot
	}
	return lot
}

// AdaptiveRisk inspects the most recent closed trades (newest first) and
// returns the risk fraction to use. Below the minimum sample it returns
// the configured minimum. The result is clamped to [MinRisk, MaxRisk].
func (g *Governor) AdaptiveRisk(recent []domain.Trade, current float64) float64 {
	if len(recent) > g.cfg.AdaptiveWindow {
		recent = recent[:g.cfg.AdaptiveWindow]
	}
	if len(recent) < g.cfg.AdaptiveMinSample {
		return g.cfg.MinRisk
	}
	if current <= 0 {
		current = g.cfg.MinRisk
	}

	wins := 0
	var sum float64
	for _, t := range recent {
		if t.PnL > 0 {
			wins++
		}
		sum += t.PnL
	}
	winRate := float64(wins) / float64(len(recent))
	expectancy := sum / float64(len(recent))

	risk := current
	switch {
	case g.losingStreak(recent) || g.windowDrawdown(recent) >= g.cfg.MaxDrawdown:
		risk -= g.cfg.RiskStep
	case winRate > 0.7 && expectancy > 0:
		risk += 2 * g.cfg.RiskStep
	case winRate > 0.6 && expectancy > 0:
		risk += g.cfg.RiskStep
	}

	return clamp(risk, g.cfg.MinRisk, g.cfg.MaxRisk)
}

// losingStreak reports whether the last LossStreakCut trades were all
// non-positive. recent is newest first.
func (g *Governor) losingStreak(recent []domain.Trade) bool {
	if len(recent) < g.cfg.LossStreakCut {
		return false
	}
	for _, t := range recent[:g.cfg.LossStreakCut] {
		if t.PnL > 0 {
			return false
		}
	}
	return true
}

// windowDrawdown replays the window's pnls (oldest first) and returns the
// relative drawdown of that equity curve.
func (g *Governor) windowDrawdown(recent []domain.Trade) float64 {
	equity := g.cfg.StartBalance
	peak := equity
	var maxDD float64
	for i := len(recent) - 1; i >= 0; i-- {
		equity += recent[i].PnL
		if equity > peak {
			peak = equity
		}
		if dd := domain.Drawdown(peak, equity); dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// DailyLossCheck rolls the daily accounting window over on a new UTC day
// (resetting daily pnl and clearing a DAILY_LOCK) and locks the engine
// when the day's realized loss breaches the limit.
func (g *Governor) DailyLossCheck(st *domain.EngineState, balance float64, now time.Time) {
	today := domain.UTCDay(now)
	if st.DailyDate != today {
		st.DailyDate = today
		st.DailyPnL = 0
		if st.Status == domain.EngineDailyLock {
			st.Status = domain.EnginePaper
		}
	}

	if balance > 0 && st.DailyPnL <= -balance*g.cfg.MaxDailyLoss && !st.Status.Locked() {
		st.Status = domain.EngineDailyLock
	}
}

// DrawdownCheck locks the engine when drawdown from peak reaches the
// limit. A DD_LOCK clears once drawdown recovers to below half the limit;
// the hysteresis keeps the engine from flapping around the threshold.
func (g *Governor) DrawdownCheck(st *domain.EngineState, balance float64) {
	dd := domain.Drawdown(st.PeakBalance, balance)
	switch {
	case dd >= g.cfg.MaxDrawdown && !st.Status.Locked():
		st.Status = domain.EngineDDLock
	case st.Status == domain.EngineDDLock && dd < g.cfg.MaxDrawdown/2:
		st.Status = domain.EnginePaper
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
