package engine

import (
	"context"
	"fmt"
	"time"

	"impulsebot/config"
	"impulsebot/internal/domain"
	"impulsebot/internal/ports"
)

// Reasons recorded in StrategyState.LastReason.
const (
	reasonMaxDD          = "max_dd"
	reasonUnderperform   = "underperforming"
	reasonCooldownExpiry = ""
)

// Evaluator computes rolling performance per (symbol, strategy) pair and
// drives its ACTIVE/TESTING/DEGRADED/DISABLED state machine.
type Evaluator struct {
	cfg   config.EngineConfig
	store ports.Storage
}

// NewEvaluator builds an evaluator on top of the given store.
func NewEvaluator(cfg config.EngineConfig, store ports.Storage) *Evaluator {
	return &Evaluator{cfg: cfg, store: store}
}

// Stats computes performance metrics over all closed trades of the pair.
// ok=false means the sample is too small to act on.
func (e *Evaluator) Stats(ctx context.Context, symbol, strategy string) (domain.PerfStats, bool, error) {
	closed, err := e.store.GetClosedTrades(ctx, symbol, strategy, 0)
	if err != nil {
		return domain.PerfStats{}, false, fmt.Errorf("evaluator.Stats: %w", err)
	}

	var stats domain.PerfStats
	stats.Trades = len(closed)
	if stats.Trades == 0 {
		return stats, false, nil
	}

	// Replay the pnls as an equity curve from a fixed starting balance.
	equity := e.cfg.StartBalance
	peak := equity
	days := make(map[string]struct{})
	var sum float64
	for _, t := range closed {
		if t.PnL > 0 {
			stats.Wins++
		}
		sum += t.PnL
		equity += t.PnL
		if equity > peak {
			peak = equity
		}
		if dd := domain.Drawdown(peak, equity); dd > stats.MaxDD {
			stats.MaxDD = dd
		}
		if t.ClosedAt != nil {
			days[domain.UTCDay(*t.ClosedAt)] = struct{}{}
		}
	}

	stats.WinRate = float64(stats.Wins) / float64(stats.Trades)
	stats.Expectancy = sum / float64(stats.Trades)
	stats.ActiveDays = len(days)

	return stats, stats.Trades >= e.cfg.MinTradesForOpt, nil
}

// Register returns the pair's state, creating a fresh ACTIVE record the
// first time the pair is seen.
func (e *Evaluator) Register(ctx context.Context, symbol, strategy string, now time.Time) (domain.StrategyState, error) {
	st, ok, err := e.store.GetStrategyState(ctx, symbol, strategy)
	if err != nil {
		return domain.StrategyState{}, fmt.Errorf("evaluator.Register: %w", err)
	}
	if ok {
		return st, nil
	}
	st = domain.NewStrategyState(symbol, strategy, now)
	if err := e.store.SaveStrategyState(ctx, st); err != nil {
		return domain.StrategyState{}, fmt.Errorf("evaluator.Register: %w", err)
	}
	return st, nil
}

// ReviveIfExpired moves a DISABLED pair whose cooldown has passed into
// TESTING. Called from the open guard so an expired pair does not stay
// dark until its next close.
func (e *Evaluator) ReviveIfExpired(ctx context.Context, st *domain.StrategyState, now time.Time) error {
	if st.Status != domain.StrategyDisabled {
		return nil
	}
	if st.DisabledUntil == nil || now.Before(*st.DisabledUntil) {
		return nil
	}
	st.Status = domain.StrategyTesting
	st.DisabledUntil = nil
	st.LastReason = reasonCooldownExpiry
	st.UpdatedAt = now
	if err := e.store.SaveStrategyState(ctx, *st); err != nil {
		return fmt.Errorf("evaluator.ReviveIfExpired: %w", err)
	}
	return nil
}

// Reevaluate runs the pair's state machine after a close. The checks run
// in a fixed order: cooldown expiry, sample gate, drawdown kill-switch,
// promotion, then continuous tuning.
func (e *Evaluator) Reevaluate(ctx context.Context, symbol, strategy string, now time.Time) error {
	st, err := e.Register(ctx, symbol, strategy, now)
	if err != nil {
		return err
	}

	// 1. Cooldown expiry first: a DISABLED pair whose window passed gets
	// another chance in TESTING.
	if st.Status == domain.StrategyDisabled {
		if st.DisabledUntil != nil && now.Before(*st.DisabledUntil) {
			return nil
		}
		st.Status = domain.StrategyTesting
		st.DisabledUntil = nil
		st.LastReason = reasonCooldownExpiry
	}

	// 2. Sample gate: with too little data no further transition happens.
	stats, ok, err := e.Stats(ctx, symbol, strategy)
	if err != nil {
		return err
	}
	if !ok {
		st.UpdatedAt = now
		if err := e.store.SaveStrategyState(ctx, st); err != nil {
			return fmt.Errorf("evaluator.Reevaluate: %w", err)
		}
		return nil
	}

	switch {
	// 3. Safety override: excessive drawdown disables the pair regardless
	// of its current status.
	case stats.MaxDD >= e.cfg.DisableDDThreshold:
		until := now.Add(time.Duration(e.cfg.StrategyCooldownHours) * time.Hour)
		st.Status = domain.StrategyDisabled
		st.DisabledUntil = &until
		st.LastReason = reasonMaxDD

	// 4. Promotion: a TESTING pair with enough winning history goes ACTIVE.
	case st.Status == domain.StrategyTesting &&
		stats.WinRate >= e.cfg.MinWinrate && stats.Expectancy > 0:
		st.Status = domain.StrategyActive
		st.LastReason = ""

	// Demotion between the discrete states: an ACTIVE pair bleeding money
	// degrades; a DEGRADED pair that recovers returns to ACTIVE.
	case st.Status == domain.StrategyActive &&
		stats.WinRate < e.cfg.MinWinrate && stats.Expectancy <= 0:
		st.Status = domain.StrategyDegraded
		st.LastReason = reasonUnderperform

	case st.Status == domain.StrategyDegraded &&
		stats.WinRate >= e.cfg.MinWinrate && stats.Expectancy > 0:
		st.Status = domain.StrategyActive
		st.LastReason = ""
	}

	// 5. Continuous tuning, independent of the discrete transitions.
	e.tune(&st, stats)

	st.UpdatedAt = now
	if err := e.store.SaveStrategyState(ctx, st); err != nil {
		return fmt.Errorf("evaluator.Reevaluate: %w", err)
	}
	return nil
}

// tune nudges the exit multipliers and the risk weight with the recent
// win rate and expectancy.
func (e *Evaluator) tune(st *domain.StrategyState, stats domain.PerfStats) {
	switch {
	case stats.WinRate >= 0.65:
		st.TPMult = clamp(st.TPMult+0.05, 0.5, 1.5)
		st.SLMult = clamp(st.SLMult-0.05, 0.7, 1.5)
	case stats.WinRate <= 0.35:
		st.TPMult = clamp(st.TPMult-0.05, 0.5, 1.5)
		st.SLMult = clamp(st.SLMult+0.05, 0.7, 1.5)
	}

	if stats.Expectancy > 0 {
		st.Weight = clamp(st.Weight+0.1, 0.3, 1.0)
	} else {
		st.Weight = clamp(st.Weight-0.1, 0.3, 1.0)
	}
}
