package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"impulsebot/internal/domain"
)

// exitParams are the per-trade exit distances, derived from the base
// config and the pair's current multipliers.
type exitParams struct {
	tp     float64
	sl     float64
	weight float64
}

// ProcessSignal is the single synchronous entry point of the engine:
// manage every open trade on the signal's symbol against the price
// snapshot, run the circuit breakers, then gate and possibly open a new
// trade. The price is fetched by the caller before any lock is taken.
func (e *Engine) ProcessSignal(ctx context.Context, sig domain.Signal, price float64) (domain.ProcessResult, error) {
	unlock := e.lockSymbol(sig.Symbol)
	defer unlock()

	now := e.now()

	closed, err := e.ManageOpenTrades(ctx, sig.Symbol, price, &sig.Action)
	if err != nil {
		return domain.ProcessResult{}, err
	}

	state, balance, err := e.checkBreakers(ctx, now)
	if err != nil {
		return domain.ProcessResult{}, err
	}

	res := domain.ProcessResult{
		Outcome:      domain.OutcomeManaged,
		Closed:       closed,
		Balance:      balance,
		EngineStatus: state.Status,
	}

	// Guard (a): engine lock. Open trades were still managed above —
	// risk already taken is not abandoned.
	if state.Status.Locked() {
		res.Outcome = domain.OutcomeBlocked
		res.Detail = string(state.Status)
		return res, nil
	}

	// Guard (b): context block for the current time-of-week bucket.
	blocked, err := e.blocker.IsBlocked(ctx, sig.Symbol, sig.Strategy, now)
	if err != nil {
		return domain.ProcessResult{}, err
	}
	if blocked {
		res.Outcome = domain.OutcomeContextBlocked
		return res, nil
	}

	// Guard (c): strategy must not be disabled. An expired cooldown
	// revives the pair into TESTING on the spot.
	strat, err := e.evaluator.Register(ctx, sig.Symbol, sig.Strategy, now)
	if err != nil {
		return domain.ProcessResult{}, err
	}
	if err := e.evaluator.ReviveIfExpired(ctx, &strat, now); err != nil {
		return domain.ProcessResult{}, err
	}
	if strat.Status == domain.StrategyDisabled {
		res.Outcome = domain.OutcomeStrategyDisabled
		res.Detail = strat.LastReason
		return res, nil
	}

	// Repeated impulses for a position we already hold are dropped.
	open, err := e.store.GetOpenTrades(ctx, sig.Symbol)
	if err != nil {
		return domain.ProcessResult{}, err
	}
	for _, t := range open {
		if t.Strategy == sig.Strategy && t.Action == sig.Action {
			res.Outcome = domain.OutcomeDuplicate
			return res, nil
		}
	}

	trade, err := e.openTrade(ctx, sig, strat, price, now)
	if err != nil {
		return domain.ProcessResult{}, err
	}

	res.Outcome = domain.OutcomeOpened
	res.Trade = &trade
	res.Balance = balance
	if e.notify != nil {
		if err := e.notify.TradeOpened(ctx, trade, balance); err != nil {
			e.log.Warn("notifier error", "err", err)
		}
	}
	return res, nil
}

// openTrade sizes and inserts a new OPEN trade. All guards have passed.
func (e *Engine) openTrade(ctx context.Context, sig domain.Signal, strat domain.StrategyState, price float64, now time.Time) (domain.Trade, error) {
	recent, err := e.store.GetRecentClosed(ctx, e.cfg.AdaptiveWindow)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("engine.openTrade: %w", err)
	}

	state, balance := e.Snapshot()
	risk := e.governor.AdaptiveRisk(recent, state.AdaptiveRisk)
	if err := e.setAdaptiveRisk(ctx, risk); err != nil {
		return domain.Trade{}, err
	}

	slDistance := e.cfg.BaseSLPoints * strat.SLMult
	lot := e.governor.PositionSize(balance, slDistance, risk*strat.Weight)

	trade := domain.Trade{
		ID:           uuid.New().String(),
		Symbol:       sig.Symbol,
		Strategy:     sig.Strategy,
		Action:       sig.Action,
		EntryPrice:   price,
		Lot:          lot,
		RemainingLot: lot,
		Stage:        domain.StageFresh,
		Status:       domain.TradeOpen,
		OpenedAt:     now.UTC(),
	}

	if err := e.store.InsertTrade(ctx, trade); err != nil {
		return domain.Trade{}, fmt.Errorf("engine.openTrade: %w", err)
	}

	e.log.Info("trade opened",
		"id", trade.ID,
		"symbol", trade.Symbol,
		"strategy", trade.Strategy,
		"action", trade.Action,
		"entry", trade.EntryPrice,
		"lot", trade.Lot,
		"risk", risk,
	)
	return trade, nil
}

// ManageOpenTrades re-evaluates every OPEN trade on the symbol against
// the current price: partial close, trailing-stop ratchet, and the full
// exits. opposing, when set, is the action of an incoming signal — open
// trades in the other direction are force-closed at market.
func (e *Engine) ManageOpenTrades(ctx context.Context, symbol string, price float64, opposing *domain.Action) ([]domain.Trade, error) {
	open, err := e.store.GetOpenTrades(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("engine.ManageOpenTrades: %w", err)
	}

	params := make(map[string]exitParams) // strategy → distances
	var closed []domain.Trade
	now := e.now()

	for i := range open {
		t := open[i]

		p, ok := params[t.Strategy]
		if !ok {
			strat, err := e.evaluator.Register(ctx, t.Symbol, t.Strategy, now)
			if err != nil {
				return closed, err
			}
			p = exitParams{
				tp:     e.cfg.BaseTPPoints * strat.TPMult,
				sl:     e.cfg.BaseSLPoints * strat.SLMult,
				weight: strat.Weight,
			}
			params[t.Strategy] = p
		}

		isOpposing := opposing != nil && t.Action != *opposing
		done, err := e.manageTrade(ctx, &t, price, p, isOpposing, now)
		if err != nil {
			return closed, err
		}
		if done {
			closed = append(closed, t)
		}
	}
	return closed, nil
}

// manageTrade runs the exit ladder for one trade. Pre-committed risk
// limits (trailing breach, hard SL) take priority over the
// opposing-signal exit.
func (e *Engine) manageTrade(ctx context.Context, t *domain.Trade, price float64, p exitParams, opposing bool, now time.Time) (bool, error) {
	dir := t.Action.Direction()
	move := t.Move(price)

	// 1. Trailing-stop breach: exit at the stop level.
	if t.TrailingSL != nil && (price-*t.TrailingSL)*dir <= 0 {
		pnl := (*t.TrailingSL - t.EntryPrice) * dir * t.RemainingLot * e.cfg.PointValue
		return true, e.closeTrade(ctx, t, *t.TrailingSL, pnl, domain.CloseTrailingStop, now)
	}

	// 2. Hard stop: fixed loss on the remaining lot.
	if move <= -p.sl {
		exit := t.EntryPrice - p.sl*dir
		pnl := -p.sl * t.RemainingLot * e.cfg.PointValue
		return true, e.closeTrade(ctx, t, exit, pnl, domain.CloseStopLoss, now)
	}

	stopsDirty := false

	if move >= p.tp {
		if t.Stage == domain.StageFresh && e.cfg.PartialFraction > 0 {
			// 3. Partial close, at most once per trade: bank a fraction at
			// the current price and let the remainder run.
			if err := e.partialClose(ctx, t, price, move, now); err != nil {
				return false, err
			}
			stopsDirty = true
		} else if e.cfg.PartialFraction <= 0 {
			// 4. No partial-close rule configured: the full target closes
			// the position at a fixed TP amount.
			exit := t.EntryPrice + p.tp*dir
			pnl := p.tp * t.RemainingLot * e.cfg.PointValue
			return true, e.closeTrade(ctx, t, exit, pnl, domain.CloseTakeProfit, now)
		}
	}

	// 5. Trailing-stop ratchet: only ever replaced by a strictly more
	// favorable level.
	if move >= e.cfg.TrailStart {
		candidate := price - e.cfg.TrailDistance*dir
		if t.TrailingSL == nil || (candidate-*t.TrailingSL)*dir > 0 {
			t.TrailingSL = &candidate
			stopsDirty = true
		}
		if t.Stage < domain.StageTrailing {
			t.Stage = domain.StageTrailing
			stopsDirty = true
		}
	}

	// 6. Opposing signal: forced market exit at the current displacement.
	if opposing {
		pnl := move * t.RemainingLot * e.cfg.PointValue
		return true, e.closeTrade(ctx, t, price, pnl, domain.CloseOpposing, now)
	}

	if stopsDirty {
		if err := e.store.UpdateTradeStops(ctx, *t); err != nil {
			return false, err
		}
	}
	return false, nil
}

// partialClose banks the configured fraction of the lot at the current
// price. The trade stays OPEN; its stage advances so this fires at most
// once.
func (e *Engine) partialClose(ctx context.Context, t *domain.Trade, price, move float64, now time.Time) error {
	closedLot := round2(t.Lot * e.cfg.PartialFraction)
	if closedLot <= 0 || closedLot >= t.RemainingLot {
		t.Stage = domain.StagePartial
		return nil
	}

	pnl := move * closedLot * e.cfg.PointValue
	t.RemainingLot = round2(t.RemainingLot - closedLot)
	if t.Stage < domain.StagePartial {
		t.Stage = domain.StagePartial
	}
	t.PnL += pnl

	lockedNow, err := e.realizeEvent(ctx, *t, pnl, now)
	if err != nil {
		return fmt.Errorf("engine.partialClose: %w", err)
	}
	e.afterLock(ctx, lockedNow)

	e.log.Info("partial close",
		"id", t.ID,
		"symbol", t.Symbol,
		"closed_lot", closedLot,
		"remaining_lot", t.RemainingLot,
		"pnl", pnl,
	)
	return nil
}

// closeTrade finalizes a trade: OPEN → CLOSED exactly once. The balance
// append, the daily pnl and the trade row move in one transaction; the
// evaluator and the context blocker get the outcome afterwards.
func (e *Engine) closeTrade(ctx context.Context, t *domain.Trade, exitPrice, pnl float64, reason string, now time.Time) error {
	if !t.IsOpen() {
		return fmt.Errorf("engine.closeTrade: trade %s already closed", t.ID)
	}

	closedAt := now.UTC()
	t.Status = domain.TradeClosed
	t.ExitPrice = &exitPrice
	t.ClosedAt = &closedAt
	t.PnL += pnl
	t.CloseReason = reason

	lockedNow, err := e.realizeEvent(ctx, *t, pnl, now)
	if err != nil {
		return fmt.Errorf("engine.closeTrade: %w", err)
	}

	_, balance := e.Snapshot()
	e.log.Info("trade closed",
		"id", t.ID,
		"symbol", t.Symbol,
		"strategy", t.Strategy,
		"reason", reason,
		"exit", exitPrice,
		"pnl", t.PnL,
		"balance", balance,
	)

	if err := e.evaluator.Reevaluate(ctx, t.Symbol, t.Strategy, now); err != nil {
		return fmt.Errorf("engine.closeTrade: %w", err)
	}
	if err := e.blocker.Penalize(ctx, t.Symbol, t.Strategy, t.PnL, now); err != nil {
		return fmt.Errorf("engine.closeTrade: %w", err)
	}

	if e.notify != nil {
		if err := e.notify.TradeClosed(ctx, *t, balance); err != nil {
			e.log.Warn("notifier error", "err", err)
		}
	}
	e.afterLock(ctx, lockedNow)
	return nil
}

// afterLock reports a freshly tripped circuit breaker.
func (e *Engine) afterLock(ctx context.Context, lockedNow bool) {
	if !lockedNow {
		return
	}
	state, _ := e.Snapshot()
	e.log.Warn("circuit breaker tripped", "status", state.Status)
	if e.notify != nil {
		if err := e.notify.EngineLocked(ctx, state.Status, string(state.Status)); err != nil {
			e.log.Warn("notifier error", "err", err)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
