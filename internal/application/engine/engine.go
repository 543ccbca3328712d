package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"impulsebot/config"
	"impulsebot/internal/domain"
	"impulsebot/internal/ports"
)

// Engine owns the trade lifecycle and the account state. One engine per
// process; every mutation of the balance ledger and the EngineState goes
// through its critical section.
type Engine struct {
	cfg    config.EngineConfig
	store  ports.Storage
	notify ports.Notifier
	log    *slog.Logger
	now    func() time.Time

	governor  *Governor
	blocker   *Blocker
	evaluator *Evaluator

	// stateMu is the single exclusive section guarding
	// "read latest balance → compute → append" plus EngineState. Without
	// it two concurrent closes could lose or double-count balance.
	stateMu sync.Mutex
	state   domain.EngineState
	balance float64

	// Per-symbol locks: each signal is fully processed before the next
	// signal for the same symbol begins; different symbols proceed
	// independently.
	symMuMu sync.Mutex
	symMu   map[string]*sync.Mutex
}

// New builds an engine. Call Init before processing signals.
// notify may be nil.
func New(cfg config.EngineConfig, store ports.Storage, notify ports.Notifier, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		store:     store,
		notify:    notify,
		log:       log.With("component", "engine"),
		now:       time.Now,
		governor:  NewGovernor(cfg),
		blocker:   NewBlocker(cfg, store),
		evaluator: NewEvaluator(cfg, store),
		symMu:     make(map[string]*sync.Mutex),
	}
}

// Init loads the persisted engine state and ledger, seeding both with
// defaults on first run.
func (e *Engine) Init(ctx context.Context) error {
	now := e.now()

	sample, ok, err := e.store.LatestBalance(ctx)
	if err != nil {
		return fmt.Errorf("engine.Init: %w", err)
	}
	if !ok {
		sample = domain.BalanceSample{Timestamp: now, Balance: e.cfg.StartBalance}
		if err := e.store.AppendBalance(ctx, sample); err != nil {
			return fmt.Errorf("engine.Init: seed ledger: %w", err)
		}
	}
	e.balance = sample.Balance

	st, ok, err := e.store.GetEngineState(ctx)
	if err != nil {
		return fmt.Errorf("engine.Init: %w", err)
	}
	if !ok {
		st = domain.EngineState{
			Status:       domain.EnginePaper,
			PeakBalance:  e.balance,
			DailyDate:    domain.UTCDay(now),
			AdaptiveRisk: e.cfg.MinRisk,
		}
		if err := e.store.SaveEngineState(ctx, st); err != nil {
			return fmt.Errorf("engine.Init: seed state: %w", err)
		}
	}
	e.state = st

	e.log.Info("engine initialized",
		"status", st.Status,
		"balance", e.balance,
		"peak", st.PeakBalance,
		"adaptive_risk", st.AdaptiveRisk,
	)
	return nil
}

// SetClock replaces the engine clock. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Snapshot returns a copy of the engine state and the current balance.
func (e *Engine) Snapshot() (domain.EngineState, float64) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state, e.balance
}

// lockSymbol serializes processing per symbol.
func (e *Engine) lockSymbol(symbol string) func() {
	e.symMuMu.Lock()
	mu, ok := e.symMu[symbol]
	if !ok {
		mu = &sync.Mutex{}
		e.symMu[symbol] = mu
	}
	e.symMuMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// realizeEvent applies a pnl-realizing trade event: balance, peak, daily
// window and circuit breakers move together with the trade row in one
// storage transaction. On a storage failure the in-memory state is rolled
// back and the error propagates — a silent partial write would
// desynchronize the ledger from trade state.
func (e *Engine) realizeEvent(ctx context.Context, t domain.Trade, eventPnL float64, now time.Time) (lockedNow bool, err error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	prevState := e.state
	prevBalance := e.balance

	e.governor.DailyLossCheck(&e.state, e.balance, now) // day rollover first

	e.balance += eventPnL
	e.state.DailyPnL += eventPnL
	if e.balance > e.state.PeakBalance {
		e.state.PeakBalance = e.balance
	}

	e.governor.DailyLossCheck(&e.state, e.balance, now)
	e.governor.DrawdownCheck(&e.state, e.balance)

	sample := domain.BalanceSample{Timestamp: now, Balance: e.balance}
	if err := e.store.RealizeTrade(ctx, t, sample, e.state); err != nil {
		e.state = prevState
		e.balance = prevBalance
		return false, err
	}

	return !prevState.Status.Locked() && e.state.Status.Locked(), nil
}

// checkBreakers runs the circuit breakers outside any trade event (day
// rollover, drawdown recovery) and persists the state when it changed.
func (e *Engine) checkBreakers(ctx context.Context, now time.Time) (domain.EngineState, float64, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	prev := e.state
	e.governor.DailyLossCheck(&e.state, e.balance, now)
	e.governor.DrawdownCheck(&e.state, e.balance)

	if e.state != prev {
		if err := e.store.SaveEngineState(ctx, e.state); err != nil {
			e.state = prev
			return domain.EngineState{}, 0, fmt.Errorf("engine.checkBreakers: %w", err)
		}
	}
	return e.state, e.balance, nil
}

// setAdaptiveRisk persists a freshly computed risk fraction.
func (e *Engine) setAdaptiveRisk(ctx context.Context, risk float64) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.state.AdaptiveRisk == risk {
		return nil
	}
	prev := e.state
	e.state.AdaptiveRisk = risk
	if err := e.store.SaveEngineState(ctx, e.state); err != nil {
		e.state = prev
		return fmt.Errorf("engine.setAdaptiveRisk: %w", err)
	}
	return nil
}
