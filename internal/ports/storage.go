package ports

import (
	"context"

	"impulsebot/internal/domain"
)

// Storage is the single mutation path for all engine entities. The engine
// owns the entities; storage is a pass-through, reads are authoritative
// snapshots.
type Storage interface {
	// Trades
	InsertTrade(ctx context.Context, t domain.Trade) error
	GetTrade(ctx context.Context, id string) (domain.Trade, bool, error)
	GetOpenTrades(ctx context.Context, symbol string) ([]domain.Trade, error)
	GetClosedTrades(ctx context.Context, symbol, strategy string, limit int) ([]domain.Trade, error)
	GetRecentClosed(ctx context.Context, limit int) ([]domain.Trade, error)
	ListTrades(ctx context.Context, status, symbol string, limit int) ([]domain.Trade, error)

	// UpdateTradeStops persists stage/remaining-lot/trailing changes that
	// realize no pnl.
	UpdateTradeStops(ctx context.Context, t domain.Trade) error

	// RealizeTrade persists a pnl-realizing event atomically: the trade row,
	// the appended balance sample and the engine state move in one
	// transaction so the ledger can never desynchronize from trade state.
	RealizeTrade(ctx context.Context, t domain.Trade, sample domain.BalanceSample, state domain.EngineState) error

	// Balance ledger
	AppendBalance(ctx context.Context, sample domain.BalanceSample) error
	LatestBalance(ctx context.Context) (domain.BalanceSample, bool, error)
	BalanceHistory(ctx context.Context, limit int) ([]domain.BalanceSample, error)

	// Engine state singleton
	GetEngineState(ctx context.Context) (domain.EngineState, bool, error)
	SaveEngineState(ctx context.Context, s domain.EngineState) error

	// Strategy state
	GetStrategyState(ctx context.Context, symbol, strategy string) (domain.StrategyState, bool, error)
	SaveStrategyState(ctx context.Context, s domain.StrategyState) error
	ListStrategyStates(ctx context.Context) ([]domain.StrategyState, error)

	// Context blocks and loss streaks
	GetContextBlock(ctx context.Context, symbol, strategy string, hour, weekday int) (domain.ContextBlock, bool, error)
	SaveContextBlock(ctx context.Context, b domain.ContextBlock) error
	GetLossStreak(ctx context.Context, symbol, strategy string) (int, error)
	SetLossStreak(ctx context.Context, symbol, strategy string, streak int) error

	Close() error
}
