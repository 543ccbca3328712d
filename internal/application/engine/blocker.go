package engine

import (
	"context"
	"time"

	"impulsebot/config"
	"impulsebot/internal/domain"
	"impulsebot/internal/ports"
)

// Blocker tracks temporary per (symbol, strategy, hour, weekday)
// suppression windows triggered by losing trades. The block is scoped to
// the time-of-week bucket the losses happened in, not to the pair
// globally.
type Blocker struct {
	cfg   config.EngineConfig
	store ports.Storage
}

// NewBlocker builds a context blocker on top of the given store.
func NewBlocker(cfg config.EngineConfig, store ports.Storage) *Blocker {
	return &Blocker{cfg: cfg, store: store}
}

// IsBlocked reports whether the pair is suppressed in the current
// hour/weekday bucket.
func (b *Blocker) IsBlocked(ctx context.Context, symbol, strategy string, now time.Time) (bool, error) {
	hour, weekday := domain.BucketOf(now)
	block, ok, err := b.store.GetContextBlock(ctx, symbol, strategy, hour, weekday)
	if err != nil {
		return false, err
	}
	return ok && block.Active(now), nil
}

// Penalize is called after every close. A winning close resets the pair's
// consecutive-loss counter; a non-positive close increments it, and once
// the streak reaches the configured length the current bucket is blocked
// for the cooldown window.
func (b *Blocker) Penalize(ctx context.Context, symbol, strategy string, pnl float64, now time.Time) error {
	if pnl > 0 {
		return b.store.SetLossStreak(ctx, symbol, strategy, 0)
	}

	streak, err := b.store.GetLossStreak(ctx, symbol, strategy)
	if err != nil {
		return err
	}
	streak++
	if err := b.store.SetLossStreak(ctx, symbol, strategy, streak); err != nil {
		return err
	}

	if streak < b.cfg.BlockLossStreak {
		return nil
	}

	hour, weekday := domain.BucketOf(now)
	cooldown := time.Duration(b.cfg.BlockCooldownHours) * time.Hour
	return b.store.SaveContextBlock(ctx, domain.ContextBlock{
		Symbol:       symbol,
		Strategy:     strategy,
		Hour:         hour,
		Weekday:      weekday,
		BlockedUntil: now.Add(cooldown),
	})
}
