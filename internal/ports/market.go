package ports

import "context"

// MarketData fetches price snapshots and indicator values. Both calls are
// fallible and bounded by a short timeout; a failure is a normal outcome
// ("no_price"), never a crash. No retry happens inside one signal's
// processing — the next signal naturally retries.
type MarketData interface {
	// Price returns the current price for a symbol.
	Price(ctx context.Context, symbol string) (float64, error)

	// Indicator returns an indicator value (e.g. "sma" with a period),
	// walking a bounded interval-fallback ladder before giving up.
	Indicator(ctx context.Context, symbol, kind string, period int) (float64, error)
}
