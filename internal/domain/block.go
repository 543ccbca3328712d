package domain

import "time"

// ContextBlock suppresses new trades for a (symbol, strategy) pair during
// one specific hour-of-day/weekday bucket. Losses cluster by session, so
// the block is time-of-week scoped rather than global.
type ContextBlock struct {
	Symbol       string
	Strategy     string
	Hour         int // 0–23
	Weekday      int // 0–6, Sunday = 0
	BlockedUntil time.Time
}

// Active reports whether the block is still in force at now.
func (b ContextBlock) Active(now time.Time) bool {
	return now.Before(b.BlockedUntil)
}

// BucketOf returns the (hour, weekday) bucket for a timestamp in UTC.
func BucketOf(t time.Time) (hour, weekday int) {
	u := t.UTC()
	return u.Hour(), int(u.Weekday())
}
