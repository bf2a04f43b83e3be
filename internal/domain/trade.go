package domain

import (
	"fmt"
	"time"
)

// Trade is the canonical execution record every source is converted into.
// ID is unique per source and is the key sinks upsert on, so the same ID must
// always carry the same values.
type Trade struct {
	ID       string
	TradedAt time.Time
	Quantity float64 // positive for buys, negative for sells
	Price    float64
}

// Side returns "buy" or "sell" depending on the sign of Quantity.
func (t Trade) Side() string {
	if t.Quantity < 0 {
		return "sell"
	}
	return "buy"
}

// String renders the trade as a single human-readable line.
func (t Trade) String() string {
	return fmt.Sprintf("%s %s qty=%g price=%g",
		t.ID, t.TradedAt.UTC().Format(time.RFC3339Nano), t.Quantity, t.Price)
}
