// Package core holds the domain types shared across the trading engine:
// candles, positions, bankroll, signals, and the collaborator interfaces
// (exchange, storage, notifier, logger) that the rest of the module
// depends on without depending on their concrete implementations.
package core

import (
	"math"
	"time"
)

// Candle is an immutable OHLCV record for one symbol/interval bucket.
type Candle struct {
	Symbol     string
	Interval   string
	OpenTime   time.Time
	CloseTime  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	TradeCount int64
	// Closed reports whether the venue has finalized this candle. Live
	// feeds emit in-flight candles with Closed=false on every tick of
	// the current bucket and a final Closed=true update once it rolls.
	Closed bool
}

// IsClosed reports whether this candle can be considered closed relative
// to a later observed open timestamp for the same symbol+interval.
func (c Candle) IsClosed(nextOpen time.Time) bool {
	return nextOpen.After(c.OpenTime)
}

// Valid reports whether the candle satisfies the basic data model
// invariants: finite positive prices and close strictly after open.
func (c Candle) Valid() bool {
	if !c.CloseTime.After(c.OpenTime) {
		return false
	}
	for _, p := range []float64{c.Open, c.High, c.Low, c.Close} {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return true
}
