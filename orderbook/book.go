// Package orderbook implements an in-memory, price-indexed order book
// over a fixed price grid, per spec.md §4.6. It is a new component —
// the teacher has no order book — but follows the teacher's
// core/priority_queue.go idiom of array-backed structures with cached
// index bookkeeping for O(1) access, adapted here to price levels
// instead of heap positions.
package orderbook

import "fmt"

// Side identifies which side of the book a level belongs to.
type Side int

const (
	Bid Side = iota
	Ask
)

// Book is a dense-array order book over [minPrice, maxPrice) at a
// fixed tick size. Prices are mapped to indices by (price-min)/tick.
type Book struct {
	Symbol   string
	TickSize float64
	minPrice float64
	maxPrice float64
	size     int

	bids []float64
	asks []float64

	bestBidIdx int // -1 when no bids
	bestAskIdx int // -1 when no asks
}

// New constructs a book spanning [minPrice, maxPrice) at the given
// tick size.
func New(symbol string, minPrice, maxPrice, tickSize float64) *Book {
	size := int((maxPrice-minPrice)/tickSize) + 1
	return &Book{
		Symbol:     symbol,
		TickSize:   tickSize,
		minPrice:   minPrice,
		maxPrice:   maxPrice,
		size:       size,
		bids:       make([]float64, size),
		asks:       make([]float64, size),
		bestBidIdx: -1,
		bestAskIdx: -1,
	}
}

func (b *Book) index(price float64) (int, bool) {
	if price < b.minPrice || price >= b.maxPrice {
		return 0, false
	}
	idx := int((price - b.minPrice) / b.TickSize)
	if idx < 0 || idx >= b.size {
		return 0, false
	}
	return idx, true
}

func (b *Book) levels(side Side) []float64 {
	if side == Bid {
		return b.bids
	}
	return b.asks
}

// Set applies a {price, qty, side} update. A zero quantity is
// equivalent to Remove. Prices outside [minPrice, maxPrice) are
// silently ignored per the out-of-range guard.
func (b *Book) Set(price, qty float64, side Side) {
	idx, ok := b.index(price)
	if !ok {
		return
	}
	if qty == 0 {
		b.Remove(price, side)
		return
	}

	levels := b.levels(side)
	wasZero := levels[idx] == 0
	levels[idx] = qty

	if side == Bid {
		if wasZero && (b.bestBidIdx == -1 || idx > b.bestBidIdx) {
			b.bestBidIdx = idx
		}
	} else {
		if wasZero && (b.bestAskIdx == -1 || idx < b.bestAskIdx) {
			b.bestAskIdx = idx
		}
	}
}

// Remove clears the level at price on the given side.
func (b *Book) Remove(price float64, side Side) {
	idx, ok := b.index(price)
	if !ok {
		return
	}
	levels := b.levels(side)
	if levels[idx] == 0 {
		return
	}
	levels[idx] = 0

	if side == Bid && idx == b.bestBidIdx {
		b.bestBidIdx = b.scanBestBid(idx - 1)
	} else if side == Ask && idx == b.bestAskIdx {
		b.bestAskIdx = b.scanBestAsk(idx + 1)
	}
}

func (b *Book) scanBestBid(from int) int {
	for i := from; i >= 0; i-- {
		if b.bids[i] != 0 {
			return i
		}
	}
	return -1
}

func (b *Book) scanBestAsk(from int) int {
	for i := from; i < b.size; i++ {
		if b.asks[i] != 0 {
			return i
		}
	}
	return -1
}

func (b *Book) priceAt(idx int) float64 {
	return b.minPrice + float64(idx)*b.TickSize
}

// BestBid returns the highest-priced non-zero bid level, if any.
func (b *Book) BestBid() (float64, float64, bool) {
	if b.bestBidIdx == -1 {
		return 0, 0, false
	}
	return b.priceAt(b.bestBidIdx), b.bids[b.bestBidIdx], true
}

// BestAsk returns the lowest-priced non-zero ask level, if any.
func (b *Book) BestAsk() (float64, float64, bool) {
	if b.bestAskIdx == -1 {
		return 0, 0, false
	}
	return b.priceAt(b.bestAskIdx), b.asks[b.bestAskIdx], true
}

// Spread returns ask-bid, and false if either side is empty.
func (b *Book) Spread() (float64, bool) {
	bidPx, _, bidOK := b.BestBid()
	askPx, _, askOK := b.BestAsk()
	if !bidOK || !askOK {
		return 0, false
	}
	return askPx - bidPx, true
}

// QuantityAt returns the resting quantity at price on the given side,
// or false if the level is absent or out of range.
func (b *Book) QuantityAt(price float64, side Side) (float64, bool) {
	idx, ok := b.index(price)
	if !ok {
		return 0, false
	}
	qty := b.levels(side)[idx]
	if qty == 0 {
		return 0, false
	}
	return qty, true
}

// CheckInvariants reports an error when the book is crossed (best bid at
// or above best ask); it does not re-scan the levels to verify the
// cached best indices. For tests, not the hot path.
func (b *Book) CheckInvariants() error {
	bidPx, _, bidOK := b.BestBid()
	askPx, _, askOK := b.BestAsk()
	if bidOK && askOK && bidPx >= askPx {
		return fmt.Errorf("best bid %.8f is not below best ask %.8f", bidPx, askPx)
	}
	return nil
}
