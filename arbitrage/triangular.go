// Package arbitrage implements the triangular arbitrage detector over
// three order books, per spec.md §4.7. A new component built over
// package orderbook; no teacher analogue exists for this concern.
package arbitrage

import (
	"time"

	"github.com/raykavin/perpbot/orderbook"
)

// Pair names one leg of the triangle: USDC/A, A/B, USDC/B (or however
// the venue denominates it). Divisor converts the book's integer price
// grid back into a float price, mirroring spec.md's "per-pair integer
// to float divisors".
type Pair struct {
	Book    *orderbook.Book
	Divisor float64
	Fee     float64 // taker fee fraction, e.g. 0.001
}

func (p Pair) bestAsk() (float64, bool) {
	px, _, ok := p.Book.BestAsk()
	if !ok {
		return 0, false
	}
	return px / p.Divisor, true
}

func (p Pair) bestBid() (float64, bool) {
	px, _, ok := p.Book.BestBid()
	if !ok {
		return 0, false
	}
	return px / p.Divisor, true
}

// cache holds the refreshed best prices for one evaluation pass.
type cache struct {
	usdcAAsk, usdcABid float64
	abAsk, abBid       float64
	usdcBAsk, usdcBBid float64
	ok                 bool
}

// Detector evaluates a USDC -> A -> B -> USDC triangle (and its
// reverse) over three live order books.
type Detector struct {
	usdcA Pair // USDC/A
	ab    Pair // A/B
	usdcB Pair // USDC/B

	minProfitBps float64
}

// New constructs a detector over the three legs of the triangle.
func New(usdcA, ab, usdcB Pair, minProfitBps float64) *Detector {
	return &Detector{usdcA: usdcA, ab: ab, usdcB: usdcB, minProfitBps: minProfitBps}
}

// Opportunity describes one profitable closed-path trade.
type Opportunity struct {
	Time       time.Time
	Direction  string // "forward" or "reverse"
	ProfitBps  float64
	StartUSDC  float64
	EndUSDC    float64
}

func (d *Detector) refresh() (cache, bool) {
	var c cache
	var ok bool

	c.usdcAAsk, ok = d.usdcA.bestAsk()
	if !ok {
		return c, false
	}
	c.usdcABid, ok = d.usdcA.bestBid()
	if !ok {
		return c, false
	}
	c.abAsk, ok = d.ab.bestAsk()
	if !ok {
		return c, false
	}
	c.abBid, ok = d.ab.bestBid()
	if !ok {
		return c, false
	}
	c.usdcBAsk, ok = d.usdcB.bestAsk()
	if !ok {
		return c, false
	}
	c.usdcBBid, ok = d.usdcB.bestBid()
	if !ok {
		return c, false
	}
	c.ok = true
	return c, true
}

// DetectOpportunities refreshes the cached best prices and evaluates
// both closed-path computations, returning any that clear
// minProfitBps.
func (d *Detector) DetectOpportunities(ts time.Time, amount float64) []Opportunity {
	c, ok := d.refresh()
	if !ok {
		return nil
	}

	var out []Opportunity

	// Forward: USDC -> A -> B -> USDC
	a := (amount / c.usdcAAsk) * (1 - d.usdcA.Fee)
	bAmt := (a / c.abAsk) * (1 - d.ab.Fee)
	finalUSDC := (bAmt * c.usdcBBid) * (1 - d.usdcB.Fee)
	fwdBps := profitBps(amount, finalUSDC)
	if fwdBps >= d.minProfitBps {
		out = append(out, Opportunity{Time: ts, Direction: "forward", ProfitBps: fwdBps, StartUSDC: amount, EndUSDC: finalUSDC})
	}

	// Reverse: USDC -> B -> A -> USDC
	b := (amount / c.usdcBAsk) * (1 - d.usdcB.Fee)
	aAmt := (b * c.abBid) * (1 - d.ab.Fee)
	finalUSDC2 := (aAmt * c.usdcABid) * (1 - d.usdcA.Fee)
	revBps := profitBps(amount, finalUSDC2)
	if revBps >= d.minProfitBps {
		out = append(out, Opportunity{Time: ts, Direction: "reverse", ProfitBps: revBps, StartUSDC: amount, EndUSDC: finalUSDC2})
	}

	return out
}

func profitBps(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return (end - start) / start * 10000
}
