package core

import "time"

// Position is the single open position for an instrument. The manager
// guarantees at most one per instrument (spec invariant).
type Position struct {
	PersistenceID    string
	Symbol           string
	Side             Side
	EntryPrice       float64
	EntryTime        time.Time
	Size             float64
	Notional         float64
	Collateral       float64 // available_balance actually deducted at open; may be less than Notional if the $10 floor forced a clamp
	StopLossPrice    float64
	StopLossPct      float64
	UnrealizedPnl    float64
	UnrealizedPnlPct float64
	EntryFee         float64
	FundingPaid      float64
	Managed          bool // true when created by SyncFromExchange, not a signal
}

// ValidStopLoss checks the safe-side invariant: a long's stop must sit
// below entry, a short's stop must sit above entry.
func (p Position) ValidStopLoss() bool {
	if p.Side == SideLong {
		return p.StopLossPrice > 0 && p.StopLossPrice < p.EntryPrice
	}
	return p.StopLossPrice > 0 && p.StopLossPrice > p.EntryPrice
}

// PnL computes unrealized profit/loss at the given mark price.
func (p Position) PnL(price float64) (pnl, pnlPct float64) {
	if p.Side == SideLong {
		pnl = (price - p.EntryPrice) * p.Size
	} else {
		pnl = (p.EntryPrice - price) * p.Size
	}
	base := p.EntryPrice * p.Size
	if base != 0 {
		pnlPct = pnl / base * 100
	}
	return pnl, pnlPct
}

// ClosedTrade is one append-only ledger entry. GrossPnl excludes fees
// and funding; NetPnl is the live path's full accounting per spec.md
// §9 Open Question (a) — the backtest harness reuses this same formula
// with funding forced to zero so both paths share one PnL definition.
type ClosedTrade struct {
	PersistenceID string
	Symbol        string
	Side          Side
	EntryPrice    float64
	ExitPrice     float64
	Size          float64
	GrossPnl      float64
	NetPnl        float64
	PnlPct        float64
	EntryFee      float64
	ExitFee       float64
	FundingPaid   float64
	EntryTime     time.Time
	ExitTime      time.Time
}

// NewClosedTrade builds a ledger entry from a position and exit details,
// applying the unified net-PnL formula: gross − entryFee − exitFee + funding.
func NewClosedTrade(p Position, exitPrice float64, exitTime time.Time, exitFee float64) ClosedTrade {
	gross, pnlPct := p.PnL(exitPrice)
	net := gross - p.EntryFee - exitFee + p.FundingPaid
	return ClosedTrade{
		PersistenceID: p.PersistenceID,
		Symbol:        p.Symbol,
		Side:          p.Side,
		EntryPrice:    p.EntryPrice,
		ExitPrice:     exitPrice,
		Size:          p.Size,
		GrossPnl:      gross,
		NetPnl:        net,
		PnlPct:        pnlPct,
		EntryFee:      p.EntryFee,
		ExitFee:       exitFee,
		FundingPaid:   p.FundingPaid,
		EntryTime:     p.EntryTime,
		ExitTime:      exitTime,
	}
}

// Bankroll tracks the trading account balance used for position sizing.
type Bankroll struct {
	TotalBalance     float64
	AvailableBalance float64
	RiskPct          float64
}
