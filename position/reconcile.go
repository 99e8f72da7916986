package position

import (
	"context"
	"fmt"
	"time"

	"github.com/raykavin/perpbot/core"
)

// ReconcileEntry implements spec.md §4.4's entry-signal execution step:
// after the settle delay, fetch recent fills to discover the real entry
// price and fee, rewrite the local position with that price, and
// recompute the stop-loss at the same protective distance against the
// corrected entry. A no-op if no fill has posted yet for symbol.
func (m *Manager) ReconcileEntry(ctx context.Context, symbol string) error {
	m.mu.Lock()
	pos, ok := m.positions[symbol]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	since := pos.EntryTime.Add(-time.Second)
	m.mu.Unlock()

	fills, err := m.exchange.UserFills(ctx, since)
	if err != nil {
		return fmt.Errorf("fetching fills to reconcile entry for %s: %w", symbol, err)
	}

	fill, found := latestFill(fills, symbol)
	if !found {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok = m.positions[symbol]
	if !ok {
		return nil
	}

	pos.EntryPrice = fill.Price
	pos.EntryFee = fill.Fee
	if pos.Side == core.SideLong {
		pos.StopLossPrice = fill.Price * (1 - pos.StopLossPct/100)
	} else {
		pos.StopLossPrice = fill.Price * (1 + pos.StopLossPct/100)
	}

	if m.store != nil && pos.PersistenceID != "" {
		if err := m.store.UpdatePosition(pos.PersistenceID, toRow(pos)); err != nil {
			m.log.WithError(err).Warn("persisting reconciled entry failed")
		}
	}

	m.log.WithFields(map[string]any{
		"symbol":      symbol,
		"entry_price": pos.EntryPrice,
		"entry_fee":   pos.EntryFee,
	}).Info("reconciled entry against real fill")
	return nil
}

// ReconcileExit implements spec.md §4.4's exit-signal execution step:
// after the settle delay, fetch the real exit fill (with closed_pnl
// when the venue reports it) and rewrite the most recently closed
// trade for symbol using the unified net-PnL formula, adjusting the
// bankroll by only the delta so the provisional credit ClosePosition
// already applied isn't double-counted.
func (m *Manager) ReconcileExit(ctx context.Context, symbol string, entryTime time.Time) error {
	fills, err := m.exchange.UserFills(ctx, entryTime)
	if err != nil {
		return fmt.Errorf("fetching fills to reconcile exit for %s: %w", symbol, err)
	}

	fill, found := latestFill(fills, symbol)
	if !found {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.lastClosedIdx[symbol]
	if !ok || idx < 0 || idx >= len(m.closed) {
		return nil
	}
	trade := m.closed[idx]

	trade.ExitPrice = fill.Price
	trade.ExitFee = fill.Fee
	trade.GrossPnl, trade.PnlPct = core.Position{Side: trade.Side, EntryPrice: trade.EntryPrice, Size: trade.Size}.PnL(fill.Price)
	if fill.ClosedPnl != 0 {
		trade.GrossPnl = fill.ClosedPnl
	}

	oldNet := trade.NetPnl
	trade.NetPnl = trade.GrossPnl - trade.EntryFee - trade.ExitFee + trade.FundingPaid
	delta := trade.NetPnl - oldNet

	m.bankroll.TotalBalance += delta
	m.bankroll.AvailableBalance += delta
	m.closed[idx] = trade

	if m.store != nil && trade.PersistenceID != "" {
		row := core.PositionRow{
			ID:         trade.PersistenceID,
			Symbol:     trade.Symbol,
			Side:       trade.Side,
			EntryPrice: trade.EntryPrice,
			Size:       trade.Size,
			Status:     core.PositionClosed,
			CreatedAt:  trade.EntryTime,
			ClosedAt:   &trade.ExitTime,
			ExitPrice:  &trade.ExitPrice,
			Pnl:        &trade.NetPnl,
		}
		if err := m.store.UpdatePosition(trade.PersistenceID, row); err != nil {
			m.log.WithError(err).Warn("persisting reconciled exit failed")
		}
	}

	m.log.WithFields(map[string]any{
		"symbol":  symbol,
		"net_pnl": trade.NetPnl,
		"delta":   delta,
	}).Info("reconciled exit against real fill and funding")
	return nil
}

// ReconcileFunding fetches funding events posted since the last check
// and accumulates them onto the open position via RecordFunding, per
// spec.md §4.4's "net_pnl = realised − entry_fee − exit_fee + funding".
// Wiring this call is what keeps FundingPaid correct by the time the
// position closes, rather than trying to reconstruct the whole
// holding period's funding in one shot at exit.
func (m *Manager) ReconcileFunding(ctx context.Context, symbol string, since time.Time) (time.Time, error) {
	events, err := m.exchange.UserFunding(ctx, since)
	if err != nil {
		return since, fmt.Errorf("fetching funding events for %s: %w", symbol, err)
	}

	for _, e := range events {
		if e.Symbol == symbol {
			m.RecordFunding(e.Symbol, e.Amount)
		}
	}

	return time.Now(), nil
}

func latestFill(fills []core.Fill, symbol string) (core.Fill, bool) {
	var best core.Fill
	found := false
	for _, f := range fills {
		if f.Symbol != symbol {
			continue
		}
		if !found || f.Time.After(best.Time) {
			best = f
			found = true
		}
	}
	return best, found
}
