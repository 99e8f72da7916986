package position

import (
	"context"
	"fmt"
	"time"

	"github.com/raykavin/perpbot/core"
)

const takerFeeRate = 0.00035 // venue taker fee, applied to both entry and exit notional

// OpenLong opens a long position sized per spec.md §4.3, places the
// entry limit order and its protective stop-loss, and persists the
// resulting position.
func (m *Manager) OpenLong(ctx context.Context, symbol string, entry, stopLoss float64) (*core.Position, error) {
	return m.open(ctx, symbol, core.SideLong, entry, stopLoss)
}

// OpenShort is OpenLong's mirror for a short entry.
func (m *Manager) OpenShort(ctx context.Context, symbol string, entry, stopLoss float64) (*core.Position, error) {
	return m.open(ctx, symbol, core.SideShort, entry, stopLoss)
}

func (m *Manager) open(ctx context.Context, symbol string, side core.Side, entry, stopLoss float64) (*core.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSafetyLimitsLocked(); err != nil {
		return nil, err
	}

	if _, exists := m.positions[symbol]; exists {
		return nil, fmt.Errorf("%s: %w", symbol, core.ErrPositionExists)
	}

	notional, size := sizePosition(m.bankroll.AvailableBalance, m.bankroll.RiskPct, entry, stopLoss)

	isBuy := side == core.SideLong
	oid, err := m.exchange.PlaceLimitOrder(ctx, symbol, isBuy, entry, size)
	if err != nil {
		return nil, fmt.Errorf("placing entry order for %s: %w", symbol, err)
	}

	if _, err := m.exchange.PlaceStopLossOrder(ctx, symbol, !isBuy, stopLoss, size); err != nil {
		m.log.WithError(err).WithField("symbol", symbol).Error("stop-loss placement failed after entry filled")
	}

	// spec.md §3's bankroll invariant: available_balance strictly
	// decreases on open by the locked collateral, never by more than
	// what was actually available.
	collateral := notional
	if collateral > m.bankroll.AvailableBalance {
		collateral = m.bankroll.AvailableBalance
	}
	m.bankroll.AvailableBalance -= collateral

	pos := &core.Position{
		Symbol:        symbol,
		Side:          side,
		EntryPrice:    entry,
		EntryTime:     time.Now(),
		Size:          size,
		Notional:      notional,
		Collateral:    collateral,
		StopLossPrice: stopLoss,
		StopLossPct:   abs(entry-stopLoss) / entry * 100,
		EntryFee:      notional * takerFeeRate,
	}

	if m.store != nil {
		id, err := m.store.SavePosition(toRow(pos))
		if err != nil {
			m.log.WithError(err).Warn("persisting new position failed")
		} else {
			pos.PersistenceID = id
		}
	}

	m.positions[symbol] = pos

	if m.notifier != nil {
		m.notifier.Notify(fmt.Sprintf("opened %s %s @ %.4f size=%.6f (order %s)", side, symbol, entry, size, oid))
	}

	return pos, nil
}

// ClosePosition closes the open position for symbol at the given exit
// price, recording the unified net-PnL ledger entry.
func (m *Manager) ClosePosition(ctx context.Context, symbol string, exitPrice float64) (core.ClosedTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return core.ClosedTrade{}, fmt.Errorf("%s: %w", symbol, core.ErrNoOpenPosition)
	}

	isBuy := pos.Side == core.SideShort // closing reverses direction
	if _, err := m.exchange.PlaceLimitOrder(ctx, symbol, isBuy, exitPrice, pos.Size); err != nil {
		return core.ClosedTrade{}, fmt.Errorf("placing exit order for %s: %w", symbol, err)
	}

	exitFee := exitPrice * pos.Size * takerFeeRate
	trade := core.NewClosedTrade(*pos, exitPrice, time.Now(), exitFee)

	if m.store != nil && pos.PersistenceID != "" {
		row := toRow(pos)
		row.Status = core.PositionClosed
		now := time.Now()
		row.ClosedAt = &now
		row.ExitPrice = &exitPrice
		row.Pnl = &trade.NetPnl
		if err := m.store.UpdatePosition(pos.PersistenceID, row); err != nil {
			m.log.WithError(err).Warn("persisting closed position failed")
		}
	}

	delete(m.positions, symbol)
	m.closed = append(m.closed, trade)
	m.lastClosedIdx[symbol] = len(m.closed) - 1
	m.bankroll.TotalBalance += trade.NetPnl
	m.bankroll.AvailableBalance += pos.Collateral + trade.NetPnl
	m.tradeTimestamps = append(m.tradeTimestamps, time.Now())

	if m.notifier != nil {
		m.notifier.Notify(fmt.Sprintf("closed %s %s @ %.4f net_pnl=%.4f", pos.Side, symbol, exitPrice, trade.NetPnl))
	}

	return trade, nil
}

// UpdateCurrentPnl refreshes the open position's unrealized PnL fields
// against a new mark price. No-op if no position is open for symbol.
func (m *Manager) UpdateCurrentPnl(symbol string, mark float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return
	}
	pos.UnrealizedPnl, pos.UnrealizedPnlPct = pos.PnL(mark)
}

// Position returns the open position for symbol, if any.
func (m *Manager) Position(symbol string) (core.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return core.Position{}, false
	}
	return *pos, true
}

// RecordFunding applies a funding payment/charge to the open position,
// accumulated into FundingPaid until the position closes.
func (m *Manager) RecordFunding(symbol string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pos, ok := m.positions[symbol]; ok {
		pos.FundingPaid += amount
	}
}

// Stats summarizes realized performance for reporting/notification.
type Stats struct {
	OpenPositions int
	ClosedTrades  int
	TotalNetPnl   float64
	TotalBalance  float64
}

// ClosedTrades returns a copy of the full realized-trade ledger, used by
// the backtest harness's summary statistics.
func (m *Manager) ClosedTrades() []core.ClosedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.ClosedTrade, len(m.closed))
	copy(out, m.closed)
	return out
}

// GetStats returns a snapshot of the manager's realized and current state.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total float64
	for _, t := range m.closed {
		total += t.NetPnl
	}
	return Stats{
		OpenPositions: len(m.positions),
		ClosedTrades:  len(m.closed),
		TotalNetPnl:   total,
		TotalBalance:  m.bankroll.TotalBalance,
	}
}

func toRow(p *core.Position) core.PositionRow {
	return core.PositionRow{
		ID:         p.PersistenceID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		Size:       p.Size,
		Status:     core.PositionOpen,
		CreatedAt:  p.EntryTime,
	}
}
