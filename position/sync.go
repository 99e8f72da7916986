package position

import (
	"context"
	"fmt"
	"time"

	"github.com/raykavin/perpbot/core"
)

// SyncFromExchange reconciles in-memory state with the venue's
// reported open positions, per spec.md §4.3's "Sync" recovery path:
// positions the exchange reports but we don't track locally are
// adopted as Managed; positions we track but the exchange no longer
// reports are dropped (assumed closed out-of-band, e.g. liquidation).
func (m *Manager) SyncFromExchange(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	remote, err := m.exchange.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetching open positions for sync: %w", err)
	}

	remoteBySymbol := make(map[string]core.ExchangePosition, len(remote))
	for _, r := range remote {
		remoteBySymbol[r.Symbol] = r
	}

	for symbol := range m.positions {
		if _, stillOpen := remoteBySymbol[symbol]; !stillOpen {
			m.log.WithField("symbol", symbol).Warn("position closed out-of-band, dropping local state")
			delete(m.positions, symbol)
		}
	}

	for symbol, r := range remoteBySymbol {
		if _, tracked := m.positions[symbol]; tracked {
			continue
		}
		slPrice, slPct := estimateStopLoss(r.Side, r.Entry)
		pos := &core.Position{
			Symbol:        symbol,
			Side:          r.Side,
			EntryPrice:    r.Entry,
			EntryTime:     time.Now(),
			Size:          r.Size,
			Notional:      r.Entry * r.Size,
			Collateral:    r.Entry * r.Size,
			StopLossPrice: slPrice,
			StopLossPct:   slPct,
			Managed:       true,
		}
		m.log.WithField("symbol", symbol).Info("adopted untracked exchange position on sync, SL set to conservative 5% estimate")
		m.positions[symbol] = pos
	}

	return nil
}

// estimateStopLoss implements spec.md §4.3/§6's conservative 5%
// stop-loss estimate used whenever a position is adopted without a
// known real stop distance: 5% below entry for a long, 5% above for a
// short, keeping the safe-side invariant core.Position.ValidStopLoss checks.
func estimateStopLoss(side core.Side, entry float64) (price, pct float64) {
	const estimatePct = 5.0
	if side == core.SideLong {
		return entry * 0.95, estimatePct
	}
	return entry * 1.05, estimatePct
}

// RecoverOpenPositions implements spec.md §6's restart recovery path:
// any durable row with status OPEN is reconstructed in memory with the
// same conservative 5% SL estimate SyncFromExchange uses for adopted
// positions, ahead of the exchange-based sync that follows it.
func (m *Manager) RecoverOpenPositions() error {
	if m.store == nil {
		return nil
	}

	rows, err := m.store.FetchOpenPositions()
	if err != nil {
		return fmt.Errorf("fetching open positions from store: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range rows {
		if _, tracked := m.positions[row.Symbol]; tracked {
			continue
		}
		slPrice, slPct := estimateStopLoss(row.Side, row.EntryPrice)
		pos := &core.Position{
			PersistenceID: row.ID,
			Symbol:        row.Symbol,
			Side:          row.Side,
			EntryPrice:    row.EntryPrice,
			EntryTime:     row.CreatedAt,
			Size:          row.Size,
			Notional:      row.EntryPrice * row.Size,
			Collateral:    row.EntryPrice * row.Size,
			StopLossPrice: slPrice,
			StopLossPct:   slPct,
			Managed:       true,
		}
		m.log.WithField("symbol", row.Symbol).Info("recovered open position from durable store on restart")
		m.positions[row.Symbol] = pos
	}

	return nil
}

// RefreshBankroll updates the manager's bankroll snapshot from the
// exchange's reported account balance.
func (m *Manager) RefreshBankroll(ctx context.Context) error {
	bal, err := m.exchange.AccountBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetching account balance: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bankroll.TotalBalance = bal
	m.bankroll.AvailableBalance = bal
	return nil
}
