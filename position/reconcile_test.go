package position

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/perpbot/core"
)

type fillExchange struct {
	fakeExchange
	fills   []core.Fill
	funding []core.FundingEvent
}

func (f *fillExchange) UserFills(ctx context.Context, since time.Time) ([]core.Fill, error) {
	return f.fills, nil
}

func (f *fillExchange) UserFunding(ctx context.Context, since time.Time) ([]core.FundingEvent, error) {
	return f.funding, nil
}

// TestManager_ReconcileEntry pins spec.md §4.4's entry reconciliation:
// the real fill price/fee replace the provisional ones and the
// stop-loss is recomputed at the same protective distance.
func TestManager_ReconcileEntry(t *testing.T) {
	ex := &fillExchange{fakeExchange: fakeExchange{balance: 1000}}
	m := New(ex, nil, nil, noopLogger{}, core.Bankroll{TotalBalance: 1000, AvailableBalance: 1000}, Config{RiskPct: 1, MaxDrawdownPct: 20, MaxTradesPerHour: 10})

	pos, err := m.OpenLong(context.Background(), "BTC", 100, 98) // 2% SL distance
	require.NoError(t, err)
	require.InDelta(t, 2, pos.StopLossPct, 1e-9)

	ex.fills = []core.Fill{{Symbol: "BTC", Price: 101, Fee: 0.07, Time: pos.EntryTime.Add(time.Second)}}
	require.NoError(t, m.ReconcileEntry(context.Background(), "BTC"))

	updated, ok := m.Position("BTC")
	require.True(t, ok)
	assert.InDelta(t, 101, updated.EntryPrice, 1e-9)
	assert.InDelta(t, 0.07, updated.EntryFee, 1e-9)
	assert.InDelta(t, 101*0.98, updated.StopLossPrice, 1e-9)
}

// TestManager_ReconcileExit pins spec.md §4.4's exit reconciliation:
// the real exit fill corrects the just-closed trade and adjusts the
// bankroll by only the delta against the provisional ClosePosition credit.
func TestManager_ReconcileExit(t *testing.T) {
	ex := &fillExchange{fakeExchange: fakeExchange{balance: 1000}}
	m := New(ex, nil, nil, noopLogger{}, core.Bankroll{TotalBalance: 1000, AvailableBalance: 1000}, Config{RiskPct: 1, MaxDrawdownPct: 20, MaxTradesPerHour: 10})

	pos, err := m.OpenLong(context.Background(), "BTC", 100, 98)
	require.NoError(t, err)
	entryTime := pos.EntryTime

	provisional, err := m.ClosePosition(context.Background(), "BTC", 105)
	require.NoError(t, err)
	balanceAfterClose := m.bankroll.AvailableBalance

	ex.fills = []core.Fill{{Symbol: "BTC", Price: 106, Fee: 0.04, Time: entryTime.Add(time.Minute)}}
	require.NoError(t, m.ReconcileExit(context.Background(), "BTC", entryTime))

	trades := m.ClosedTrades()
	require.Len(t, trades, 1)
	corrected := trades[0]
	assert.InDelta(t, 106, corrected.ExitPrice, 1e-9)
	assert.NotEqual(t, provisional.NetPnl, corrected.NetPnl)
	assert.InDelta(t, balanceAfterClose+(corrected.NetPnl-provisional.NetPnl), m.bankroll.AvailableBalance, 1e-9)
}

func TestManager_ReconcileFunding(t *testing.T) {
	ex := &fillExchange{fakeExchange: fakeExchange{balance: 1000}}
	m := New(ex, nil, nil, noopLogger{}, core.Bankroll{TotalBalance: 1000, AvailableBalance: 1000}, Config{RiskPct: 1, MaxDrawdownPct: 20, MaxTradesPerHour: 10})

	pos, err := m.OpenLong(context.Background(), "BTC", 100, 98)
	require.NoError(t, err)

	ex.funding = []core.FundingEvent{
		{Symbol: "BTC", Amount: -0.5, Time: pos.EntryTime.Add(time.Minute)},
		{Symbol: "ETH", Amount: 10, Time: pos.EntryTime.Add(time.Minute)}, // different symbol, ignored
	}
	_, err = m.ReconcileFunding(context.Background(), "BTC", pos.EntryTime)
	require.NoError(t, err)

	updated, ok := m.Position("BTC")
	require.True(t, ok)
	assert.InDelta(t, -0.5, updated.FundingPaid, 1e-9)
}
