package position

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/perpbot/core"
)

type fakeExchange struct {
	nextOID   int
	positions []core.ExchangePosition
	balance   float64
}

func (f *fakeExchange) PlaceLimitOrder(ctx context.Context, symbol string, isBuy bool, px, sz float64) (string, error) {
	f.nextOID++
	return "oid", nil
}
func (f *fakeExchange) PlaceStopLossOrder(ctx context.Context, symbol string, isBuy bool, triggerPx, sz float64) (string, error) {
	f.nextOID++
	return "sl-oid", nil
}
func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }
func (f *fakeExchange) UpdateLeverage(ctx context.Context, symbol string, leverage int, isCross bool) error {
	return nil
}
func (f *fakeExchange) AccountBalance(ctx context.Context) (float64, error) { return f.balance, nil }
func (f *fakeExchange) OpenPositions(ctx context.Context) ([]core.ExchangePosition, error) {
	return f.positions, nil
}
func (f *fakeExchange) UserFills(ctx context.Context, since time.Time) ([]core.Fill, error) {
	return nil, nil
}
func (f *fakeExchange) UserFunding(ctx context.Context, since time.Time) ([]core.FundingEvent, error) {
	return nil, nil
}
func (f *fakeExchange) CandleFeed(ctx context.Context, symbol, interval string) (<-chan core.Candle, <-chan error) {
	return nil, nil
}
func (f *fakeExchange) HistoricalCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error) {
	return nil, nil
}

type noopLogger struct{}

func (noopLogger) WithField(string, any) core.Logger             { return noopLogger{} }
func (noopLogger) WithFields(map[string]any) core.Logger         { return noopLogger{} }
func (noopLogger) WithError(error) core.Logger                   { return noopLogger{} }
func (noopLogger) Debug(args ...any)                              {}
func (noopLogger) Info(args ...any)                               {}
func (noopLogger) Warn(args ...any)                               {}
func (noopLogger) Error(args ...any)                              {}
func (noopLogger) Fatal(args ...any)                              {}
func (noopLogger) Debugf(format string, args ...any)              {}
func (noopLogger) Infof(format string, args ...any)               {}
func (noopLogger) Warnf(format string, args ...any)               {}
func (noopLogger) Errorf(format string, args ...any)              {}
func (noopLogger) Fatalf(format string, args ...any)              {}

func newTestManager(available float64, cfg Config) *Manager {
	ex := &fakeExchange{balance: available}
	return New(ex, nil, nil, noopLogger{}, core.Bankroll{TotalBalance: available, AvailableBalance: available}, cfg)
}

// TestSizePosition_Floor pins scenario #6 from spec.md §8.
func TestSizePosition_Floor(t *testing.T) {
	notional, _ := sizePosition(50, 1, 100, 98) // SL=2%
	assert.InDelta(t, 25, notional, 1e-9)

	notional, _ = sizePosition(50, 1, 100, 99.9) // SL=0.1% -> N=$500 capped to $50
	assert.InDelta(t, 50, notional, 1e-9)

	notional, _ = sizePosition(8, 1, 100, 50) // any SL on tiny bankroll floors to $10
	assert.InDelta(t, 10, notional, 1e-9)
}

func TestManager_OpenAndClose(t *testing.T) {
	m := newTestManager(1000, Config{RiskPct: 1, MaxDrawdownPct: 20, MaxTradesPerHour: 100})

	pos, err := m.OpenLong(context.Background(), "BTC", 100, 98)
	require.NoError(t, err)
	assert.Equal(t, core.SideLong, pos.Side)

	_, err = m.OpenLong(context.Background(), "BTC", 100, 98)
	assert.ErrorIs(t, err, core.ErrPositionExists)

	trade, err := m.ClosePosition(context.Background(), "BTC", 105)
	require.NoError(t, err)
	assert.Greater(t, trade.NetPnl, 0.0)

	_, err = m.ClosePosition(context.Background(), "BTC", 105)
	assert.ErrorIs(t, err, core.ErrNoOpenPosition)
}

// TestManager_KillSwitchFrequency pins scenario #3 from spec.md §8:
// with max_trades_per_hour=3, a fourth entry attempt within the hour
// must fail.
func TestManager_KillSwitchFrequency(t *testing.T) {
	m := newTestManager(1000, Config{RiskPct: 1, MaxDrawdownPct: 100, MaxTradesPerHour: 3})

	symbols := []string{"A", "B", "C"}
	for _, s := range symbols {
		_, err := m.OpenLong(context.Background(), s, 100, 98)
		require.NoError(t, err)
		_, err = m.ClosePosition(context.Background(), s, 100)
		require.NoError(t, err)
	}

	_, err := m.OpenLong(context.Background(), "D", 100, 98)
	require.Error(t, err)
	var tradingErr *core.TradingError
	require.ErrorAs(t, err, &tradingErr)
	assert.Equal(t, core.KindSafetyLimit, tradingErr.Kind)
}

func TestManager_KillSwitchDrawdown(t *testing.T) {
	m := newTestManager(1000, Config{RiskPct: 1, MaxDrawdownPct: 5, MaxTradesPerHour: 100})
	m.bankroll.TotalBalance = 900 // 10% drawdown, exceeds 5% max

	_, err := m.OpenLong(context.Background(), "BTC", 100, 98)
	require.Error(t, err)
}

func TestManager_SyncFromExchange_AdoptsAndDrops(t *testing.T) {
	ex := &fakeExchange{positions: []core.ExchangePosition{
		{Symbol: "ETH", Size: 2, Entry: 3000, Side: core.SideLong},
	}}
	m := New(ex, nil, nil, noopLogger{}, core.Bankroll{TotalBalance: 1000, AvailableBalance: 1000}, Config{RiskPct: 1, MaxDrawdownPct: 20, MaxTradesPerHour: 10})

	require.NoError(t, m.SyncFromExchange(context.Background()))
	pos, ok := m.Position("ETH")
	require.True(t, ok)
	assert.True(t, pos.Managed)
	assert.True(t, pos.ValidStopLoss())
	assert.InDelta(t, 2850, pos.StopLossPrice, 1e-9) // 3000 * 0.95

	ex.positions = nil
	require.NoError(t, m.SyncFromExchange(context.Background()))
	_, ok = m.Position("ETH")
	assert.False(t, ok)
}

// TestManager_BankrollCollateral pins spec.md §3's invariant: opening
// locks collateral out of available_balance, closing restores it plus
// net PnL, and total_balance only moves by realized PnL.
func TestManager_BankrollCollateral(t *testing.T) {
	m := newTestManager(1000, Config{RiskPct: 1, MaxDrawdownPct: 20, MaxTradesPerHour: 100})

	pos, err := m.OpenLong(context.Background(), "BTC", 100, 98) // 1% risk, 2% SL -> notional=500
	require.NoError(t, err)
	assert.InDelta(t, 500, pos.Collateral, 1e-9)
	assert.InDelta(t, 500, m.bankroll.AvailableBalance, 1e-9)
	assert.InDelta(t, 1000, m.bankroll.TotalBalance, 1e-9)

	trade, err := m.ClosePosition(context.Background(), "BTC", 105)
	require.NoError(t, err)
	assert.InDelta(t, 500+pos.Collateral+trade.NetPnl, m.bankroll.AvailableBalance, 1e-9)
	assert.InDelta(t, 1000+trade.NetPnl, m.bankroll.TotalBalance, 1e-9)
}

func TestManager_RecoverOpenPositions(t *testing.T) {
	store := &fakeStore{rows: []core.PositionRow{
		{ID: "p1", Symbol: "SOL", Side: core.SideShort, EntryPrice: 150, Size: 3, Status: core.PositionOpen, CreatedAt: time.Now()},
	}}
	ex := &fakeExchange{}
	m := New(ex, store, nil, noopLogger{}, core.Bankroll{TotalBalance: 1000, AvailableBalance: 1000}, Config{RiskPct: 1, MaxDrawdownPct: 20, MaxTradesPerHour: 10})

	require.NoError(t, m.RecoverOpenPositions())
	pos, ok := m.Position("SOL")
	require.True(t, ok)
	assert.True(t, pos.Managed)
	assert.True(t, pos.ValidStopLoss())
	assert.InDelta(t, 157.5, pos.StopLossPrice, 1e-9) // 150 * 1.05
}

type fakeStore struct {
	rows []core.PositionRow
}

func (f *fakeStore) Log(level, message string, fields map[string]any) error { return nil }
func (f *fakeStore) FetchOpenPositions() ([]core.PositionRow, error)        { return f.rows, nil }
func (f *fakeStore) SavePosition(row core.PositionRow) (string, error)      { return "id", nil }
func (f *fakeStore) UpdatePosition(id string, row core.PositionRow) error   { return nil }
