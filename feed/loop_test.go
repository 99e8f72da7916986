package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/position"
	"github.com/raykavin/perpbot/strategy"
)

type fakeExchange struct {
	historical []core.Candle
	balance    float64
}

func (f *fakeExchange) PlaceLimitOrder(ctx context.Context, symbol string, isBuy bool, px, sz float64) (string, error) {
	return "oid", nil
}
func (f *fakeExchange) PlaceStopLossOrder(ctx context.Context, symbol string, isBuy bool, triggerPx, sz float64) (string, error) {
	return "sl-oid", nil
}
func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }
func (f *fakeExchange) UpdateLeverage(ctx context.Context, symbol string, leverage int, isCross bool) error {
	return nil
}
func (f *fakeExchange) AccountBalance(ctx context.Context) (float64, error) { return f.balance, nil }
func (f *fakeExchange) OpenPositions(ctx context.Context) ([]core.ExchangePosition, error) {
	return nil, nil
}
func (f *fakeExchange) UserFills(ctx context.Context, since time.Time) ([]core.Fill, error) {
	return nil, nil
}
func (f *fakeExchange) UserFunding(ctx context.Context, since time.Time) ([]core.FundingEvent, error) {
	return nil, nil
}
func (f *fakeExchange) CandleFeed(ctx context.Context, symbol, interval string) (<-chan core.Candle, <-chan error) {
	c := make(chan core.Candle)
	e := make(chan error)
	close(c)
	return c, e
}
func (f *fakeExchange) HistoricalCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error) {
	return f.historical, nil
}

type noopLogger struct{}

func (noopLogger) WithField(string, any) core.Logger     { return noopLogger{} }
func (noopLogger) WithFields(map[string]any) core.Logger { return noopLogger{} }
func (noopLogger) WithError(error) core.Logger            { return noopLogger{} }
func (noopLogger) Debug(args ...any)                       {}
func (noopLogger) Info(args ...any)                        {}
func (noopLogger) Warn(args ...any)                        {}
func (noopLogger) Error(args ...any)                       {}
func (noopLogger) Fatal(args ...any)                       {}
func (noopLogger) Debugf(format string, args ...any)       {}
func (noopLogger) Infof(format string, args ...any)        {}
func (noopLogger) Warnf(format string, args ...any)        {}
func (noopLogger) Errorf(format string, args ...any)       {}
func (noopLogger) Fatalf(format string, args ...any)       {}

func strategyCfg() strategy.Config {
	return strategy.Config{
		ADXPeriod:        14,
		ADXThreshold:     25,
		BollingerPeriod:  20,
		BollingerK:       2,
		SuperTrendPeriod: 10,
		SuperTrendMult:   3,
		StopLossBuffer:   0.05,
	}
}

func flatCandles(n int, price float64, start time.Time, step time.Duration) []core.Candle {
	out := make([]core.Candle, 0, n)
	for i := 0; i < n; i++ {
		open := start.Add(time.Duration(i) * step)
		out = append(out, core.Candle{
			Symbol: "BTC", Interval: "1h",
			OpenTime: open, CloseTime: open.Add(step),
			Open: price, High: price, Low: price, Close: price,
			Closed: true,
		})
	}
	return out
}

func TestLoop_Warmup_FeedsMachineAndSetsLastProcessed(t *testing.T) {
	start := time.Now().Add(-30 * time.Hour)
	ex := &fakeExchange{historical: flatCandles(28, 100, start, time.Hour), balance: 1000}

	m := strategy.New(strategyCfg())
	mgr := position.New(ex, nil, nil, noopLogger{}, core.Bankroll{TotalBalance: 1000, AvailableBalance: 1000}, position.Config{RiskPct: 1, MaxDrawdownPct: 20, MaxTradesPerHour: 10})

	l := New(Config{
		Symbol: "BTC", PrimaryInterval: "1h", ProbeInterval: "5m",
		WarmupCandles: 28, Leverage: 5, WatchdogInterval: time.Hour, MaxOrderRetries: 1,
	}, ex, mgr, m, nil, noopLogger{})

	require.NoError(t, l.warmup(context.Background()))
	assert.Equal(t, core.StateNone, m.State())
	assert.False(t, l.lastProcessedTs.IsZero())
}

func TestLoop_ExecuteSignal_HoldIsNoop(t *testing.T) {
	ex := &fakeExchange{balance: 1000}
	m := strategy.New(strategyCfg())
	mgr := position.New(ex, nil, nil, noopLogger{}, core.Bankroll{TotalBalance: 1000, AvailableBalance: 1000}, position.Config{RiskPct: 1, MaxDrawdownPct: 20, MaxTradesPerHour: 10})
	l := New(Config{Symbol: "BTC", PrimaryInterval: "1h", ProbeInterval: "5m", MaxOrderRetries: 1, SettleDelay: time.Millisecond}, ex, mgr, m, nil, noopLogger{})

	l.executeSignal(context.Background(), core.SignalHold, 100)
	stats := mgr.GetStats()
	assert.Equal(t, 0, stats.OpenPositions)
}

func TestLoop_StartStopStatus(t *testing.T) {
	ex := &fakeExchange{historical: flatCandles(2, 100, time.Now().Add(-2*time.Hour), time.Hour), balance: 1000}
	m := strategy.New(strategyCfg())
	mgr := position.New(ex, nil, nil, noopLogger{}, core.Bankroll{TotalBalance: 1000, AvailableBalance: 1000}, position.Config{RiskPct: 1, MaxDrawdownPct: 20, MaxTradesPerHour: 10})
	l := New(Config{Symbol: "BTC", PrimaryInterval: "1h", ProbeInterval: "5m", WarmupCandles: 2, Leverage: 5, WatchdogInterval: time.Hour, MaxOrderRetries: 1}, ex, mgr, m, nil, noopLogger{})

	assert.Equal(t, "stopped", l.Status())
	l.Start()
	assert.Eventually(t, func() bool { return l.Status() == "stopped" }, time.Second, time.Millisecond, "loop should exit once both closed candle channels drain")
}
