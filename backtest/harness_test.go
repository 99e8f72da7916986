package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/strategy"
)

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

func testConfig() Config {
	return Config{
		Symbol:           "BTC",
		InitialBalance:   1000,
		RiskPct:          1,
		MaxDrawdownPct:   50,
		MaxTradesPerHour: 1000,
		Strategy: strategy.Config{
			ADXPeriod:        14,
			ADXThreshold:     25,
			BollingerPeriod:  20,
			BollingerK:       2,
			SuperTrendPeriod: 10,
			SuperTrendMult:   3,
			StopLossBuffer:   0.05,
		},
	}
}

func rampCandles(n int, start, step float64, base time.Time, dt time.Duration) []core.Candle {
	out := make([]core.Candle, 0, n)
	p := start
	for i := 0; i < n; i++ {
		open := base.Add(time.Duration(i) * dt)
		out = append(out, core.Candle{
			Symbol: "BTC", Interval: "1h",
			OpenTime: open, CloseTime: open.Add(dt),
			Open: p, High: p * 1.001, Low: p * 0.999, Close: p,
			Closed: true,
		})
		p += step
	}
	return out
}

func TestHarness_Run_NoCandlesReturnsEmptyResult(t *testing.T) {
	h := New(testConfig(), noopLogger{})
	res, err := h.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1000.0, res.FinalBalance)
}

func TestHarness_Run_FlatMarketNeverEntersOrHoldsThroughToEnd(t *testing.T) {
	candles := rampCandles(60, 100, 0, time.Now().Add(-60*time.Hour), time.Hour)
	h := New(testConfig(), noopLogger{})
	res, err := h.Run(context.Background(), candles)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.GreaterOrEqual(t, res.FinalBalance, 0.0)
}

func TestHarness_Run_TrendingMarketClosesAnyOpenPositionAtEnd(t *testing.T) {
	candles := rampCandles(120, 100, 2, time.Now().Add(-120*time.Hour), time.Hour)
	h := New(testConfig(), noopLogger{})
	res, err := h.Run(context.Background(), candles)
	require.NoError(t, err)
	assert.Empty(t, h.manager.GetStats().OpenPositions)
	_ = res
}

func TestStopLossBreached(t *testing.T) {
	longPos := core.Position{Side: core.SideLong, StopLossPrice: 95}
	breached, px := stopLossBreached(longPos, core.Candle{Low: 90, High: 110})
	assert.True(t, breached)
	assert.Equal(t, 95.0, px)

	shortPos := core.Position{Side: core.SideShort, StopLossPrice: 105}
	breached, px = stopLossBreached(shortPos, core.Candle{Low: 90, High: 110})
	assert.True(t, breached)
	assert.Equal(t, 105.0, px)

	safe := core.Position{Side: core.SideLong, StopLossPrice: 80}
	breached, _ = stopLossBreached(safe, core.Candle{Low: 90, High: 110})
	assert.False(t, breached)
}

func TestSummarize_EmptyTrades(t *testing.T) {
	s := Summarize("BTC", nil)
	assert.Equal(t, 0, s.Wins)
	assert.Equal(t, 0, s.Losses)
}

func TestSummarize_ComputesWinLossAndPnl(t *testing.T) {
	trades := []core.ClosedTrade{
		{NetPnl: 10, PnlPct: 5, EntryPrice: 100, Size: 1},
		{NetPnl: -4, PnlPct: -2, EntryPrice: 100, Size: 1},
		{NetPnl: 6, PnlPct: 3, EntryPrice: 100, Size: 1},
	}
	s := Summarize("BTC", trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 66.67, s.WinPct, 0.1)
	assert.InDelta(t, 12, s.TotalNetPnl, 0.0001)
	assert.Contains(t, s.String(), "BTC")
}
