// Package backtest implements the deterministic candle-replay harness
// named by §2's component table ("Backtest harness — 10%") but not
// spelled out as its own [MODULE] in spec.md's body. Grounded on the
// teacher's pkg/backtesting (download/CSV replay shape) and
// pkg/order/trade_summary.go (summary statistics), the harness reuses
// strategy.Machine and position.Manager unmodified against a simulated
// exchange so the live and replay paths share one decision engine and
// one PnL formula.
package backtest

import (
	"context"

	"github.com/schollz/progressbar/v3"

	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/position"
	"github.com/raykavin/perpbot/strategy"
)

// Config carries the parameters of one replay run.
type Config struct {
	Symbol           string
	InitialBalance   float64
	RiskPct          float64
	MaxDrawdownPct   float64
	MaxTradesPerHour int
	SlippageBps      float64 // unfavorable price adjustment applied to every simulated fill
	Strategy         strategy.Config
	ShowProgress     bool
}

// Harness replays a historical candle series through a fresh
// strategy.Machine and position.Manager pair, simulating stop-loss
// breaches intra-candle against high/low the way the live probe feed
// does against real-time ticks.
type Harness struct {
	cfg     Config
	exch    *simExchange
	manager *position.Manager
	machine *strategy.Machine
	log     core.Logger
}

// New constructs a Harness with its own isolated manager/machine pair,
// so concurrent backtests never share state.
func New(cfg Config, log core.Logger) *Harness {
	exch := newSimExchange(cfg.Symbol)
	manager := position.New(exch, nil, nil, log, core.Bankroll{
		TotalBalance:     cfg.InitialBalance,
		AvailableBalance: cfg.InitialBalance,
	}, position.Config{
		RiskPct:          cfg.RiskPct,
		MaxDrawdownPct:   cfg.MaxDrawdownPct,
		MaxTradesPerHour: cfg.MaxTradesPerHour,
	})
	return &Harness{
		cfg:     cfg,
		exch:    exch,
		manager: manager,
		machine: strategy.New(cfg.Strategy),
		log:     log,
	}
}

// Result is the outcome of one replay.
type Result struct {
	Trades       []core.ClosedTrade
	Summary      Summary
	FinalBalance float64
}

// slip adjusts a fill price against the position direction: buys fill
// worse (higher), sells fill worse (lower), by cfg.SlippageBps.
func (h *Harness) slip(price float64, isBuy bool) float64 {
	if h.cfg.SlippageBps == 0 {
		return price
	}
	adj := price * h.cfg.SlippageBps / 10000
	if isBuy {
		return price + adj
	}
	return price - adj
}

// Run drives candles through the machine in order, opening/closing
// positions through the manager exactly as the live feed loop's
// handlePrimaryCandle/dispatchSignal would, plus an intra-candle
// stop-loss check against each candle's high/low before the machine
// ever sees the close. Candles must already be closed and
// chronologically ordered; the caller (cmd/perpbot's backtest
// subcommand) is responsible for that via exchange.HistoricalCandles.
func (h *Harness) Run(ctx context.Context, candles []core.Candle) (Result, error) {
	var bar *progressbar.ProgressBar
	if h.cfg.ShowProgress {
		bar = progressbar.Default(int64(len(candles)), "replaying candles")
	}

	for _, c := range candles {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if pos, open := h.manager.Position(h.cfg.Symbol); open {
			if breached, exitPx := stopLossBreached(pos, c); breached {
				exitPx = h.slip(exitPx, pos.Side == core.SideShort)
				if _, err := h.manager.ClosePosition(ctx, h.cfg.Symbol, exitPx); err != nil {
					h.log.WithError(err).Warn("backtest: forced stop-loss close failed")
				}
				h.machine.ForceExit()
			}
		}

		sig := h.machine.Update(c.High, c.Low, c.Close)
		if err := h.dispatch(ctx, sig, c.Close); err != nil {
			h.log.WithError(err).Warn("backtest: signal dispatch failed")
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if pos, open := h.manager.Position(h.cfg.Symbol); open {
		last := candles[len(candles)-1]
		exitPx := h.slip(last.Close, pos.Side == core.SideShort)
		if _, err := h.manager.ClosePosition(ctx, h.cfg.Symbol, exitPx); err != nil {
			h.log.WithError(err).Warn("backtest: final mark-to-market close failed")
		}
	}

	trades := h.manager.ClosedTrades()
	stats := h.manager.GetStats()
	return Result{
		Trades:       trades,
		Summary:      Summarize(h.cfg.Symbol, trades),
		FinalBalance: stats.TotalBalance,
	}, nil
}

// stopLossBreached mirrors the probe feed's intra-candle exit check
// but against the replayed candle's extremes instead of live ticks.
func stopLossBreached(pos core.Position, c core.Candle) (bool, float64) {
	if pos.Side == core.SideLong && c.Low <= pos.StopLossPrice {
		return true, pos.StopLossPrice
	}
	if pos.Side == core.SideShort && c.High >= pos.StopLossPrice {
		return true, pos.StopLossPrice
	}
	return false, 0
}

func (h *Harness) dispatch(ctx context.Context, sig core.Signal, price float64) error {
	switch {
	case sig.IsEntry():
		return h.openFromSignal(ctx, sig, price)
	case sig.IsExit():
		pos, open := h.manager.Position(h.cfg.Symbol)
		if !open {
			return nil
		}
		exitIsBuy := pos.Side == core.SideShort
		_, err := h.manager.ClosePosition(ctx, h.cfg.Symbol, h.slip(price, exitIsBuy))
		return err
	default:
		return nil
	}
}

func (h *Harness) openFromSignal(ctx context.Context, sig core.Signal, price float64) error {
	bb, _, _, ready := h.machine.Snapshot()
	if !ready {
		return nil
	}

	switch sig {
	case core.SignalBuyRange, core.SignalBuyTrend:
		entry := h.slip(price, true)
		stopLoss := bb.Lower * 0.98
		_, err := h.manager.OpenLong(ctx, h.cfg.Symbol, entry, stopLoss)
		return err
	case core.SignalSellShort:
		entry := h.slip(price, false)
		stopLoss := bb.Upper * 1.02
		_, err := h.manager.OpenShort(ctx, h.cfg.Symbol, entry, stopLoss)
		return err
	default:
		return nil
	}
}
