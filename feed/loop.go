// Package feed implements the live trading orchestration loop of
// spec.md §4.4: warmup, reconnecting websocket candle ingestion across
// two intervals (primary + intra-candle probe), the watchdog tick, and
// signal execution. Grounded on the teacher's root bot.go Run/preload
// and candle_processing.go onCandle/processCandle orchestration
// (strategy controllers started per pair, candles pushed through a
// priority queue, OnCandle reacting only to complete candles), fused
// with exchange/binance/futures.go's reconnect-with-backoff websocket
// session loop generalized to the primary/probe multiplexing and the
// watchdog spec.md names.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/indicator"
	"github.com/raykavin/perpbot/position"
	"github.com/raykavin/perpbot/strategy"
)

// Status mirrors the teacher's order.Status values, generalized to the
// loop's own lifecycle rather than the order controller's.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
)

// Config carries the run parameters the loop needs beyond the
// strategy/indicator config already embedded in strategy.Config.
type Config struct {
	Symbol           string
	PrimaryInterval  string
	ProbeInterval    string
	WarmupCandles    int
	Leverage         int
	IsCross          bool
	WatchdogInterval time.Duration
	SettleDelay      time.Duration
	MaxOrderRetries  int
}

// Loop owns one symbol's end-to-end live trading lifecycle.
type Loop struct {
	cfg      Config
	exchange core.Exchange
	manager  *position.Manager
	machine  *strategy.Machine
	notifier core.Notifier
	log      core.Logger

	primaryGuard *indicator.CandleGuard
	probeGuard   *indicator.CandleGuard

	mu               sync.Mutex
	status           Status
	lastProcessedTs  time.Time
	lastHourBoundary time.Time
	lastFundingCheck time.Time

	cancel context.CancelFunc
}

// New constructs a Loop for one symbol.
func New(cfg Config, exchange core.Exchange, manager *position.Manager, machine *strategy.Machine, notifier core.Notifier, log core.Logger) *Loop {
	return &Loop{
		cfg:          cfg,
		exchange:     exchange,
		manager:      manager,
		machine:      machine,
		notifier:     notifier,
		log:          log,
		primaryGuard: &indicator.CandleGuard{},
		probeGuard:   &indicator.CandleGuard{},
		status:       StatusStopped,
	}
}

// SetNotifier attaches a notifier after construction, letting cmd/perpbot
// wire the loop and its Telegram notifier despite their circular
// constructor dependency (Telegram.New needs a LoopController, and the
// loop wants to notify through the same Telegram instance).
func (l *Loop) SetNotifier(n core.Notifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notifier = n
}

// Status implements notification.LoopController.
func (l *Loop) Status() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return string(l.status)
}

// Start launches Run in the background. Errors are logged; the loop
// keeps retrying at the transport layer rather than propagating a
// single failure out to the caller, per spec.md §4.4's reconnect model.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.status == StatusRunning {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.status = StatusRunning
	l.mu.Unlock()

	go func() {
		if err := l.Run(ctx); err != nil {
			l.log.WithError(err).Error("feed loop exited")
		}
		l.mu.Lock()
		l.status = StatusStopped
		l.mu.Unlock()
	}()
}

// Stop cancels the running loop, if any.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.status = StatusStopped
}

// Run drives warmup, bankroll/leverage setup, and the main candle
// multiplexing loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.warmup(ctx); err != nil {
		return fmt.Errorf("warmup: %w", err)
	}

	if err := l.manager.RefreshBankroll(ctx); err != nil {
		return fmt.Errorf("fetching bankroll: %w", err)
	}
	if err := l.exchange.UpdateLeverage(ctx, l.cfg.Symbol, l.cfg.Leverage, l.cfg.IsCross); err != nil {
		return fmt.Errorf("setting leverage: %w", err)
	}
	if err := l.manager.RecoverOpenPositions(); err != nil {
		l.log.WithError(err).Warn("durable-store position recovery failed, continuing with exchange sync only")
	}
	if err := l.manager.SyncFromExchange(ctx); err != nil {
		l.log.WithError(err).Warn("initial position sync failed, continuing with local state")
	}

	primary, primaryErrs := l.exchange.CandleFeed(ctx, l.cfg.Symbol, l.cfg.PrimaryInterval)
	probe, probeErrs := l.exchange.CandleFeed(ctx, l.cfg.Symbol, l.cfg.ProbeInterval)

	watchdog := time.NewTicker(l.cfg.WatchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case c, ok := <-primary:
			if !ok {
				return fmt.Errorf("primary candle feed closed")
			}
			l.handlePrimaryCandle(ctx, c)

		case c, ok := <-probe:
			if !ok {
				return fmt.Errorf("probe candle feed closed")
			}
			l.handleProbeCandle(ctx, c)

		case err := <-primaryErrs:
			l.log.WithError(err).Warn("primary candle feed error")

		case err := <-probeErrs:
			l.log.WithError(err).Warn("probe candle feed error")

		case <-watchdog.C:
			l.runWatchdog(ctx)
		}
	}
}

// warmup fetches the last ~WarmupCandles candles and feeds all but the
// last one through the strategy machine, discarding emitted signals, per
// spec.md §4.4 step 2. The last buffered candle (possibly still forming)
// is held back from the guard and the machine, and
// last_processed_close_ts is set to the penultimate buffered candle, so
// the last candle is processed on its next real close.
func (l *Loop) warmup(ctx context.Context) error {
	end := time.Now()
	start := end.Add(-time.Duration(l.cfg.WarmupCandles*2) * intervalDuration(l.cfg.PrimaryInterval))

	candles, err := l.exchange.HistoricalCandles(ctx, l.cfg.Symbol, l.cfg.PrimaryInterval, start, end)
	if err != nil {
		return fmt.Errorf("fetching warmup candles: %w", err)
	}
	if len(candles) > l.cfg.WarmupCandles {
		candles = candles[len(candles)-l.cfg.WarmupCandles:]
	}

	for i, c := range candles {
		if i == len(candles)-1 {
			break
		}
		if !l.primaryGuard.Admit(c.CloseTime) {
			continue
		}
		l.machine.Update(c.High, c.Low, c.Close)
	}

	if n := len(candles); n >= 2 {
		l.lastProcessedTs = candles[n-2].OpenTime
	}

	l.log.WithField("count", len(candles)).Info("warmup complete")
	return nil
}

func intervalDuration(interval string) time.Duration {
	d, err := time.ParseDuration(interval)
	if err != nil {
		return time.Hour
	}
	return d
}
