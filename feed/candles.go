package feed

import (
	"context"
	"errors"
	"time"

	"github.com/raykavin/perpbot/core"
)

// handlePrimaryCandle advances the strategy machine on closed primary
// candles only, mirroring candle_processing.go's "OnPartialCandle then
// OnCandle only if Complete" split; in-flight candles only refresh the
// position manager's mark-to-market PnL.
func (l *Loop) handlePrimaryCandle(ctx context.Context, c core.Candle) {
	l.manager.UpdateCurrentPnl(l.cfg.Symbol, c.Close)

	if !c.Closed {
		return
	}
	if !l.primaryGuard.Admit(c.CloseTime) {
		return
	}

	l.accrueFunding(ctx)

	l.mu.Lock()
	l.lastProcessedTs = c.OpenTime
	l.mu.Unlock()

	sig := l.machine.Update(c.High, c.Low, c.Close)
	l.executeSignal(ctx, sig, c.Close)
}

// handleProbeCandle runs the intra-candle exit probe on the
// higher-frequency feed without mutating the machine's state; a
// confirmed exit is force-applied and executed immediately rather than
// waiting for the primary candle to close.
func (l *Loop) handleProbeCandle(ctx context.Context, c core.Candle) {
	if !l.probeGuard.Admit(c.CloseTime) {
		return
	}

	sig, shouldExit := l.machine.ProbeExit(c.High, c.Low, c.Close)
	if !shouldExit {
		return
	}

	l.machine.ForceExit()
	l.executeSignal(ctx, sig, c.Close)
}

// runWatchdog implements spec.md §4.4's 10-second tick: if the
// wall-clock hour boundary has advanced since the last check and no
// close-triggering message has arrived for it, the missing closed
// candle is fetched via REST and processed as a forced close using its
// own close as the execution price.
func (l *Loop) runWatchdog(ctx context.Context) {
	now := time.Now().Truncate(time.Hour)

	l.mu.Lock()
	advanced := now.After(l.lastHourBoundary)
	l.lastHourBoundary = now
	lastProcessed := l.lastProcessedTs
	l.mu.Unlock()

	if !advanced {
		return
	}
	if !lastProcessed.Before(now.Add(-intervalDuration(l.cfg.PrimaryInterval))) {
		return // the real candle-close message already arrived for this boundary
	}

	start := now.Add(-2 * intervalDuration(l.cfg.PrimaryInterval))
	candles, err := l.exchange.HistoricalCandles(ctx, l.cfg.Symbol, l.cfg.PrimaryInterval, start, now)
	if err != nil {
		l.log.WithError(err).Warn("watchdog: fetching missing candle failed")
		return
	}
	if len(candles) == 0 {
		return
	}

	missing := candles[len(candles)-1]
	if !l.primaryGuard.Admit(missing.CloseTime) {
		return
	}

	l.mu.Lock()
	l.lastProcessedTs = missing.OpenTime
	l.mu.Unlock()

	sig := l.machine.Update(missing.High, missing.Low, missing.Close)
	l.log.WithField("open_time", missing.OpenTime).Warn("watchdog forced a missed candle close")
	l.executeSignal(ctx, sig, missing.Close)
}

// accrueFunding fetches funding events posted since the last check and
// records them onto the open position, keeping FundingPaid correct by
// the time the position closes instead of reconstructing the whole
// holding period's funding in one shot at exit (spec.md §4.4).
func (l *Loop) accrueFunding(ctx context.Context) {
	pos, open := l.manager.Position(l.cfg.Symbol)
	if !open {
		return
	}

	l.mu.Lock()
	since := l.lastFundingCheck
	l.mu.Unlock()
	if since.IsZero() {
		since = pos.EntryTime
	}

	now, err := l.manager.ReconcileFunding(ctx, l.cfg.Symbol, since)
	if err != nil {
		l.log.WithError(err).Warn("accruing funding failed")
		return
	}

	l.mu.Lock()
	l.lastFundingCheck = now
	l.mu.Unlock()
}

// executeSignal translates a strategy signal into a position-manager
// call, making at most MaxOrderRetries attempts while failures are
// transient and reconciling with the exchange after a settle delay, per
// spec.md §4.4's signal-execution step.
func (l *Loop) executeSignal(ctx context.Context, sig core.Signal, price float64) {
	if sig == core.SignalHold {
		return
	}

	if sig.IsEntry() {
		if err := l.manager.CheckSafetyLimits(); err != nil {
			l.log.WithError(err).Warn("signal dropped by safety limits")
			return
		}
	}

	var exitEntryTime time.Time
	if sig.IsExit() {
		if pos, open := l.manager.Position(l.cfg.Symbol); open {
			exitEntryTime = pos.EntryTime
		}
	}

	var execErr error
	for attempt := 0; attempt < l.cfg.MaxOrderRetries; attempt++ {
		execErr = l.dispatchSignal(ctx, sig, price)
		if execErr == nil {
			break
		}
		var tradingErr *core.TradingError
		if !isRetryable(execErr, &tradingErr) {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}

	if execErr != nil {
		l.log.WithError(execErr).WithField("signal", sig.String()).Error("signal execution failed")
		if l.notifier != nil {
			l.notifier.NotifyError(execErr)
		}
		return
	}

	select {
	case <-time.After(l.cfg.SettleDelay):
	case <-ctx.Done():
		return
	}

	// spec.md §4.4's post-fill reconciliation against the second source
	// of truth: the local position/ledger was built from the price the
	// signal fired at, not necessarily the venue's real fill.
	switch {
	case sig.IsEntry():
		if err := l.manager.ReconcileEntry(ctx, l.cfg.Symbol); err != nil {
			l.log.WithError(err).Warn("reconciling entry fill failed")
		}
	case sig.IsExit() && !exitEntryTime.IsZero():
		if err := l.manager.ReconcileExit(ctx, l.cfg.Symbol, exitEntryTime); err != nil {
			l.log.WithError(err).Warn("reconciling exit fill failed")
		}
		l.mu.Lock()
		l.lastFundingCheck = time.Time{}
		l.mu.Unlock()
	}

	if err := l.manager.SyncFromExchange(ctx); err != nil {
		l.log.WithError(err).Warn("post-fill reconciliation failed")
	}
}

func isRetryable(err error, out **core.TradingError) bool {
	te, ok := asTradingError(err)
	if !ok {
		return true // unclassified transport errors are assumed retryable
	}
	*out = te
	return te.Retryable()
}

func asTradingError(err error) (*core.TradingError, bool) {
	var te *core.TradingError
	ok := errors.As(err, &te)
	return te, ok
}

func (l *Loop) dispatchSignal(ctx context.Context, sig core.Signal, price float64) error {
	switch {
	case sig.IsEntry():
		return l.openFromSignal(ctx, sig, price)
	case sig.IsExit():
		_, err := l.manager.ClosePosition(ctx, l.cfg.Symbol, price)
		return err
	case sig == core.SignalUpgradeToTrend:
		return nil // same position, state machine already upgraded regime internally
	default:
		return nil
	}
}

func (l *Loop) openFromSignal(ctx context.Context, sig core.Signal, price float64) error {
	bb, _, _, ready := l.machine.Snapshot()
	if !ready {
		return nil
	}

	switch sig {
	case core.SignalBuyRange, core.SignalBuyTrend:
		stopLoss := bb.Lower * 0.98
		_, err := l.manager.OpenLong(ctx, l.cfg.Symbol, price, stopLoss)
		return err
	case core.SignalSellShort:
		stopLoss := bb.Upper * 1.02
		_, err := l.manager.OpenShort(ctx, l.cfg.Symbol, price, stopLoss)
		return err
	default:
		return nil
	}
}
