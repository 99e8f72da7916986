// Package strategy implements the regime-switching state machine that
// consumes indicator outputs and emits trading signals, per spec.md
// §4.2. It is grounded on the teacher's core.Strategy/strategy.Controller
// split (indicators computed once per candle before reacting to them)
// but is event-driven rather than dataframe-batch, to match the
// streaming contract the indicator kernels expose.
package strategy

import (
	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/indicator"
)

// Config holds the indicator parameters and the ADX trending threshold.
type Config struct {
	ADXPeriod        int
	ADXThreshold     float64
	BollingerPeriod  int
	BollingerK       float64
	SuperTrendPeriod int
	SuperTrendMult   float64
	StopLossBuffer   float64 // fraction below lower band that force-stops LongRange, e.g. 0.05
}

// snapshot is the set of indicator outputs read once at candle close;
// the machine never re-reads mid-evaluation (spec.md §4.2 tie-break
// rule).
type snapshot struct {
	bollinger indicator.BollingerOutput
	superTrend indicator.SuperTrendOutput
	adx        float64
	ready      bool
}

// Machine is the per-(symbol,interval) regime-switching state machine.
type Machine struct {
	cfg   Config
	state core.PositionState

	bb *indicator.Bollinger
	st *indicator.SuperTrend
	ax *indicator.ADX

	last snapshot
}

// New constructs a machine starting in core.StateNone.
func New(cfg Config) *Machine {
	return &Machine{
		cfg:   cfg,
		state: core.StateNone,
		bb:    indicator.NewBollinger(cfg.BollingerPeriod, cfg.BollingerK),
		st:    indicator.NewSuperTrend(cfg.SuperTrendPeriod, cfg.SuperTrendMult),
		ax:    indicator.NewADX(cfg.ADXPeriod),
	}
}

// State returns the machine's current position state.
func (m *Machine) State() core.PositionState { return m.state }

// Snapshot returns the indicator outputs taken at the last closed
// candle, for callers that need lower/middle/upper bands to compute a
// stop-loss price alongside the emitted signal.
func (m *Machine) Snapshot() (indicator.BollingerOutput, indicator.SuperTrendOutput, float64, bool) {
	return m.last.bollinger, m.last.superTrend, m.last.adx, m.last.ready
}

// Update folds in one closed candle and returns the emitted signal.
// Indicators are advanced first; the transition table is then
// evaluated against the snapshot taken at this close — no mid-candle
// re-read of indicator state occurs afterward.
func (m *Machine) Update(high, low, close float64) core.Signal {
	bb, bbOK := m.bb.Update(close)
	st, stOK := m.st.Update(high, low, close)
	adx, adxOK := m.ax.Update(high, low, close)

	ready := bbOK && stOK && adxOK
	m.last = snapshot{bollinger: bb, superTrend: st, adx: adx, ready: ready}
	if !ready {
		return core.SignalHold
	}

	regime := core.RegimeRanging
	if adx >= m.cfg.ADXThreshold {
		regime = core.RegimeTrending
	}

	return m.transition(regime, high, low, close, bb, st)
}

func (m *Machine) transition(regime core.Regime, high, low, close float64, bb indicator.BollingerOutput, st indicator.SuperTrendOutput) core.Signal {
	switch m.state {
	case core.StateNone:
		switch {
		case regime == core.RegimeRanging && close < bb.Lower:
			m.state = core.StateLongRange
			return core.SignalBuyRange
		case regime == core.RegimeTrending && st.IsUptrend && close > bb.Upper:
			m.state = core.StateLongTrend
			return core.SignalBuyTrend
		case regime == core.RegimeTrending && !st.IsUptrend && close < bb.Lower:
			m.state = core.StateShortTrend
			return core.SignalSellShort
		}
		return core.SignalHold

	case core.StateLongRange:
		switch {
		case high >= bb.Middle:
			m.state = core.StateNone
			return core.SignalSellRange
		case regime == core.RegimeTrending && close > bb.Middle:
			m.state = core.StateLongTrend
			return core.SignalUpgradeToTrend
		case close < bb.Lower*(1-m.cfg.StopLossBuffer):
			m.state = core.StateNone
			return core.SignalSellRange
		}
		return core.SignalHold

	case core.StateLongTrend:
		if !st.IsUptrend {
			m.state = core.StateNone
			return core.SignalSellTrend
		}
		return core.SignalHold

	case core.StateShortTrend:
		if st.IsUptrend {
			m.state = core.StateNone
			return core.SignalCoverShort
		}
		return core.SignalHold
	}
	return core.SignalHold
}

// ProbeExit implements the intra-candle exit probe: given the
// still-forming candle's (high, low, close), it reports whether a
// LongRange position should exit, without mutating any state. The
// caller invokes ForceExit to actually transition to None.
func (m *Machine) ProbeExit(high, low, close float64) (core.Signal, bool) {
	if m.state != core.StateLongRange || !m.last.ready {
		return core.SignalHold, false
	}
	if high >= m.last.bollinger.Middle {
		return core.SignalSellRange, true
	}
	return core.SignalHold, false
}

// ForceExit transitions the machine to None following a successful
// ProbeExit, without re-evaluating indicators.
func (m *Machine) ForceExit() {
	m.state = core.StateNone
}
