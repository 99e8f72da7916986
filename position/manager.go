// Package position implements the risk-sized position/bankroll manager
// of spec.md §4.3: sizing, the drawdown/frequency kill switch, and
// exchange reconciliation. Grounded on the teacher's
// pkg/order/controller.go Controller (sync.Mutex-guarded state,
// exchange+storage+notifier collaborators, Create*/processTrade flow)
// with its order-monitoring poll loop replaced by the signal-driven
// open/close API spec.md names.
package position

import (
	"fmt"
	"sync"
	"time"

	"github.com/raykavin/perpbot/core"
)

// Manager owns at most one open position per symbol and enforces the
// kill switch before any new entry.
type Manager struct {
	mu sync.Mutex

	exchange core.Exchange
	store    core.Store
	notifier core.Notifier
	log      core.Logger

	positions map[string]*core.Position
	closed    []core.ClosedTrade
	// lastClosedIdx tracks each symbol's most recent entry in closed, so
	// post-fill reconciliation can locate and correct it in place.
	lastClosedIdx map[string]int

	bankroll core.Bankroll

	initialSessionBalance float64
	maxDrawdownPct        float64
	maxTradesPerHour      int
	tradeTimestamps       []time.Time

	killSwitchTripped bool
}

// Config carries the risk parameters that stay fixed for a session.
type Config struct {
	RiskPct          float64
	MaxDrawdownPct   float64
	MaxTradesPerHour int
}

// New constructs a Manager against a starting bankroll snapshot.
func New(exchange core.Exchange, store core.Store, notifier core.Notifier, log core.Logger, bankroll core.Bankroll, cfg Config) *Manager {
	bankroll.RiskPct = cfg.RiskPct
	return &Manager{
		exchange:              exchange,
		store:                 store,
		notifier:              notifier,
		log:                   log,
		positions:             make(map[string]*core.Position),
		lastClosedIdx:         make(map[string]int),
		bankroll:              bankroll,
		initialSessionBalance: bankroll.TotalBalance,
		maxDrawdownPct:        cfg.MaxDrawdownPct,
		maxTradesPerHour:      cfg.MaxTradesPerHour,
	}
}

// sizePosition implements spec.md §4.3's sizing formula: notional from
// risk budget over stop distance, floored at $10, capped at 1x
// leverage (available balance) unless the floor forced the clamp.
func sizePosition(available, riskPct, entry, stopLoss float64) (notional, size float64) {
	d := abs(entry-stopLoss) / entry
	if d <= 0 {
		d = 0.0001
	}

	notional = available * (riskPct / 100) / d
	if notional < 10 {
		notional = 10
	} else if notional > available {
		notional = available
	}

	size = notional / entry
	return notional, size
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// SetNotifier attaches a notifier after construction, letting callers
// wire a notifier that itself depends on the already-constructed
// Manager (e.g. notification.Telegram's Positions/Status handlers).
func (m *Manager) SetNotifier(n core.Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = n
}

// CheckSafetyLimits implements the kill switch of spec.md §4.3: a
// drawdown breach or a trade-frequency breach blocks further entries
// for the remainder of the session. Already-open positions are left
// alone, per the error-handling design's SafetyLimit semantics.
func (m *Manager) CheckSafetyLimits() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkSafetyLimitsLocked()
}

func (m *Manager) checkSafetyLimitsLocked() error {
	if m.killSwitchTripped {
		return core.NewTradingError(core.KindSafetyLimit, "kill switch already tripped this session", nil)
	}

	if m.initialSessionBalance > 0 {
		drawdownPct := (m.initialSessionBalance - m.bankroll.TotalBalance) / m.initialSessionBalance * 100
		if drawdownPct > m.maxDrawdownPct {
			m.killSwitchTripped = true
			return core.NewTradingError(core.KindSafetyLimit,
				fmt.Sprintf("drawdown %.2f%% exceeds max %.2f%%", drawdownPct, m.maxDrawdownPct), nil)
		}
	}

	cutoff := time.Now().Add(-1 * time.Hour)
	fresh := m.tradeTimestamps[:0]
	for _, ts := range m.tradeTimestamps {
		if ts.After(cutoff) {
			fresh = append(fresh, ts)
		}
	}
	m.tradeTimestamps = fresh

	if m.maxTradesPerHour > 0 && len(m.tradeTimestamps) >= m.maxTradesPerHour {
		m.killSwitchTripped = true
		return core.NewTradingError(core.KindSafetyLimit,
			fmt.Sprintf("%d trades in the last hour reached the limit of %d", len(m.tradeTimestamps), m.maxTradesPerHour), nil)
	}

	return nil
}
