package core

import (
	"context"
	"time"
)

// Logger is the structured-logging facade the whole module codes
// against; the concrete implementation lives in package logger and
// wraps zerolog, mirroring the teacher's logger/Logger split.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// Fill is one execution report returned by the exchange after an order
// is placed (spec.md §4.4's "fetch recent fills").
type Fill struct {
	OrderID   string
	Symbol    string
	Side      Side
	Price     float64
	Size      float64
	Fee       float64
	ClosedPnl float64
	Time      time.Time
}

// FundingEvent is one funding payment/charge reported by the exchange.
type FundingEvent struct {
	Symbol string
	Amount float64
	Time   time.Time
}

// ExchangePosition describes a position the exchange already reports as
// open — the input to the manager's SyncFromExchange recovery path.
type ExchangePosition struct {
	Symbol string
	Size   float64
	Entry  float64
	Side   Side
}

// Exchange is the signed REST surface the engine drives. Concrete
// implementation in package exchange talks to the venue over HTTP/WS;
// this interface lets position/strategy/feed code stay transport-free.
type Exchange interface {
	PlaceLimitOrder(ctx context.Context, symbol string, isBuy bool, px, sz float64) (string, error)
	PlaceStopLossOrder(ctx context.Context, symbol string, isBuy bool, triggerPx, sz float64) (string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	UpdateLeverage(ctx context.Context, symbol string, leverage int, isCross bool) error
	AccountBalance(ctx context.Context) (float64, error)
	OpenPositions(ctx context.Context) ([]ExchangePosition, error)
	UserFills(ctx context.Context, since time.Time) ([]Fill, error)
	UserFunding(ctx context.Context, since time.Time) ([]FundingEvent, error)

	// CandleFeed streams candle updates for one (symbol, interval) pair
	// over a reconnecting websocket session (spec.md §4.4).
	CandleFeed(ctx context.Context, symbol, interval string) (<-chan Candle, <-chan error)
	// HistoricalCandles paginates REST candle snapshots over [start, end)
	// for the warmup fetch and watchdog forced-close recovery (spec.md §6).
	HistoricalCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]Candle, error)
}

// Store is the durable KV/row persistence abstraction (spec.md §6).
// All calls are best-effort from the caller's perspective: failures are
// logged by the caller, never propagated into the trading loop.
type Store interface {
	Log(level, message string, fields map[string]any) error
	FetchOpenPositions() ([]PositionRow, error)
	SavePosition(row PositionRow) (string, error)
	UpdatePosition(id string, row PositionRow) error
}

// PositionRow is the persisted row shape from spec.md §6.
type PositionRow struct {
	ID         string
	Symbol     string
	Side       Side
	EntryPrice float64
	Size       float64
	Status     PositionStatus
	CreatedAt  time.Time
	ClosedAt   *time.Time
	ExitPrice  *float64
	Pnl        *float64
}

type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Notifier is the abstract chat/alert transport (spec.md §6).
type Notifier interface {
	Notify(msg string)
	NotifyError(err error)
}
