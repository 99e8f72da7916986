package core

import "errors"

// ErrorKind classifies a trading error per the error handling design:
// some kinds are retryable, some fatal, some are local rejections that
// must never be retried automatically.
type ErrorKind string

const (
	KindTransientNetwork  ErrorKind = "transient_network"
	KindAuthSign          ErrorKind = "auth_sign"
	KindOrderRejected     ErrorKind = "order_rejected"
	KindInsufficientFunds ErrorKind = "insufficient_balance"
	KindStaleCandle       ErrorKind = "stale_candle"
	KindSafetyLimit       ErrorKind = "safety_limit"
)

// TradingError wraps a domain error with a Kind so callers can decide
// whether to retry, surface to operators, or treat as fatal.
type TradingError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *TradingError) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *TradingError) Unwrap() error { return e.Err }

func (k ErrorKind) String() string { return string(k) }

// NewTradingError builds a TradingError of the given kind.
func NewTradingError(kind ErrorKind, msg string, err error) *TradingError {
	return &TradingError{Kind: kind, Msg: msg, Err: err}
}

// Retryable reports whether the error kind should be retried with backoff.
func (e *TradingError) Retryable() bool {
	return e.Kind == KindTransientNetwork
}

var (
	ErrPositionExists   = errors.New("position already open for symbol")
	ErrNoOpenPosition   = errors.New("no open position for symbol")
	ErrInvalidStopLoss  = errors.New("stop-loss not on the safe side of entry")
	ErrNegativeValue    = errors.New("negative value")
	ErrSymbolEmpty      = errors.New("empty symbol")
)
