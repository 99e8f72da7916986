package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/raykavin/perpbot/core"
)

// simExchange is a minimal core.Exchange stand-in that lets the replay
// harness drive position.Manager unmodified: order placement always
// "fills" immediately at the price the caller already computed (the
// harness applies slippage before calling into the manager), and the
// streaming/history methods are unused by the harness's own candle
// loop so they return empty results rather than errors.
type simExchange struct {
	symbol   string
	leverage int
	isCross  bool
	fillSeq  int
}

func newSimExchange(symbol string) *simExchange {
	return &simExchange{symbol: symbol}
}

func (s *simExchange) PlaceLimitOrder(ctx context.Context, symbol string, isBuy bool, px, sz float64) (string, error) {
	s.fillSeq++
	return fmt.Sprintf("backtest-fill-%d", s.fillSeq), nil
}

func (s *simExchange) PlaceStopLossOrder(ctx context.Context, symbol string, isBuy bool, triggerPx, sz float64) (string, error) {
	s.fillSeq++
	return fmt.Sprintf("backtest-sl-%d", s.fillSeq), nil
}

func (s *simExchange) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }

func (s *simExchange) UpdateLeverage(ctx context.Context, symbol string, leverage int, isCross bool) error {
	s.leverage, s.isCross = leverage, isCross
	return nil
}

func (s *simExchange) AccountBalance(ctx context.Context) (float64, error) { return 0, nil }

func (s *simExchange) OpenPositions(ctx context.Context) ([]core.ExchangePosition, error) {
	return nil, nil
}

func (s *simExchange) UserFills(ctx context.Context, since time.Time) ([]core.Fill, error) {
	return nil, nil
}

func (s *simExchange) UserFunding(ctx context.Context, since time.Time) ([]core.FundingEvent, error) {
	return nil, nil
}

func (s *simExchange) CandleFeed(ctx context.Context, symbol, interval string) (<-chan core.Candle, <-chan error) {
	c := make(chan core.Candle)
	e := make(chan error)
	close(c)
	return c, e
}

func (s *simExchange) HistoricalCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error) {
	return nil, nil
}
