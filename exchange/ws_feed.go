package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/raykavin/perpbot/core"
)

// CandleFeed streams candle updates for one (symbol, interval) pair,
// reconnecting with backoff on disconnect. Grounded directly on
// Spot.CandlesSubscription's reconnect-with-backoff goroutine shape,
// generalized from go-binance's SDK-managed socket to a raw
// gorilla/websocket connection against the venue's subscribe protocol.
func (c *Client) CandleFeed(ctx context.Context, symbol, interval string) (<-chan core.Candle, <-chan error) {
	candles := make(chan core.Candle)
	errs := make(chan error)

	go func() {
		defer close(candles)
		defer close(errs)

		b := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2, Jitter: true}

		for {
			if ctx.Err() != nil {
				return
			}

			if err := c.runCandleSession(ctx, symbol, interval, candles); err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
					return
				}
				if c.log != nil {
					c.log.WithError(err).Warn("candle feed disconnected, reconnecting")
				}
			} else {
				b.Reset()
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(b.Duration()):
			}
		}
	}()

	return candles, errs
}

type wsSubscribeMsg struct {
	Method       string      `json:"method"`
	Subscription wsCandleSub `json:"subscription"`
}

type wsCandleSub struct {
	Type     string `json:"type"`
	Coin     string `json:"coin"`
	Interval string `json:"interval"`
}

type wsCandleEvent struct {
	Channel string `json:"channel"`
	Data    struct {
		Symbol   string  `json:"s"`
		Interval string  `json:"i"`
		Open     float64 `json:"o,string"`
		High     float64 `json:"h,string"`
		Low      float64 `json:"l,string"`
		Close    float64 `json:"c,string"`
		Volume   float64 `json:"v,string"`
		StartMs  int64   `json:"t"`
		EndMs    int64   `json:"T"`
		IsClosed bool    `json:"closed"`
	} `json:"data"`
}

// runCandleSession runs one websocket connection lifetime, pushing
// closed and in-flight candles to the channel until it errors or ctx
// is cancelled.
func (c *Client) runCandleSession(ctx context.Context, symbol, interval string, out chan<- core.Candle) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing candle feed: %w", err)
	}
	defer conn.Close()

	sub := wsSubscribeMsg{
		Method:       "subscribe",
		Subscription: wsCandleSub{Type: "candle", Coin: symbol, Interval: interval},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribing to candle feed: %w", err)
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	for {
		var evt wsCandleEvent
		if err := conn.ReadJSON(&evt); err != nil {
			select {
			case <-done:
				return nil
			default:
				return fmt.Errorf("reading candle event: %w", err)
			}
		}
		if evt.Data.Symbol == "" {
			continue // subscription ack or unrelated channel frame
		}

		candle := core.Candle{
			Symbol:   evt.Data.Symbol,
			Interval: evt.Data.Interval,
			Open:     evt.Data.Open,
			High:     evt.Data.High,
			Low:      evt.Data.Low,
			Close:    evt.Data.Close,
			Volume:   evt.Data.Volume,
			OpenTime: time.UnixMilli(evt.Data.StartMs),
			CloseTime: time.UnixMilli(evt.Data.EndMs),
			Closed:   evt.Data.IsClosed,
		}

		select {
		case out <- candle:
		case <-ctx.Done():
			return nil
		}
	}
}

// HistoricalCandles paginates REST candle snapshots in 5000-candle
// windows that overlap by 1000 candles (1000 hours at the 1h interval),
// deduplicating by open time, per spec.md §6's warmup fetch. An interval
// that time.ParseDuration does not accept is paged as if it were 1h.
func (c *Client) HistoricalCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error) {
	step := time.Hour
	if d, err := time.ParseDuration(interval); err == nil && d > 0 {
		step = d
	}
	pageSpan := 5000 * step
	overlap := 1000 * step

	seen := make(map[int64]struct{})
	var out []core.Candle

	windowStart := start
	for windowStart.Before(end) {
		windowEnd := windowStart.Add(pageSpan)
		if windowEnd.After(end) {
			windowEnd = end
		}

		page, err := c.fetchCandlePage(ctx, symbol, interval, windowStart, windowEnd)
		if err != nil {
			return nil, fmt.Errorf("fetching candle page [%s,%s): %w", windowStart, windowEnd, err)
		}

		for _, cdl := range page {
			key := cdl.OpenTime.UnixMilli()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, cdl)
		}

		if windowEnd.Equal(end) {
			break
		}
		windowStart = windowEnd.Add(-overlap)
	}

	return out, nil
}

func (c *Client) fetchCandlePage(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error) {
	req := map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      symbol,
			"interval":  interval,
			"startTime": start.UnixMilli(),
			"endTime":   end.UnixMilli(),
		},
	}

	var raw []struct {
		T int64   `json:"t"`
		T2 int64  `json:"T"`
		O  string `json:"o"`
		H  string `json:"h"`
		L  string `json:"l"`
		C  string `json:"c"`
		V  string `json:"v"`
	}
	if err := c.getInfo(ctx, req, &raw); err != nil {
		return nil, err
	}

	out := make([]core.Candle, 0, len(raw))
	for _, r := range raw {
		var o, h, l, cl, v float64
		fmt.Sscanf(r.O, "%f", &o)
		fmt.Sscanf(r.H, "%f", &h)
		fmt.Sscanf(r.L, "%f", &l)
		fmt.Sscanf(r.C, "%f", &cl)
		fmt.Sscanf(r.V, "%f", &v)
		out = append(out, core.Candle{
			Symbol:    symbol,
			Interval:  interval,
			Open:      o,
			High:      h,
			Low:       l,
			Close:     cl,
			Volume:    v,
			OpenTime:  time.UnixMilli(r.T),
			CloseTime: time.UnixMilli(r.T2),
			Closed:    true,
		})
	}
	return out, nil
}
