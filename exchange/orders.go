package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/signer"
)

// PlaceLimitOrder submits a GTC limit order, returning the venue order ID.
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol string, isBuy bool, px, sz float64) (string, error) {
	action := signer.OrderAction{
		Orders: []signer.OrderRequest{{
			Asset:      c.asset,
			IsBuy:      isBuy,
			Price:      formatPrice(px),
			Size:       formatSize(sz),
			ReduceOnly: false,
			OrderType:  signer.OrderTypeSpec{Limit: &signer.LimitSpec{TimeInForce: "Gtc"}},
		}},
		Grouping: "na",
	}

	var resp orderResponse
	if err := c.post(ctx, action, &resp); err != nil {
		return "", fmt.Errorf("placing limit order for %s: %w", symbol, err)
	}
	return resp.orderID()
}

// PlaceStopLossOrder submits a reduce-only trigger order that market-executes
// once the trigger price is touched, per spec.md §4.3's protective stop.
func (c *Client) PlaceStopLossOrder(ctx context.Context, symbol string, isBuy bool, triggerPx, sz float64) (string, error) {
	action := signer.OrderAction{
		Orders: []signer.OrderRequest{{
			Asset:      c.asset,
			IsBuy:      isBuy,
			Price:      formatPrice(triggerPx),
			Size:       formatSize(sz),
			ReduceOnly: true,
			OrderType: signer.OrderTypeSpec{Trigger: &signer.TriggerSpec{
				TriggerPx: formatPrice(triggerPx),
				IsMarket:  true,
				TpSl:      "sl",
			}},
		}},
		Grouping: "na",
	}

	var resp orderResponse
	if err := c.post(ctx, action, &resp); err != nil {
		return "", fmt.Errorf("placing stop-loss order for %s: %w", symbol, err)
	}
	return resp.orderID()
}

// CancelOrder cancels a previously placed order by its venue ID.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	action := signer.CancelAction{
		Cancels: []signer.CancelRequest{{Asset: c.asset, OID: orderID}},
	}
	if err := c.post(ctx, action, nil); err != nil {
		return fmt.Errorf("cancelling order %s for %s: %w", orderID, symbol, err)
	}
	return nil
}

// UpdateLeverage sets the account-wide leverage and margin mode for the asset.
func (c *Client) UpdateLeverage(ctx context.Context, symbol string, leverage int, isCross bool) error {
	action := signer.UpdateLeverageAction{Asset: c.asset, IsCross: isCross, Leverage: leverage}
	if err := c.post(ctx, action, nil); err != nil {
		return fmt.Errorf("updating leverage for %s: %w", symbol, err)
	}
	return nil
}

// orderResponse is the shape of a successful order-placement response.
type orderResponse struct {
	Status string `json:"status"`
	Response struct {
		Data struct {
			Statuses []struct {
				Resting *struct {
					OID int64 `json:"oid"`
				} `json:"resting"`
				Filled *struct {
					OID int64 `json:"oid"`
				} `json:"filled"`
			} `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

func (r orderResponse) orderID() (string, error) {
	if len(r.Response.Data.Statuses) == 0 {
		return "", fmt.Errorf("exchange returned no order statuses")
	}
	s := r.Response.Data.Statuses[0]
	switch {
	case s.Resting != nil:
		return fmt.Sprintf("%d", s.Resting.OID), nil
	case s.Filled != nil:
		return fmt.Sprintf("%d", s.Filled.OID), nil
	default:
		return "", fmt.Errorf("exchange order status had neither resting nor filled")
	}
}

// AccountBalance fetches withdrawable account equity via the info endpoint.
func (c *Client) AccountBalance(ctx context.Context) (float64, error) {
	var resp struct {
		Withdrawable string `json:"withdrawable"`
	}
	if err := c.getInfo(ctx, map[string]any{"type": "clearinghouseState"}, &resp); err != nil {
		return 0, fmt.Errorf("fetching account balance: %w", err)
	}
	var bal float64
	if _, err := fmt.Sscanf(resp.Withdrawable, "%f", &bal); err != nil {
		return 0, fmt.Errorf("parsing balance %q: %w", resp.Withdrawable, err)
	}
	return bal, nil
}

// OpenPositions fetches the venue's view of currently open positions,
// the input to the manager's SyncFromExchange recovery path.
func (c *Client) OpenPositions(ctx context.Context) ([]core.ExchangePosition, error) {
	var resp struct {
		AssetPositions []struct {
			Position struct {
				Coin     string `json:"coin"`
				Szi      string `json:"szi"`
				EntryPx  string `json:"entryPx"`
			} `json:"position"`
		} `json:"assetPositions"`
	}
	if err := c.getInfo(ctx, map[string]any{"type": "clearinghouseState"}, &resp); err != nil {
		return nil, fmt.Errorf("fetching open positions: %w", err)
	}

	out := make([]core.ExchangePosition, 0, len(resp.AssetPositions))
	for _, ap := range resp.AssetPositions {
		var sz, entry float64
		fmt.Sscanf(ap.Position.Szi, "%f", &sz)
		fmt.Sscanf(ap.Position.EntryPx, "%f", &entry)
		if sz == 0 {
			continue
		}
		side := core.SideLong
		if sz < 0 {
			side = core.SideShort
			sz = -sz
		}
		out = append(out, core.ExchangePosition{Symbol: ap.Position.Coin, Size: sz, Entry: entry, Side: side})
	}
	return out, nil
}

// UserFills fetches execution reports since the given time.
func (c *Client) UserFills(ctx context.Context, since time.Time) ([]core.Fill, error) {
	var raw []struct {
		Coin      string  `json:"coin"`
		Side      string  `json:"side"`
		Px        string  `json:"px"`
		Sz        string  `json:"sz"`
		Fee       string  `json:"fee"`
		ClosedPnl string  `json:"closedPnl"`
		Oid       int64   `json:"oid"`
		Time      int64   `json:"time"`
	}
	if err := c.getInfo(ctx, map[string]any{"type": "userFillsByTime", "startTime": since.UnixMilli()}, &raw); err != nil {
		return nil, fmt.Errorf("fetching user fills: %w", err)
	}

	out := make([]core.Fill, 0, len(raw))
	for _, f := range raw {
		var px, sz, fee, pnl float64
		fmt.Sscanf(f.Px, "%f", &px)
		fmt.Sscanf(f.Sz, "%f", &sz)
		fmt.Sscanf(f.Fee, "%f", &fee)
		fmt.Sscanf(f.ClosedPnl, "%f", &pnl)
		side := core.SideLong
		if f.Side == "A" {
			side = core.SideShort
		}
		out = append(out, core.Fill{
			OrderID:   fmt.Sprintf("%d", f.Oid),
			Symbol:    f.Coin,
			Side:      side,
			Price:     px,
			Size:      sz,
			Fee:       fee,
			ClosedPnl: pnl,
			Time:      time.UnixMilli(f.Time),
		})
	}
	return out, nil
}

// UserFunding fetches funding payments/charges since the given time.
func (c *Client) UserFunding(ctx context.Context, since time.Time) ([]core.FundingEvent, error) {
	var raw []struct {
		Delta struct {
			Coin string `json:"coin"`
			Usdc string `json:"usdc"`
		} `json:"delta"`
		Time int64 `json:"time"`
	}
	if err := c.getInfo(ctx, map[string]any{"type": "userFunding", "startTime": since.UnixMilli()}, &raw); err != nil {
		return nil, fmt.Errorf("fetching user funding: %w", err)
	}

	out := make([]core.FundingEvent, 0, len(raw))
	for _, f := range raw {
		var amt float64
		fmt.Sscanf(f.Delta.Usdc, "%f", &amt)
		out = append(out, core.FundingEvent{Symbol: f.Delta.Coin, Amount: amt, Time: time.UnixMilli(f.Time)})
	}
	return out, nil
}

// getInfo issues an unsigned POST to the read-only info endpoint.
func (c *Client) getInfo(ctx context.Context, req map[string]any, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	b := setupBackoffRetry()
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.Duration()):
			}
		}

		respBody, status, err := c.doJSONPost(ctx, "/info", body)
		if err != nil {
			lastErr = err
			continue
		}
		if status >= 500 {
			lastErr = fmt.Errorf("info endpoint %d: %s", status, respBody)
			continue
		}
		if status >= 400 {
			return fmt.Errorf("info endpoint rejected request: %s", respBody)
		}
		return json.Unmarshal(respBody, out)
	}
	return fmt.Errorf("info request exhausted retries: %w", lastErr)
}
