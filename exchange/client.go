// Package exchange implements the signed REST client driving the
// venue, per spec.md §4.5. Grounded on the teacher's
// exchange/binance/binance.go setupBackoffRetry idiom for HTTP retry,
// generalized from go-binance/v2's SDK calls to raw signed HTTP POSTs
// since the venue here speaks a signed-action protocol rather than a
// conventional REST/HMAC API.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jpillora/backoff"

	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/signer"
)

// Client is the signed REST surface described in spec.md §4.5,
// implementing core.Exchange.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	signer     *signer.Signer
	asset      int
	isCross    bool
	log        core.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithLogger(l core.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

// WithWebsocketURL overrides the websocket endpoint passed to New.
func WithWebsocketURL(url string) Option {
	return func(cl *Client) { cl.wsURL = url }
}

// New constructs a Client for a single asset.
func New(baseURL, wsURL string, s *signer.Signer, asset int, isCross bool, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		wsURL:      wsURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer:     s,
		asset:      asset,
		isCross:    isCross,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func setupBackoffRetry() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}
}

func nonce() uint64 {
	return uint64(time.Now().UnixMilli())
}

// post sends a signed action and retries transport-level failures
// (not application-level rejections) with jpillora/backoff.
func (c *Client) post(ctx context.Context, action signer.Action, out any) error {
	n := nonce()
	sig, err := c.signer.Sign(action, n)
	if err != nil {
		return fmt.Errorf("signing action: %w", err)
	}

	envelope := struct {
		Action       json.RawMessage `json:"action"`
		Nonce        uint64          `json:"nonce"`
		Signature    signer.Signature `json:"signature"`
		VaultAddress *string         `json:"vaultAddress"`
	}{
		Action:       actionToJSON(action),
		Nonce:        n,
		Signature:    sig,
		VaultAddress: nil,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
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

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/exchange", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if c.log != nil {
				c.log.WithError(err).Warn("exchange request failed, retrying")
			}
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("exchange %d: %s", resp.StatusCode, respBody)
			continue
		}
		if resp.StatusCode >= 400 {
			return core.NewTradingError(core.KindOrderRejected, fmt.Sprintf("exchange rejected request: %s", respBody), nil)
		}

		b.Reset()
		if out != nil {
			return json.Unmarshal(respBody, out)
		}
		return nil
	}

	return fmt.Errorf("exchange request exhausted retries: %w", lastErr)
}

// actionToJSON mirrors the action as a JSON object for the wire
// envelope. The exchange action taxonomy is small and fixed, so each
// case is spelled out rather than reflected.
func actionToJSON(a signer.Action) json.RawMessage {
	switch v := a.(type) {
	case signer.OrderAction:
		b, _ := json.Marshal(map[string]any{
			"type":     "order",
			"orders":   v.Orders,
			"grouping": v.Grouping,
		})
		return b
	case signer.CancelAction:
		b, _ := json.Marshal(map[string]any{
			"type":    "cancel",
			"cancels": v.Cancels,
		})
		return b
	case signer.UpdateLeverageAction:
		b, _ := json.Marshal(map[string]any{
			"type":     "updateLeverage",
			"asset":    v.Asset,
			"isCross":  v.IsCross,
			"leverage": v.Leverage,
		})
		return b
	default:
		return []byte("{}")
	}
}

// doJSONPost issues a single unsigned JSON POST and returns the raw
// response body and status code, leaving retry policy to the caller.
func (c *Client) doJSONPost(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

func formatPrice(px float64) string {
	return strconv.FormatFloat(px, 'f', -1, 64)
}

func formatSize(sz float64) string {
	return strconv.FormatFloat(sz, 'f', -1, 64)
}
