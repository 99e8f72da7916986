package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// pagedCandleSnapshotServer returns the same two candles on every page
// call, so every page after the first repeats open times and the test
// can assert HistoricalCandles deduplicates by open time.
func pagedCandleSnapshotServer(t *testing.T) *http.Client {
	t.Helper()
	call := 0
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		call++
		body, _ := io.ReadAll(req.Body)
		var parsed map[string]any
		require.NoError(t, json.Unmarshal(body, &parsed))

		rows := []map[string]string{
			{"t": "1000", "T": "2000", "o": "1", "h": "2", "l": "0.5", "c": "1.5", "v": "10"},
			{"t": "2000", "T": "3000", "o": "1.5", "h": "2.5", "l": "1", "c": "2", "v": "10"},
		}
		out, _ := json.Marshal(rows)
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(bytes.NewReader(out)),
			Header:     make(http.Header),
		}, nil
	})}
}

func TestHistoricalCandles_DedupsAcrossOverlappingPages(t *testing.T) {
	c := New("https://example.invalid", "", nil, 0, true, WithHTTPClient(pagedCandleSnapshotServer(t)))

	start := time.UnixMilli(1000)
	end := start.Add(6000 * time.Hour) // two 5000-candle pages at 1h

	candles, err := c.HistoricalCandles(context.Background(), "BTC", "1h", start, end)
	require.NoError(t, err)

	seen := map[int64]int{}
	for _, cdl := range candles {
		seen[cdl.OpenTime.UnixMilli()]++
	}
	for ts, n := range seen {
		assert.Equal(t, 1, n, "open time %d appeared %d times, want 1", ts, n)
	}
}
