package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_BestMaintenance(t *testing.T) {
	b := New("BTC", 0, 1000, 1)

	b.Set(100, 5, Bid)
	b.Set(101, 3, Bid)
	b.Set(102, 2, Bid)

	px, _, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, 102.0, px)

	b.Remove(102, Bid)
	px, _, ok = b.BestBid()
	require.True(t, ok)
	assert.Equal(t, 101.0, px)

	b.Set(101, 0, Bid)
	px, _, ok = b.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.0, px)
}

func TestBook_SetZeroIsRemove(t *testing.T) {
	b := New("BTC", 0, 1000, 1)
	b.Set(500, 10, Ask)
	_, ok := b.QuantityAt(500, Ask)
	require.True(t, ok)

	b.Set(500, 0, Ask)
	_, ok = b.QuantityAt(500, Ask)
	assert.False(t, ok)

	_, _, ok = b.BestAsk()
	assert.False(t, ok)
}

func TestBook_OutOfRangeIgnored(t *testing.T) {
	b := New("BTC", 100, 200, 1)
	b.Set(50, 5, Bid)
	b.Set(250, 5, Ask)
	_, _, ok := b.BestBid()
	assert.False(t, ok)
	_, _, ok = b.BestAsk()
	assert.False(t, ok)
}

func TestBook_BestBidBelowBestAsk(t *testing.T) {
	b := New("BTC", 0, 1000, 1)
	b.Set(100, 5, Bid)
	b.Set(101, 5, Ask)
	require.NoError(t, b.CheckInvariants())
}
