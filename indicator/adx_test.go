package indicator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestADX_WarmupLength(t *testing.T) {
	adx := NewADX(14)
	r := rand.New(rand.NewSource(1))
	price := 100.0

	var lastOK bool
	for i := 0; i < 28; i++ {
		high := price + 1
		low := price - 1
		close := price + (r.Float64() - 0.5)
		_, ok := adx.Update(high, low, close)
		lastOK = ok
		if i == 26 {
			assert.False(t, ok, "ADX must still be None after 27 updates")
		}
		price = close
	}
	assert.True(t, lastOK, "ADX must be Some after 28 updates")
}

func TestADX_Bounded(t *testing.T) {
	adx := NewADX(14)
	r := rand.New(rand.NewSource(7))
	price := 100.0

	for i := 0; i < 200; i++ {
		high := price + r.Float64()*2
		low := price - r.Float64()*2
		close := low + r.Float64()*(high-low)
		v, ok := adx.Update(high, low, close)
		if ok {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 100.0)
		}
		price = close
	}
}

func TestADX_NoMutationOnTiesBothDMZero(t *testing.T) {
	adx := NewADX(3)
	// Flat series: up_move == down_move == 0 on every step once seeded,
	// ties give zero on both +DM and -DM.
	for i := 0; i < 10; i++ {
		_, _ = adx.Update(10, 9, 9.5)
	}
	assert.Equal(t, 0.0, adx.PlusDI())
	assert.Equal(t, 0.0, adx.MinusDI())
}
