package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuperTrend_WarmupAndFlip(t *testing.T) {
	st := NewSuperTrend(3, 2)

	var out SuperTrendOutput
	var ok bool
	price := 100.0
	for i := 0; i < 2; i++ {
		out, ok = st.Update(price+1, price-1, price)
	}
	assert.False(t, ok, "needs a full TR ring before emitting")

	out, ok = st.Update(101, 99, 100)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, out.Line, 0.0)

	// Drive price sharply down to force a downtrend flip.
	var flipped bool
	for i := 0; i < 20; i++ {
		out, ok = st.Update(float64(90-i), float64(80-i), float64(85-i))
		if ok && !out.IsUptrend {
			flipped = true
			break
		}
	}
	assert.True(t, flipped, "a sustained decline should flip SuperTrend to downtrend")
}
