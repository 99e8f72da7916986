package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBollinger_MiddleIsMeanPopulationStd(t *testing.T) {
	b := NewBollinger(5, 2)
	values := []float64{10, 12, 11, 13, 14}
	var out BollingerOutput
	var ok bool
	for _, v := range values {
		out, ok = b.Update(v)
	}
	assert.True(t, ok)

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	std := math.Sqrt(variance)

	assert.InDelta(t, mean, out.Middle, 1e-9)
	assert.InDelta(t, mean-2*std, out.Lower, 1e-9)
	assert.InDelta(t, mean+2*std, out.Upper, 1e-9)
}

func TestBollinger_WarmupNone(t *testing.T) {
	b := NewBollinger(20, 2)
	for i := 0; i < 19; i++ {
		_, ok := b.Update(100)
		assert.False(t, ok)
	}
	_, ok := b.Update(100)
	assert.True(t, ok)
}

func TestBollinger_TouchAndExitScenario(t *testing.T) {
	b := NewBollinger(20, 2)
	for i := 0; i < 20; i++ {
		_, _ = b.Update(100)
	}
	// flat series => std 0, bands collapse to 100
	out, ok := b.Update(95) // C below lower band (~97.57 once 95 enters the window)
	assert.True(t, ok)
	assert.Less(t, 95.0, out.Middle+0.0001)
	assert.LessOrEqual(t, 95.0, out.Lower+1e-9)
}
