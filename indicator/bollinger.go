// Package indicator implements streaming technical-indicator kernels.
// Each kernel holds exactly the state it needs to advance one candle at
// a time; none of them accept or require a backing array of history,
// unlike the teacher's pkg/indicator wrappers around go-talib (which
// operate on whole slices). The recurrence math for SuperTrend is
// grounded on the teacher's pkg/indicator/super_trend.go band logic,
// restructured here from a batch loop into an incremental Update call.
package indicator

import "math"

// BollingerOutput is the emitted (lower, middle, upper) band triple.
type BollingerOutput struct {
	Lower  float64
	Middle float64
	Upper  float64
}

// Bollinger computes Bollinger Bands over a ring of the last N closes,
// using the population standard deviation (divisor N, not N-1) per
// spec.md §4.1.
type Bollinger struct {
	period int
	k      float64
	ring   []float64
	pos    int
	filled bool
	sum    float64
	sumSq  float64
}

// NewBollinger constructs a kernel for the given period and band width.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{period: period, k: k, ring: make([]float64, period)}
}

// Update folds in one closed candle's close price. It returns ok=false
// during warmup (fewer than period samples observed).
func (b *Bollinger) Update(close float64) (BollingerOutput, bool) {
	old := b.ring[b.pos]
	if b.filled {
		b.sum -= old
		b.sumSq -= old * old
	}
	b.ring[b.pos] = close
	b.sum += close
	b.sumSq += close * close
	b.pos = (b.pos + 1) % b.period
	if !b.filled && b.pos == 0 {
		b.filled = true
	}
	if !b.filled {
		return BollingerOutput{}, false
	}

	n := float64(b.period)
	mean := b.sum / n
	variance := b.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0 // guards against floating-point underflow at near-zero variance
	}
	std := math.Sqrt(variance)

	return BollingerOutput{
		Lower:  mean - b.k*std,
		Middle: mean,
		Upper:  mean + b.k*std,
	}, true
}

// WarmupLength is the number of samples required before Update emits.
func (b *Bollinger) WarmupLength() int { return b.period }
