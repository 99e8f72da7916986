package indicator

// RSI computes the Relative Strength Index with Wilder smoothing after
// the initial seed window, per spec.md §4.1.
type RSI struct {
	period     int
	prevClose  float64
	haveClose  bool
	count      int // number of gain/loss samples accumulated
	sumGain    float64
	sumLoss    float64
	avgGain    float64
	avgLoss    float64
	seeded     bool
}

// NewRSI constructs an RSI kernel for the given period.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Update folds in one closed candle's close price.
func (r *RSI) Update(close float64) (float64, bool) {
	if !r.haveClose {
		r.prevClose = close
		r.haveClose = true
		return 0, false
	}

	change := close - r.prevClose
	r.prevClose = close

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else if change < 0 {
		loss = -change
	}

	if !r.seeded {
		r.sumGain += gain
		r.sumLoss += loss
		r.count++
		if r.count < r.period {
			return 0, false
		}
		r.avgGain = r.sumGain / float64(r.period)
		r.avgLoss = r.sumLoss / float64(r.period)
		r.seeded = true
		return r.value(), true
	}

	n := float64(r.period)
	r.avgGain = (r.avgGain*(n-1) + gain) / n
	r.avgLoss = (r.avgLoss*(n-1) + loss) / n
	return r.value(), true
}

func (r *RSI) value() float64 {
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

// WarmupLength is the number of closes required before Update emits
// (N+1: one to seed prevClose, N more to fill the gain/loss sums).
func (r *RSI) WarmupLength() int { return r.period + 1 }
