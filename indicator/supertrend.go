package indicator

// SuperTrendOutput is the emitted trailing-stop line and its direction.
type SuperTrendOutput struct {
	Line      float64
	IsUptrend bool
}

// SuperTrend computes the ATR-band trailing stop that flips direction
// on penetration, per spec.md §4.1. The band recurrence mirrors the
// teacher's pkg/indicator/super_trend.go basic/final-band math, but
// state is carried incrementally instead of over whole price arrays.
type SuperTrend struct {
	period int
	mult   float64

	trRing    []float64
	trPos     int
	trFilled  bool
	trSum     float64

	havePrevClose bool
	prevClose     float64
	haveLine      bool
	line          float64
	isUptrend     bool
}

// NewSuperTrend constructs a kernel for the given ATR period and band
// multiplier.
func NewSuperTrend(period int, mult float64) *SuperTrend {
	return &SuperTrend{period: period, mult: mult, trRing: make([]float64, period)}
}

// Update folds in one closed candle's (high, low, close).
func (s *SuperTrend) Update(high, low, close float64) (SuperTrendOutput, bool) {
	tr := high - low
	if s.havePrevClose {
		if d := abs(high - s.prevClose); d > tr {
			tr = d
		}
		if d := abs(low - s.prevClose); d > tr {
			tr = d
		}
	}

	old := s.trRing[s.trPos]
	if s.trFilled {
		s.trSum -= old
	}
	s.trRing[s.trPos] = tr
	s.trSum += tr
	s.trPos = (s.trPos + 1) % s.period
	if !s.trFilled && s.trPos == 0 {
		s.trFilled = true
	}

	prevClose := s.prevClose
	havePrevClose := s.havePrevClose
	s.prevClose = close
	s.havePrevClose = true

	if !s.trFilled || !havePrevClose {
		return SuperTrendOutput{}, false
	}

	atr := s.trSum / float64(s.period)
	mid := (high + low) / 2
	upperBasic := mid + s.mult*atr
	lowerBasic := mid - s.mult*atr

	if !s.haveLine {
		// Seed on the first fully-warmed candle: pick the basic band on
		// the side of the close, matching a flat start with no prior
		// trend to carry forward.
		if close >= mid {
			s.line = lowerBasic
			s.isUptrend = true
		} else {
			s.line = upperBasic
			s.isUptrend = false
		}
		s.haveLine = true
		return SuperTrendOutput{Line: s.line, IsUptrend: s.isUptrend}, true
	}

	if s.isUptrend {
		newLine := max(lowerBasic, s.line)
		if close <= newLine {
			s.isUptrend = false
			newLine = upperBasic
		}
		s.line = newLine
	} else {
		newLine := min(upperBasic, s.line)
		if close >= newLine {
			s.isUptrend = true
			newLine = lowerBasic
		}
		s.line = newLine
	}

	_ = prevClose
	return SuperTrendOutput{Line: s.line, IsUptrend: s.isUptrend}, true
}

// WarmupLength is the number of candles required before Update emits:
// the TR ring needs `period` samples to fill.
func (s *SuperTrend) WarmupLength() int { return s.period }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
