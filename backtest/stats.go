package backtest

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/stat"

	"github.com/raykavin/perpbot/core"
)

// Summary mirrors the teacher's TradeSummary, adapted to the ledger's
// NetPnl/PnlPct fields and the gonum/stat functions the teacher already
// pulls in via pkg/metric/bootstrap.go, in place of hand-rolled
// mean/stddev math for the pieces gonum already covers.
type Summary struct {
	Pair         string
	Wins         int
	Losses       int
	WinPct       float64
	Payoff       float64
	ProfitFactor float64
	TotalNetPnl  float64
	Volume       float64
	SQN          float64
	ReturnsPct   []float64
}

// Summarize computes a Summary from a closed-trade ledger.
func Summarize(pair string, trades []core.ClosedTrade) Summary {
	s := Summary{Pair: pair}
	if len(trades) == 0 {
		return s
	}

	var winSum, lossSum float64
	s.ReturnsPct = make([]float64, 0, len(trades))
	for _, t := range trades {
		s.TotalNetPnl += t.NetPnl
		s.Volume += t.EntryPrice * t.Size
		s.ReturnsPct = append(s.ReturnsPct, t.PnlPct)

		if t.NetPnl >= 0 {
			s.Wins++
			winSum += t.NetPnl
		} else {
			s.Losses++
			lossSum += t.NetPnl
		}
	}

	total := s.Wins + s.Losses
	if total > 0 {
		s.WinPct = float64(s.Wins) / float64(total) * 100
	}
	if s.Wins > 0 && s.Losses > 0 {
		avgWin := winSum / float64(s.Wins)
		avgLoss := lossSum / float64(s.Losses)
		s.Payoff = avgWin / math.Abs(avgLoss)
	}
	if lossSum != 0 {
		s.ProfitFactor = winSum / math.Abs(lossSum)
	}

	mean, stdDev := stat.MeanStdDev(s.ReturnsPct, nil)
	if stdDev != 0 {
		s.SQN = math.Sqrt(float64(len(s.ReturnsPct))) * mean / stdDev
	}

	return s
}

// String renders the summary as a fixed-width table, directly adapted
// from the teacher's TradeSummary.String().
func (s Summary) String() string {
	b := &strings.Builder{}
	table := tablewriter.NewWriter(b)

	data := [][]string{
		{"Pair", s.Pair},
		{"Trades", strconv.Itoa(s.Wins + s.Losses)},
		{"Wins", strconv.Itoa(s.Wins)},
		{"Losses", strconv.Itoa(s.Losses)},
		{"% Win", fmt.Sprintf("%.1f", s.WinPct)},
		{"Payoff", fmt.Sprintf("%.2f", s.Payoff)},
		{"Pr.Fact", fmt.Sprintf("%.2f", s.ProfitFactor)},
		{"SQN", fmt.Sprintf("%.2f", s.SQN)},
		{"Net PnL", fmt.Sprintf("%.4f", s.TotalNetPnl)},
		{"Volume", fmt.Sprintf("%.4f", s.Volume)},
	}

	table.AppendBulk(data)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Render()

	return b.String()
}

// PlotReturns renders an ASCII histogram of the per-trade return
// percentages, directly adapted from backnrun.go's
// histogram.Hist(15, returnsPercent) / histogram.Fprint reporting.
func (s Summary) PlotReturns(w io.Writer) error {
	if len(s.ReturnsPct) == 0 {
		fmt.Fprintln(w, "no closed trades to plot")
		return nil
	}
	bins := 15
	if len(s.ReturnsPct) < bins {
		bins = len(s.ReturnsPct)
	}
	hist := histogram.Hist(bins, s.ReturnsPct)
	return histogram.Fprint(w, hist, histogram.Linear(10))
}
