package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/raykavin/perpbot/backtest"
	"github.com/raykavin/perpbot/config"
	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/strategy"
)

var benchCandles int

func buildBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure strategy/indicator throughput against synthetic candles",
		RunE:  runBench,
	}
	cmd.Flags().IntVar(&benchCandles, "candles", 100000, "number of synthetic candles to replay")
	return cmd
}

// runBench replays a synthetic sine-wave candle series through the
// backtest harness and reports wall-clock throughput, a cheap smoke
// test of the indicator/strategy pipeline's hot path unrelated to the
// venue's real data.
func runBench(cmd *cobra.Command, args []string) error {
	s, err := config.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	log, err := buildLogger(s)
	if err != nil {
		return err
	}

	candles := syntheticCandles(benchCandles)

	h := backtest.New(backtest.Config{
		Symbol:           s.Symbol,
		InitialBalance:   10000,
		RiskPct:          s.RiskPct,
		MaxDrawdownPct:   s.MaxDrawdownPct,
		MaxTradesPerHour: s.MaxTradesPerHour,
		Strategy: strategy.Config{
			ADXPeriod:        s.ADXPeriod,
			ADXThreshold:     s.ADXThreshold,
			BollingerPeriod:  s.BollingerPeriod,
			BollingerK:       s.BollingerK,
			SuperTrendPeriod: s.SuperTrendPeriod,
			SuperTrendMult:   s.SuperTrendMult,
			StopLossBuffer:   s.SlippagePct,
		},
	}, log)

	start := time.Now()
	res, err := h.Run(context.Background(), candles)
	if err != nil {
		return fmt.Errorf("running bench replay: %w", err)
	}
	elapsed := time.Since(start)

	rate := float64(len(candles)) / elapsed.Seconds()
	fmt.Printf("replayed %d candles in %s (%.0f candles/sec)\n", len(candles), elapsed, rate)
	fmt.Printf("closed trades: %d, final balance: %.2f\n", len(res.Trades), res.FinalBalance)
	return nil
}

func syntheticCandles(n int) []core.Candle {
	out := make([]core.Candle, 0, n)
	start := time.Now().Add(-time.Duration(n) * time.Hour)
	base := 50000.0
	for i := 0; i < n; i++ {
		price := base + 2000*math.Sin(float64(i)/24) + float64(i%7)*10
		open := start.Add(time.Duration(i) * time.Hour)
		out = append(out, core.Candle{
			Symbol: "BENCH", Interval: "1h",
			OpenTime: open, CloseTime: open.Add(time.Hour),
			Open: price, High: price * 1.002, Low: price * 0.998, Close: price,
			Closed: true,
		})
	}
	return out
}
