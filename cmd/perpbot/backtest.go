package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raykavin/perpbot/backtest"
	"github.com/raykavin/perpbot/config"
	"github.com/raykavin/perpbot/strategy"
)

const dateLayout = "2006-01-02"

var (
	btStart string
	btEnd   string
	btDays  int
)

func buildBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical candles through the strategy and report performance",
		RunE:  runBacktest,
	}
	cmd.Flags().StringVar(&btStart, "start", "", "start date (e.g. 2024-01-01)")
	cmd.Flags().StringVar(&btEnd, "end", "", "end date (e.g. 2024-06-01)")
	cmd.Flags().IntVar(&btDays, "days", 30, "number of days to replay, counted back from now, if --start/--end are omitted")
	return cmd
}

func runBacktest(cmd *cobra.Command, args []string) error {
	s, err := config.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	log, err := buildLogger(s)
	if err != nil {
		return err
	}

	exch, err := buildExchange(s, log)
	if err != nil {
		return err
	}

	start, end, err := backtestWindow()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	candles, err := exch.HistoricalCandles(ctx, s.Symbol, s.PrimaryInterval, start, end)
	if err != nil {
		return fmt.Errorf("fetching historical candles: %w", err)
	}
	log.WithField("count", len(candles)).Info("fetched candles for backtest replay")

	h := backtest.New(backtest.Config{
		Symbol:           s.Symbol,
		InitialBalance:   10000,
		RiskPct:          s.RiskPct,
		MaxDrawdownPct:   s.MaxDrawdownPct,
		MaxTradesPerHour: s.MaxTradesPerHour,
		SlippageBps:      s.SlippagePct * 100,
		Strategy: strategy.Config{
			ADXPeriod:        s.ADXPeriod,
			ADXThreshold:     s.ADXThreshold,
			BollingerPeriod:  s.BollingerPeriod,
			BollingerK:       s.BollingerK,
			SuperTrendPeriod: s.SuperTrendPeriod,
			SuperTrendMult:   s.SuperTrendMult,
			StopLossBuffer:   s.SlippagePct,
		},
		ShowProgress: true,
	}, log)

	res, err := h.Run(ctx, candles)
	if err != nil {
		return fmt.Errorf("running backtest: %w", err)
	}

	fmt.Println(res.Summary.String())
	fmt.Printf("final balance: %.2f\n", res.FinalBalance)
	fmt.Println()
	return res.Summary.PlotReturns(cmd.OutOrStdout())
}

func backtestWindow() (time.Time, time.Time, error) {
	if btStart == "" && btEnd == "" {
		end := time.Now()
		start := end.AddDate(0, 0, -btDays)
		return start, end, nil
	}
	if btStart == "" || btEnd == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--start and --end must be provided together")
	}
	start, err := time.Parse(dateLayout, btStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start date: %w", err)
	}
	end, err := time.Parse(dateLayout, btEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end date: %w", err)
	}
	return start, end, nil
}
