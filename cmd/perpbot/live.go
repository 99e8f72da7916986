package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raykavin/perpbot/config"
	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/feed"
	"github.com/raykavin/perpbot/notification"
	"github.com/raykavin/perpbot/position"
	"github.com/raykavin/perpbot/strategy"
)

func buildLiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Run the live trading loop against the configured venue",
		RunE:  runLive,
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	s, err := config.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	log, err := buildLogger(s)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	exch, err := buildExchange(s, log)
	if err != nil {
		return err
	}

	store, err := buildStore(s)
	if err != nil {
		return fmt.Errorf("building store: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	balance, err := exch.AccountBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetching initial account balance: %w", err)
	}

	manager := position.New(exch, store, nil, log, core.Bankroll{
		TotalBalance:     balance,
		AvailableBalance: balance,
	}, position.Config{
		RiskPct:          s.RiskPct,
		MaxDrawdownPct:   s.MaxDrawdownPct,
		MaxTradesPerHour: s.MaxTradesPerHour,
	})

	machine := strategy.New(strategy.Config{
		ADXPeriod:        s.ADXPeriod,
		ADXThreshold:     s.ADXThreshold,
		BollingerPeriod:  s.BollingerPeriod,
		BollingerK:       s.BollingerK,
		SuperTrendPeriod: s.SuperTrendPeriod,
		SuperTrendMult:   s.SuperTrendMult,
		StopLossBuffer:   s.SlippagePct,
	})

	loop := feed.New(feed.Config{
		Symbol:           s.Symbol,
		PrimaryInterval:  s.PrimaryInterval,
		ProbeInterval:    s.ProbeInterval,
		WarmupCandles:    s.WarmupCandles,
		Leverage:         s.Leverage,
		IsCross:          s.IsCross,
		WatchdogInterval: s.WatchdogInterval.Duration,
		SettleDelay:      s.SettleDelay.Duration,
		MaxOrderRetries:  s.MaxOrderRetries,
	}, exch, manager, machine, nil, log)

	if s.TelegramToken != "" {
		tg, err := notification.New(s.TelegramToken, s.TelegramUsers, loop, manager, log)
		if err != nil {
			return fmt.Errorf("building telegram notifier: %w", err)
		}
		loop.SetNotifier(tg)
		manager.SetNotifier(tg)
		tg.Start()
		defer tg.Stop()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("received shutdown signal")
		cancel()
	}()

	log.WithField("symbol", s.Symbol).Info("starting live trading loop")
	return loop.Run(ctx)
}
