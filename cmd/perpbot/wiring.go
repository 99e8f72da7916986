package main

import (
	"fmt"

	"github.com/raykavin/perpbot/config"
	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/exchange"
	"github.com/raykavin/perpbot/logger"
	"github.com/raykavin/perpbot/signer"
	"github.com/raykavin/perpbot/storage"
	"gorm.io/driver/sqlite"
)

// buildLogger constructs the shared zerolog-backed core.Logger.
func buildLogger(s *config.Settings) (core.Logger, error) {
	return logger.New(s.LogLevel, s.LogJSON)
}

// buildExchange wires the EIP-712 signer into the signed REST/websocket
// client, matching spec.md §4.5's exchange surface.
func buildExchange(s *config.Settings, log core.Logger) (*exchange.Client, error) {
	sign, err := signer.New(s.PrivateKeyHex, s.Testnet)
	if err != nil {
		return nil, fmt.Errorf("constructing signer: %w", err)
	}
	return exchange.New(s.APIBaseURL, s.WSBaseURL, sign, s.AssetIndex, s.IsCross,
		exchange.WithLogger(log),
	), nil
}

// buildStore wires one of the two durable adapters per
// Settings.StorageDriver, matching spec.md §6's storage interface.
func buildStore(s *config.Settings) (core.Store, error) {
	switch s.StorageDriver {
	case "sql":
		return storage.NewSQLStore(sqlite.Open(s.StorageDSN))
	case "buntdb", "":
		return storage.NewBuntStore(s.StorageDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", s.StorageDriver)
	}
}
