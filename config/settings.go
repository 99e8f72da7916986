// Package config loads engine settings from a YAML file layered with
// environment variables for secrets, following the teacher's
// core.Settings shape plus the env-for-secrets pattern seen in
// gatiella-binance-trading-bot and ChoSanghyuk-blackholedex.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Settings is the root configuration for a live-trading or backtest run.
type Settings struct {
	Symbol            string        `yaml:"symbol"`
	PrimaryInterval   string        `yaml:"primary_interval"`
	ProbeInterval     string        `yaml:"probe_interval"`
	ADXPeriod         int           `yaml:"adx_period"`
	ADXThreshold      float64       `yaml:"adx_threshold"`
	BollingerPeriod   int           `yaml:"bollinger_period"`
	BollingerK        float64       `yaml:"bollinger_k"`
	RSIPeriod         int           `yaml:"rsi_period"`
	SuperTrendPeriod  int           `yaml:"supertrend_period"`
	SuperTrendMult    float64       `yaml:"supertrend_mult"`
	RiskPct           float64       `yaml:"risk_pct"`
	Leverage          int           `yaml:"leverage"`
	MaxDrawdownPct    float64       `yaml:"max_drawdown_pct"`
	MaxTradesPerHour  int           `yaml:"max_trades_per_hour"`
	SlippagePct       float64       `yaml:"slippage_pct"`
	MaxOrderRetries   int           `yaml:"max_order_retries"`
	WarmupCandles     int           `yaml:"warmup_candles"`
	WatchdogInterval  durationYAML  `yaml:"watchdog_interval"`
	RESTTimeout       durationYAML  `yaml:"rest_timeout"`
	SettleDelay       durationYAML  `yaml:"settle_delay"`
	ReconnectBackoff  durationYAML  `yaml:"reconnect_backoff"`
	StorageDriver     string        `yaml:"storage_driver"` // "sql" or "buntdb"
	StorageDSN        string        `yaml:"storage_dsn"`
	LogLevel          string        `yaml:"log_level"`
	LogJSON           bool          `yaml:"log_json"`
	Testnet           bool          `yaml:"testnet"`

	APIBaseURL  string `yaml:"api_base_url"`
	WSBaseURL   string `yaml:"ws_base_url"`
	AssetIndex  int    `yaml:"asset_index"`
	IsCross     bool   `yaml:"is_cross"`

	// Secrets, populated from the environment, never from YAML.
	PrivateKeyHex string
	TelegramToken string
	TelegramChat  int64
	TelegramUsers []int64
	StoreURL      string
	StoreKey      string
	LiveTrading   bool
}

// durationYAML lets settings.yaml use human strings ("10s", "1h") via
// go-str2duration, matching the teacher's use of the same library for
// CLI-facing interval flags.
type durationYAML struct {
	time.Duration
}

func (d *durationYAML) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := str2duration.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Load reads the YAML settings file at path and layers environment
// variables (loaded from a .env file if present) for secrets.
func Load(path string) (*Settings, error) {
	_ = godotenv.Load() // best-effort; absent .env is not an error

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}

	s.PrivateKeyHex = os.Getenv("HL_PRIVATE_KEY")
	s.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	s.StoreURL = os.Getenv("STORE_URL")
	s.StoreKey = os.Getenv("STORE_KEY")

	if v := os.Getenv("TELEGRAM_USERS"); v != "" {
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid TELEGRAM_USERS entry %q: %w", part, err)
			}
			s.TelegramUsers = append(s.TelegramUsers, id)
		}
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		s.TelegramChat = id
	}

	s.LiveTrading = os.Getenv("LIVE_TRADING") == "true"

	if s.PrivateKeyHex == "" {
		return nil, fmt.Errorf("HL_PRIVATE_KEY is required")
	}

	return s, nil
}

// Default returns baseline settings matching spec.md's defaults
// (5x isolated leverage, ~100-candle warmup, 5s reconnect sleep).
func Default() *Settings {
	return &Settings{
		PrimaryInterval:  "1h",
		ProbeInterval:    "5m",
		ADXPeriod:        14,
		ADXThreshold:     25,
		BollingerPeriod:  20,
		BollingerK:       2,
		RSIPeriod:        14,
		SuperTrendPeriod: 10,
		SuperTrendMult:   3,
		RiskPct:          1,
		Leverage:         5,
		MaxDrawdownPct:   20,
		MaxTradesPerHour: 5,
		SlippagePct:      0.05,
		MaxOrderRetries:  5,
		WarmupCandles:    100,
		WatchdogInterval: durationYAML{10 * time.Second},
		RESTTimeout:      durationYAML{30 * time.Second},
		SettleDelay:      durationYAML{2 * time.Second},
		ReconnectBackoff: durationYAML{5 * time.Second},
		StorageDriver:    "buntdb",
		StorageDSN:       "perpbot.db",
		LogLevel:         "info",
		APIBaseURL:       "https://api.hyperliquid.xyz",
		WSBaseURL:        "wss://api.hyperliquid.xyz/ws",
		IsCross:          false,
	}
}
