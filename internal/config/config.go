// Package config defines the engine's configuration and validation helpers.
// A single Config is constructed at startup and passed by reference into
// every component entry point; nothing below main reads ambient environment
// state.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SMARTFLOW_* environment
// variables.
type Config struct {
	Ledger     LedgerConfig     `toml:"ledger"`
	Universe   UniverseConfig   `toml:"universe"`
	Ingest     IngestConfig     `toml:"ingest"`
	Price      PriceConfig      `toml:"price"`
	Scoring    ScoringConfig    `toml:"scoring"`
	Smart      SmartConfig      `toml:"smart"`
	Alert      AlertConfig      `toml:"alert"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Feed       FeedConfig       `toml:"feed"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// LedgerConfig holds the embedded store location.
type LedgerConfig struct {
	Path string `toml:"path"`
}

// UniverseConfig controls market selection.
type UniverseConfig struct {
	Size int    `toml:"size"`
	Out  string `toml:"out"`
}

// IngestConfig controls trade collection.
type IngestConfig struct {
	TradeLimit      int     `toml:"trade_limit"`
	BackfillPages   int     `toml:"backfill_pages"`
	PollIntervalSec float64 `toml:"poll_interval_sec"`
	PageSleepSec    float64 `toml:"page_sleep_sec"`
}

// PriceConfig controls snapshot writing.
type PriceConfig struct {
	IntervalSec int `toml:"interval_sec"`
}

// ScoringConfig holds the two edge horizons in seconds.
type ScoringConfig struct {
	ShortHorizonSec int64 `toml:"short_horizon_sec"`
	LongHorizonSec  int64 `toml:"long_horizon_sec"`
	IntervalSec     int   `toml:"interval_sec"`
	FullRescan      bool  `toml:"full_rescan"`
}

// SmartConfig holds the wallet classification thresholds.
type SmartConfig struct {
	MinTrades      int64   `toml:"min_trades"`
	MinVolumeUSD   float64 `toml:"min_volume_usd"`
	ScoreThreshold float64 `toml:"score_threshold"`
}

// AlertConfig controls smart-flow alerting.
type AlertConfig struct {
	WindowSec    int64   `toml:"window_sec"`
	ThresholdUSD float64 `toml:"threshold_usd"`
	IntervalSec  float64 `toml:"interval_sec"`
}

// PolymarketConfig holds API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	DataHost  string `toml:"data_host"`
	WsHost    string `toml:"ws_host"`
}

// FeedConfig controls the live websocket feed.
type FeedConfig struct {
	Enabled bool `toml:"enabled"`
}

// RedisConfig holds signal-bus connection parameters. The bus is optional;
// it is wired only when Addr is set.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Channel    string `toml:"channel"`
	Stream     string `toml:"stream"`
}

// S3Config holds object-storage parameters for the cold archiver. Optional;
// wired only when Bucket is set.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials. Senders with empty
// credentials are simply not wired.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	DiscordWebhook string   `toml:"discord_webhook"`
	Events         []string `toml:"events"`
}

// Defaults returns the built-in configuration, mirroring what the collector
// shipped with before explicit config existed.
func Defaults() Config {
	return Config{
		Ledger:   LedgerConfig{Path: "./data/ledger.db"},
		Universe: UniverseConfig{Size: 100, Out: "./data/universe.json"},
		Ingest: IngestConfig{
			TradeLimit:      200,
			BackfillPages:   10,
			PollIntervalSec: 20,
			PageSleepSec:    0.2,
		},
		Price: PriceConfig{IntervalSec: 60},
		Scoring: ScoringConfig{
			ShortHorizonSec: 3600,
			LongHorizonSec:  14400,
			IntervalSec:     300,
		},
		Smart: SmartConfig{
			MinTrades:      25,
			MinVolumeUSD:   2000.0,
			ScoreThreshold: 0.002,
		},
		Alert: AlertConfig{
			WindowSec:    3600,
			ThresholdUSD: 20000.0,
			IntervalSec:  60,
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws",
		},
		Redis:    RedisConfig{Channel: "smartflow.signals", Stream: "smartflow:signals"},
		Mode:     "alerts",
		LogLevel: "info",
	}
}

// Validate checks the configuration for internally inconsistent or
// impossible values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Ledger.Path) == "" {
		return fmt.Errorf("config: ledger.path must be set")
	}
	if c.Universe.Size <= 0 {
		return fmt.Errorf("config: universe.size must be positive, got %d", c.Universe.Size)
	}
	if c.Ingest.TradeLimit <= 0 {
		return fmt.Errorf("config: ingest.trade_limit must be positive, got %d", c.Ingest.TradeLimit)
	}
	if c.Ingest.BackfillPages <= 0 {
		return fmt.Errorf("config: ingest.backfill_pages must be positive, got %d", c.Ingest.BackfillPages)
	}
	// The loop intervals feed tickers, which reject non-positive durations.
	if c.Ingest.PollIntervalSec <= 0 {
		return fmt.Errorf("config: ingest.poll_interval_sec must be positive, got %g", c.Ingest.PollIntervalSec)
	}
	if c.Price.IntervalSec <= 0 {
		return fmt.Errorf("config: price.interval_sec must be positive, got %d", c.Price.IntervalSec)
	}
	if c.Scoring.IntervalSec <= 0 {
		return fmt.Errorf("config: scoring.interval_sec must be positive, got %d", c.Scoring.IntervalSec)
	}
	if c.Scoring.ShortHorizonSec <= 0 || c.Scoring.LongHorizonSec <= 0 {
		return fmt.Errorf("config: scoring horizons must be positive")
	}
	if c.Scoring.ShortHorizonSec >= c.Scoring.LongHorizonSec {
		return fmt.Errorf("config: scoring.short_horizon_sec (%d) must be below long_horizon_sec (%d)",
			c.Scoring.ShortHorizonSec, c.Scoring.LongHorizonSec)
	}
	if c.Smart.MinTrades < 0 || c.Smart.MinVolumeUSD < 0 {
		return fmt.Errorf("config: smart thresholds must be non-negative")
	}
	if c.Alert.WindowSec <= 0 {
		return fmt.Errorf("config: alert.window_sec must be positive, got %d", c.Alert.WindowSec)
	}
	if c.Alert.IntervalSec <= 0 {
		return fmt.Errorf("config: alert.interval_sec must be positive, got %g", c.Alert.IntervalSec)
	}
	switch c.Mode {
	case "universe", "backfill", "live", "price", "score", "flow", "alerts", "full":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}
	return nil
}
