package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds a Config from defaults, an optional TOML file, and SMARTFLOW_*
// environment variables, in increasing precedence. A .env file in the
// working directory is read first so container deployments can keep secrets
// out of the TOML file.
func Load(path string) (Config, error) {
	// Missing .env is the normal case outside containers.
	_ = godotenv.Load()

	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	setStr("SMARTFLOW_LEDGER_PATH", &c.Ledger.Path)
	setStr("SMARTFLOW_UNIVERSE_OUT", &c.Universe.Out)
	setInt("SMARTFLOW_UNIVERSE_SIZE", &c.Universe.Size)

	setInt("SMARTFLOW_TRADE_LIMIT", &c.Ingest.TradeLimit)
	setInt("SMARTFLOW_BACKFILL_PAGES", &c.Ingest.BackfillPages)
	setFloat64("SMARTFLOW_POLL_INTERVAL_SEC", &c.Ingest.PollIntervalSec)

	setInt("SMARTFLOW_PRICE_INTERVAL_SEC", &c.Price.IntervalSec)

	setInt64("SMARTFLOW_SHORT_HORIZON_SEC", &c.Scoring.ShortHorizonSec)
	setInt64("SMARTFLOW_LONG_HORIZON_SEC", &c.Scoring.LongHorizonSec)
	setBool("SMARTFLOW_FULL_RESCAN", &c.Scoring.FullRescan)

	setInt64("SMARTFLOW_SMART_MIN_TRADES", &c.Smart.MinTrades)
	setFloat64("SMARTFLOW_SMART_MIN_VOLUME_USD", &c.Smart.MinVolumeUSD)
	setFloat64("SMARTFLOW_SMART_SCORE_THRESHOLD", &c.Smart.ScoreThreshold)

	setInt64("SMARTFLOW_ALERT_WINDOW_SEC", &c.Alert.WindowSec)
	setFloat64("SMARTFLOW_ALERT_THRESHOLD_USD", &c.Alert.ThresholdUSD)

	setStr("SMARTFLOW_GAMMA_HOST", &c.Polymarket.GammaHost)
	setStr("SMARTFLOW_DATA_HOST", &c.Polymarket.DataHost)
	setStr("SMARTFLOW_WS_HOST", &c.Polymarket.WsHost)
	setBool("SMARTFLOW_FEED_ENABLED", &c.Feed.Enabled)

	setStr("SMARTFLOW_REDIS_ADDR", &c.Redis.Addr)
	setStr("SMARTFLOW_REDIS_PASSWORD", &c.Redis.Password)
	setInt("SMARTFLOW_REDIS_DB", &c.Redis.DB)
	setBool("SMARTFLOW_REDIS_TLS", &c.Redis.TLSEnabled)

	setStr("SMARTFLOW_S3_ENDPOINT", &c.S3.Endpoint)
	setStr("SMARTFLOW_S3_REGION", &c.S3.Region)
	setStr("SMARTFLOW_S3_BUCKET", &c.S3.Bucket)
	setStr("SMARTFLOW_S3_ACCESS_KEY", &c.S3.AccessKey)
	setStr("SMARTFLOW_S3_SECRET_KEY", &c.S3.SecretKey)

	setStr("SMARTFLOW_TELEGRAM_TOKEN", &c.Notify.TelegramToken)
	setStr("SMARTFLOW_TELEGRAM_CHAT_ID", &c.Notify.TelegramChatID)
	setStr("SMARTFLOW_DISCORD_WEBHOOK", &c.Notify.DiscordWebhook)

	setStr("SMARTFLOW_MODE", &c.Mode)
	setStr("SMARTFLOW_LOG_LEVEL", &c.LogLevel)
}

func setStr(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(key string, dst *int64) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(key string, dst *float64) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(key string, dst *bool) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
