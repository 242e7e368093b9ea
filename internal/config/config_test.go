package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(3600), cfg.Scoring.ShortHorizonSec)
	assert.Equal(t, int64(14400), cfg.Scoring.LongHorizonSec)
	assert.Equal(t, int64(25), cfg.Smart.MinTrades)
	assert.InDelta(t, 2000.0, cfg.Smart.MinVolumeUSD, 1e-9)
	assert.InDelta(t, 0.002, cfg.Smart.ScoreThreshold, 1e-12)
	assert.InDelta(t, 20000.0, cfg.Alert.ThresholdUSD, 1e-9)
}

func TestLoadTOMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartflow.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "score"

[ledger]
path = "/var/lib/smartflow/ledger.db"

[scoring]
short_horizon_sec = 1800
long_horizon_sec = 7200

[smart]
min_trades = 10
`), 0o644))

	t.Setenv("SMARTFLOW_SMART_MIN_TRADES", "40")
	t.Setenv("SMARTFLOW_ALERT_THRESHOLD_USD", "50000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "score", cfg.Mode)
	assert.Equal(t, "/var/lib/smartflow/ledger.db", cfg.Ledger.Path)
	assert.Equal(t, int64(1800), cfg.Scoring.ShortHorizonSec)
	// env wins over TOML
	assert.Equal(t, int64(40), cfg.Smart.MinTrades)
	assert.InDelta(t, 50000.0, cfg.Alert.ThresholdUSD, 1e-9)
	// untouched sections keep defaults
	assert.Equal(t, 200, cfg.Ingest.TradeLimit)
}

func TestValidateRejectsInvertedHorizons(t *testing.T) {
	cfg := Defaults()
	cfg.Scoring.ShortHorizonSec = 7200
	cfg.Scoring.LongHorizonSec = 3600
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveIntervals(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"poll", func(c *Config) { c.Ingest.PollIntervalSec = 0 }},
		{"price", func(c *Config) { c.Price.IntervalSec = 0 }},
		{"score", func(c *Config) { c.Scoring.IntervalSec = -300 }},
		{"alert", func(c *Config) { c.Alert.IntervalSec = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateRejectsEmptyLedgerPath(t *testing.T) {
	cfg := Defaults()
	cfg.Ledger.Path = "  "
	assert.Error(t, cfg.Validate())
}
