package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smartflow/engine/internal/alert"
	s3blob "github.com/smartflow/engine/internal/blob/s3"
	"github.com/smartflow/engine/internal/bus/redis"
	"github.com/smartflow/engine/internal/config"
	"github.com/smartflow/engine/internal/ingest"
	"github.com/smartflow/engine/internal/ledger"
	"github.com/smartflow/engine/internal/notify"
	"github.com/smartflow/engine/internal/platform/polymarket"
	"github.com/smartflow/engine/internal/pricer"
	"github.com/smartflow/engine/internal/scoring"
	"github.com/smartflow/engine/internal/universe"
)

// Dependencies bundles everything the modes need. Wire constructs it and the
// returned cleanup function tears it down.
type Dependencies struct {
	Store *ledger.Store

	Gamma *polymarket.GammaClient
	Data  *polymarket.DataClient

	Universe  *universe.Builder
	Collector *ingest.Collector
	Pricer    *pricer.Pricer
	Scorer    *scoring.Scorer
	Flows     *scoring.FlowAggregator
	Alerter   *alert.Alerter

	// Optional: nil when not configured.
	SignalBus *redis.SignalBus
	Archiver  *s3blob.Archiver

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependencies from the configuration. The
// ledger and the API clients are always built; Redis, S3, and notification
// channels only when configured.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: ledger: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })

	deps := &Dependencies{
		Store: store,
		Gamma: polymarket.NewGammaClient(cfg.Polymarket.GammaHost),
		Data:  polymarket.NewDataClient(cfg.Polymarket.DataHost),
	}
	deps.Universe = universe.NewBuilder(deps.Gamma, logger)
	deps.Collector = ingest.NewCollector(store, deps.Data, logger)
	deps.Pricer = pricer.New(store, logger)
	deps.Scorer = scoring.NewScorer(store, cfg.Scoring.ShortHorizonSec, cfg.Scoring.LongHorizonSec, logger)
	deps.Flows = scoring.NewFlowAggregator(store, logger)

	// --- Redis signal bus (optional) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.Channel, cfg.Redis.Stream)
	}

	// --- S3 archive target (optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Archiver = s3blob.NewArchiver(store, s3blob.NewWriter(s3Client), logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	var publisher alert.Publisher
	if deps.SignalBus != nil {
		publisher = deps.SignalBus
	}
	deps.Alerter = alert.New(deps.Flows, deps.Notifier, publisher, alert.Config{
		WindowSec:    cfg.Alert.WindowSec,
		ThresholdUSD: cfg.Alert.ThresholdUSD,
		Thresholds: scoring.SmartThresholds{
			MinTrades:      cfg.Smart.MinTrades,
			MinVolumeUSD:   cfg.Smart.MinVolumeUSD,
			ScoreThreshold: cfg.Smart.ScoreThreshold,
		},
	}, logger)

	return deps, cleanup, nil
}
