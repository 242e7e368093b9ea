package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/feed"
	"github.com/smartflow/engine/internal/notify"
	"github.com/smartflow/engine/internal/scoring"
	"github.com/smartflow/engine/internal/universe"
)

// archiveInterval and archiveRetention control the cold-export loop in full
// mode: once a day, trades older than the retention window are copied to
// object storage.
const (
	archiveInterval  = 24 * time.Hour
	archiveRetention = 30 * 24 * time.Hour
)

// UniverseMode selects the tracked markets and writes the universe file.
// One-shot.
func (a *App) UniverseMode(ctx context.Context, deps *Dependencies) error {
	markets, err := deps.Universe.Select(ctx, a.cfg.Universe.Size, a.cfg.Universe.Out)
	if err != nil {
		return fmt.Errorf("universe mode: %w", err)
	}
	a.logger.InfoContext(ctx, "universe selected", slog.Int("markets", len(markets)))
	return nil
}

// BackfillMode walks the universe and pages historical trades into the
// ledger for each market. One-shot.
func (a *App) BackfillMode(ctx context.Context, deps *Dependencies) error {
	cids, err := a.trackedMarkets()
	if err != nil {
		return fmt.Errorf("backfill mode: %w", err)
	}
	sleep := secs(a.cfg.Ingest.PageSleepSec)
	for _, cid := range cids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := deps.Collector.Backfill(ctx, cid, a.cfg.Ingest.BackfillPages, a.cfg.Ingest.TradeLimit, sleep); err != nil {
			a.logger.ErrorContext(ctx, "backfill failed",
				slog.String("market", cid),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// LiveMode keeps the ledger current: a REST poll loop over every tracked
// market, plus the websocket feed when enabled. Both paths converge on the
// collector, so watermarks and key layout stay identical.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	cids, err := a.trackedMarkets()
	if err != nil {
		return fmt.Errorf("live mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runPollLoop(ctx, deps, cids) })

	if a.cfg.Feed.Enabled && a.cfg.Polymarket.WsHost != "" {
		a.startTradeFeed(ctx, g, deps, cids)
	}
	return g.Wait()
}

// PriceMode writes periodic proxy-price snapshots for every tracked market.
func (a *App) PriceMode(ctx context.Context, deps *Dependencies) error {
	cids, err := a.trackedMarkets()
	if err != nil {
		return fmt.Errorf("price mode: %w", err)
	}
	return a.runPriceLoop(ctx, deps, cids)
}

// ScoreMode periodically folds mature trades into wallet statistics.
func (a *App) ScoreMode(ctx context.Context, deps *Dependencies) error {
	cids, err := a.trackedMarkets()
	if err != nil {
		return fmt.Errorf("score mode: %w", err)
	}
	return a.runScoreLoop(ctx, deps, cids)
}

// FlowMode computes the smart-flow aggregate for every tracked market once
// and logs the result. One-shot; useful for ad-hoc inspection.
func (a *App) FlowMode(ctx context.Context, deps *Dependencies) error {
	cids, err := a.trackedMarkets()
	if err != nil {
		return fmt.Errorf("flow mode: %w", err)
	}
	for _, cid := range cids {
		if err := ctx.Err(); err != nil {
			return err
		}
		flow, err := deps.Flows.SmartFlow(ctx, cid, a.cfg.Alert.WindowSec, a.smartThresholds())
		if err != nil {
			a.logger.ErrorContext(ctx, "flow aggregation failed",
				slog.String("market", cid),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.InfoContext(ctx, "smart flow",
			slog.String("market", cid),
			slog.Float64("net_usd", flow.NetUSD),
			slog.Float64("vol_usd", flow.VolumeUSD),
			slog.Int64("trades", flow.SmartTradeCount),
			slog.Int64("wallets", flow.SmartWalletCount),
		)
	}
	return nil
}

// AlertsMode periodically sweeps every tracked market through the alerter.
func (a *App) AlertsMode(ctx context.Context, deps *Dependencies) error {
	cids, err := a.trackedMarkets()
	if err != nil {
		return fmt.Errorf("alerts mode: %w", err)
	}
	return a.runAlertLoop(ctx, deps, cids)
}

// FullMode runs the whole pipeline: live collection, pricing, scoring,
// alerting, and (when object storage is configured) the daily archive loop.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	cids, err := a.trackedMarkets()
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runPollLoop(ctx, deps, cids) })
	g.Go(func() error { return a.runPriceLoop(ctx, deps, cids) })
	g.Go(func() error { return a.runScoreLoop(ctx, deps, cids) })
	g.Go(func() error { return a.runAlertLoop(ctx, deps, cids) })

	if a.cfg.Feed.Enabled && a.cfg.Polymarket.WsHost != "" {
		a.startTradeFeed(ctx, g, deps, cids)
	}
	if deps.Archiver != nil {
		g.Go(func() error { return a.runArchiveLoop(ctx, deps, cids) })
	}
	return g.Wait()
}

// startTradeFeed adds the websocket ingestion goroutine to the group. Feed
// trades go through the same collector path as polled ones.
func (a *App) startTradeFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies, cids []string) {
	tradeFeed := feed.NewTradeFeed(
		a.cfg.Polymarket.WsHost,
		cids,
		func(ctx context.Context, t domain.Trade) {
			if _, err := deps.Collector.IngestTrades(t.ConditionID, []domain.Trade{t}); err != nil {
				a.logger.ErrorContext(ctx, "feed ingest failed",
					slog.String("market", t.ConditionID),
					slog.String("error", err.Error()),
				)
			}
		},
		a.logger,
	)
	g.Go(func() error {
		defer tradeFeed.Close()
		return tradeFeed.Run(ctx)
	})
}

func (a *App) runPollLoop(ctx context.Context, deps *Dependencies, cids []string) error {
	interval := secs(a.cfg.Ingest.PollIntervalSec)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, cid := range cids {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := deps.Collector.PollLiveOnce(ctx, cid, a.cfg.Ingest.TradeLimit); err != nil {
				a.logger.ErrorContext(ctx, "poll failed",
					slog.String("market", cid),
					slog.String("error", err.Error()),
				)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *App) runPriceLoop(ctx context.Context, deps *Dependencies, cids []string) error {
	ticker := time.NewTicker(time.Duration(a.cfg.Price.IntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		for _, cid := range cids {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, _, err := deps.Pricer.Tick(cid); err != nil {
				a.logger.ErrorContext(ctx, "price tick failed",
					slog.String("market", cid),
					slog.String("error", err.Error()),
				)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *App) runScoreLoop(ctx context.Context, deps *Dependencies, cids []string) error {
	ticker := time.NewTicker(time.Duration(a.cfg.Scoring.IntervalSec) * time.Second)
	defer ticker.Stop()

	// Full rescan applies to the first pass only; steady state resumes from
	// the cursor.
	fullRescan := a.cfg.Scoring.FullRescan

	for {
		for _, cid := range cids {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := deps.Scorer.ScoreMarket(ctx, cid, scoring.ScoreOptions{FullRescan: fullRescan})
			if err != nil {
				a.logger.ErrorContext(ctx, "scoring pass failed",
					slog.String("market", cid),
					slog.String("error", err.Error()),
				)
				continue
			}
			if report.EdgesComputed > 0 {
				a.logger.InfoContext(ctx, "scoring pass",
					slog.String("market", cid),
					slog.Int("trades", report.TradesSeen),
					slog.Int("edges", report.EdgesComputed),
				)
			}
		}
		fullRescan = false
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *App) runAlertLoop(ctx context.Context, deps *Dependencies, cids []string) error {
	ticker := time.NewTicker(secs(a.cfg.Alert.IntervalSec))
	defer ticker.Stop()

	for {
		if err := deps.Alerter.CheckAll(ctx, cids); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies, cids []string) error {
	ticker := time.NewTicker(archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		cutoff := time.Now().Add(-archiveRetention)
		var total int64
		for _, cid := range cids {
			n, err := deps.Archiver.ArchiveTrades(ctx, cid, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive failed",
					slog.String("market", cid),
					slog.String("error", err.Error()),
				)
				continue
			}
			total += n
		}
		if total > 0 && deps.Notifier != nil {
			_ = deps.Notifier.Notify(ctx, notify.EventArchive,
				"Trade archive complete",
				fmt.Sprintf("%d records exported (cutoff %s)", total, cutoff.Format(time.RFC3339)),
			)
		}
	}
}

// trackedMarkets loads the universe file and returns its condition ids.
func (a *App) trackedMarkets() ([]string, error) {
	u, err := universe.Load(a.cfg.Universe.Out)
	if err != nil {
		return nil, fmt.Errorf("load universe (run universe mode first): %w", err)
	}
	if len(u.Markets) == 0 {
		return nil, fmt.Errorf("universe file %s lists no markets", a.cfg.Universe.Out)
	}
	cids := make([]string, 0, len(u.Markets))
	for _, m := range u.Markets {
		cids = append(cids, m.ConditionID)
	}
	return cids, nil
}

func (a *App) smartThresholds() scoring.SmartThresholds {
	return scoring.SmartThresholds{
		MinTrades:      a.cfg.Smart.MinTrades,
		MinVolumeUSD:   a.cfg.Smart.MinVolumeUSD,
		ScoreThreshold: a.cfg.Smart.ScoreThreshold,
	}
}

func secs(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
