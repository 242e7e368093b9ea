// Package ingest appends trade records from the upstream market-data service
// into the ledger under time-ordered keys, maintaining a per-market
// last-trade-timestamp watermark.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/ledger"
)

// MarketDataSource fetches trade records from the upstream data service.
// Records come back most-recent-first in bounded pages.
type MarketDataSource interface {
	FetchTrades(ctx context.Context, conditionID string, limit, offset int) ([]domain.Trade, error)
}

// Collector writes trades into the ledger.
type Collector struct {
	store  *ledger.Store
	source MarketDataSource
	logger *slog.Logger
}

// NewCollector creates a Collector over the given ledger and data source.
func NewCollector(store *ledger.Store, source MarketDataSource, logger *slog.Logger) *Collector {
	return &Collector{
		store:  store,
		source: source,
		logger: logger.With(slog.String("component", "collector")),
	}
}

// IngestTrades appends a batch of trades for one market in a single atomic
// write. Timestamps are normalized to seconds; records with non-positive
// timestamps are dropped. The batch-local input index is the sequence number,
// so ties at equal timestamps keep a deterministic order. After the batch
// commits the market's last-trade watermark is raised to the maximum
// timestamp seen (never lowered). Returns the watermark value post-update.
func (c *Collector) IngestTrades(conditionID string, trades []domain.Trade) (int64, error) {
	items := make([]ledger.KV, 0, len(trades))
	var maxTs int64
	for i, t := range trades {
		ts := domain.NormalizeTimestamp(t.Timestamp)
		if ts <= 0 {
			continue
		}
		if ts > maxTs {
			maxTs = ts
		}
		t.Timestamp = ts
		t.ConditionID = conditionID
		b, err := json.Marshal(t)
		if err != nil {
			return 0, fmt.Errorf("ingest: serialize trade %d: %w", i, err)
		}
		items = append(items, ledger.KV{Key: ledger.TradeKey(conditionID, ts, i), Value: b})
	}

	watermark, err := c.Watermark(conditionID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return watermark, nil
	}

	if err := c.store.WriteBatch(items); err != nil {
		return 0, fmt.Errorf("ingest: %s: %w", conditionID, err)
	}
	if maxTs > watermark {
		watermark = maxTs
		if err := c.store.PutJSON(ledger.LastTradeTsKey(conditionID), watermark); err != nil {
			return 0, fmt.Errorf("ingest: advance watermark %s: %w", conditionID, err)
		}
	}
	return watermark, nil
}

// Watermark returns the market's last-trade timestamp, or zero when nothing
// has been ingested yet.
func (c *Collector) Watermark(conditionID string) (int64, error) {
	var ts int64
	err := c.store.GetJSON(ledger.LastTradeTsKey(conditionID), &ts)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ingest: read watermark %s: %w", conditionID, err)
	}
	return ts, nil
}

// Backfill pages backward through the market's trade history, ingesting each
// page. It stops at the first empty page or after pages fetches. sleep
// throttles between pages to stay polite to the upstream API.
func (c *Collector) Backfill(ctx context.Context, conditionID string, pages, limit int, sleep time.Duration) error {
	for page := 0; page < pages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		trades, err := c.source.FetchTrades(ctx, conditionID, limit, page*limit)
		if err != nil {
			return fmt.Errorf("ingest: backfill page %d: %w", page, err)
		}
		if len(trades) == 0 {
			break
		}
		if _, err := c.IngestTrades(conditionID, trades); err != nil {
			return err
		}
		c.logger.Debug("backfill page ingested",
			slog.String("market", conditionID),
			slog.Int("page", page),
			slog.Int("trades", len(trades)),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil
}

// PollLiveOnce fetches one page of the market's most recent trades and
// ingests only those strictly newer than the current watermark. This is a
// best-effort incremental sync: if more than one page's worth of trades
// arrive between polls, the overflow is missed, and there is no gap
// detection or repair. Returns the watermark after the poll.
func (c *Collector) PollLiveOnce(ctx context.Context, conditionID string, limit int) (int64, error) {
	watermark, err := c.Watermark(conditionID)
	if err != nil {
		return 0, err
	}

	trades, err := c.source.FetchTrades(ctx, conditionID, limit, 0)
	if err != nil {
		return 0, fmt.Errorf("ingest: poll %s: %w", conditionID, err)
	}

	fresh := trades[:0:0]
	for _, t := range trades {
		if domain.NormalizeTimestamp(t.Timestamp) > watermark {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 {
		return watermark, nil
	}
	return c.IngestTrades(conditionID, fresh)
}
