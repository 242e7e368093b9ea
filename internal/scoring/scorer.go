package scoring

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

// Scorer folds trade edges into per-wallet statistics. The short horizon
// feeds the *_1h stat fields and the long horizon the *_4h fields, whatever
// their configured lengths.
type Scorer struct {
	store        *ledger.Store
	logger       *slog.Logger
	shortHorizon int64 // seconds
	longHorizon  int64 // seconds
	now          func() time.Time
}

// NewScorer creates a Scorer with the given edge horizons in seconds.
func NewScorer(store *ledger.Store, shortHorizonSec, longHorizonSec int64, logger *slog.Logger) *Scorer {
	return &Scorer{
		store:        store,
		logger:       logger.With(slog.String("component", "scorer")),
		shortHorizon: shortHorizonSec,
		longHorizon:  longHorizonSec,
		now:          time.Now,
	}
}

// UpdateWalletStats reads the wallet's current stats (zero-initialized when
// absent), adds the delta, recomputes the scores, and persists the result.
// Applying the same trade's delta twice double-counts it; idempotency is the
// caller's responsibility via the scoring cursor.
func (s *Scorer) UpdateWalletStats(wallet string, delta domain.StatsDelta) (domain.WalletStats, error) {
	key := ledger.WalletStatsKey(wallet)

	var stats domain.WalletStats
	err := s.store.GetJSON(key, &stats)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.WalletStats{}, fmt.Errorf("scoring: read stats %s: %w", wallet, err)
	}
	stats.Wallet = wallet
	stats.Add(delta)
	stats.Recompute()

	if err := s.store.PutJSON(key, stats); err != nil {
		return domain.WalletStats{}, fmt.Errorf("scoring: write stats %s: %w", wallet, err)
	}
	return stats, nil
}

// WalletStats returns the persisted stats for a wallet. ok is false when the
// wallet has never been scored.
func (s *Scorer) WalletStats(wallet string) (domain.WalletStats, bool, error) {
	var stats domain.WalletStats
	err := s.store.GetJSON(ledger.WalletStatsKey(wallet), &stats)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.WalletStats{}, false, nil
	}
	if err != nil {
		return domain.WalletStats{}, false, fmt.Errorf("scoring: read stats %s: %w", wallet, err)
	}
	return stats, true, nil
}

// ScoreOptions controls a scoring pass.
type ScoreOptions struct {
	// FullRescan ignores the per-market cursor and re-processes every stored
	// trade from the beginning. Recovery mode: only run it after wiping the
	// wallet stats it feeds, since re-applying deltas that stats already
	// include double-counts them.
	FullRescan bool
}

// ScoreReport summarizes one scoring pass.
type ScoreReport struct {
	TradesSeen    int
	EdgesComputed int
	Cursor        string // "{ts:010d}:{seq:06d}" of the last trade folded in
}

// ScoreMarket folds the market's trades into wallet statistics, one delta
// per trade: trade count, USD volume, and the short/long horizon edges when
// their forward snapshots exist.
//
// By default the pass resumes strictly after the persisted per-market cursor
// and stops at the first trade too young for the long horizon to have
// elapsed, so each trade is folded in exactly once, after its edges have had
// time to become computable. A trade whose snapshot is still missing at that
// point contributes volume but no edge for that horizon. A pass that fails
// or is cancelled mid-fold still advances the cursor over the trades whose
// deltas committed, so a retry resumes after them instead of re-folding.
func (s *Scorer) ScoreMarket(ctx context.Context, conditionID string, opts ScoreOptions) (ScoreReport, error) {
	prefix := ledger.TradePrefix(conditionID)
	start := prefix
	if !opts.FullRescan {
		cursor, err := s.Cursor(conditionID)
		if err != nil {
			return ScoreReport{}, err
		}
		if cursor != "" {
			// First key strictly after the cursor position.
			start = prefix + cursor + "\x00"
		}
	}

	now := s.now().Unix()
	var report ScoreReport

	// Collect the batch first: the scan holds a read transaction open, and
	// the per-wallet updates below need write transactions of their own.
	type pending struct {
		key   string
		trade domain.Trade
	}
	var batch []pending

	err := s.store.ScanFrom(prefix, start, 0, func(key string, raw []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		var t domain.Trade
		if err := json.Unmarshal(raw, &t); err != nil {
			// Malformed record: skip it, but let the cursor move past.
			s.logger.Warn("skipping undecodable trade record", slog.String("key", key))
			batch = append(batch, pending{key: key})
			return nil
		}
		if domain.NormalizeTimestamp(t.Timestamp)+s.longHorizon > now {
			// Everything from here on is younger; wait for the horizon to
			// elapse so edges are computable before folding the trade in.
			return ledger.ErrStopScan
		}
		batch = append(batch, pending{key: key, trade: t})
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("scoring: score %s: %w", conditionID, err)
	}

	// folded tracks the last record whose delta has actually committed. The
	// cursor must advance to it on every return path, including cancellation
	// and fold errors, or the next pass re-applies deltas the stats already
	// include.
	var folded string
	advance := func() error {
		if folded == "" {
			return nil
		}
		if err := s.store.PutJSON(ledger.ScoreCursorKey(conditionID), folded); err != nil {
			return fmt.Errorf("scoring: advance cursor %s: %w", conditionID, err)
		}
		report.Cursor = folded
		return nil
	}
	abort := func(cause error) (ScoreReport, error) {
		if err := advance(); err != nil {
			s.logger.Warn("cursor not advanced on aborted pass",
				slog.String("market", conditionID),
				slog.String("error", err.Error()),
			)
		}
		return report, cause
	}

	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		if p.trade == (domain.Trade{}) {
			folded = p.key[len(prefix):]
			continue
		}
		report.TradesSeen++

		wallet, ok := domain.NormalizeWallet(p.trade.Wallet)
		if !ok {
			folded = p.key[len(prefix):]
			continue
		}

		delta := domain.StatsDelta{TradeCount: 1, VolumeUSD: p.trade.NotionalUSD()}
		if edge, ok, err := EdgeForTrade(s.store, conditionID, p.trade, s.shortHorizon); err != nil {
			return abort(err)
		} else if ok {
			delta.SumEdgeShort += edge
			delta.CountEdgeShort++
			report.EdgesComputed++
		}
		if edge, ok, err := EdgeForTrade(s.store, conditionID, p.trade, s.longHorizon); err != nil {
			return abort(err)
		} else if ok {
			delta.SumEdgeLong += edge
			delta.CountEdgeLong++
			report.EdgesComputed++
		}

		if _, err := s.UpdateWalletStats(wallet, delta); err != nil {
			return abort(err)
		}
		folded = p.key[len(prefix):]
	}

	return report, advance()
}

// Cursor returns the market's persisted scoring cursor, or "" when no pass
// has completed yet.
func (s *Scorer) Cursor(conditionID string) (string, error) {
	var cursor string
	err := s.store.GetJSON(ledger.ScoreCursorKey(conditionID), &cursor)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("scoring: read cursor %s: %w", conditionID, err)
	}
	return cursor, nil
}

// ResetCursor clears the market's scoring cursor so the next incremental
// pass starts from the beginning. Pair with wiping wallet stats before a
// full rebuild.
func (s *Scorer) ResetCursor(conditionID string) error {
	if err := s.store.Delete(ledger.ScoreCursorKey(conditionID)); err != nil {
		return fmt.Errorf("scoring: reset cursor %s: %w", conditionID, err)
	}
	return nil
}
