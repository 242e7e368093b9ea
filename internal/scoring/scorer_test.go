package scoring

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScorer(store *ledger.Store, nowUnix int64) *Scorer {
	s := NewScorer(store, 3600, 14400, testLogger())
	s.now = func() time.Time { return time.Unix(nowUnix, 0) }
	return s
}

func putTradeRec(t *testing.T, store *ledger.Store, ts int64, seq int, w string, side, outcome string, size, price float64) {
	t.Helper()
	tr := domain.Trade{
		ConditionID: cid,
		Timestamp:   ts,
		Wallet:      w,
		Side:        side,
		Outcome:     outcome,
		Size:        size,
		Price:       price,
	}
	require.NoError(t, store.PutJSON(ledger.TradeKey(cid, ts, seq), tr))
}

func TestUpdateWalletStatsAccumulates(t *testing.T) {
	store := openTestStore(t)
	s := newTestScorer(store, 100000)

	stats, err := s.UpdateWalletStats(wallet, domain.StatsDelta{
		TradeCount: 1, VolumeUSD: 40, SumEdgeShort: 0.02, CountEdgeShort: 4,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.005, stats.ScoreShort, 1e-12)

	stats, err = s.UpdateWalletStats(wallet, domain.StatsDelta{
		TradeCount: 1, VolumeUSD: 60, SumEdgeLong: 0.01, CountEdgeLong: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TradeCount)
	assert.InDelta(t, 100.0, stats.VolumeUSD, 1e-12)
	assert.InDelta(t, 0.005, stats.ScoreShort, 1e-12)
	assert.InDelta(t, 0.005, stats.ScoreLong, 1e-12)
	assert.InDelta(t, 0.005, stats.Score, 1e-12)

	// Persisted copy matches the returned one.
	persisted, ok, err := s.WalletStats(wallet)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stats, persisted)
}

func TestScoreMarketComputesEdges(t *testing.T) {
	store := openTestStore(t)
	// now is far enough out that the trade is mature for both horizons.
	s := newTestScorer(store, 1000+14400)

	putTradeRec(t, store, 1000, 0, wallet, domain.SideBuy, domain.OutcomeYes, 100, 0.40)
	snap := domain.PriceSnapshot{ConditionID: cid, Timestamp: 4600, YesPrice: 0.50}
	require.NoError(t, store.PutJSON(ledger.PriceKey(cid, 4600), snap))
	long := domain.PriceSnapshot{ConditionID: cid, Timestamp: 15400, YesPrice: 0.70}
	require.NoError(t, store.PutJSON(ledger.PriceKey(cid, 15400), long))

	report, err := s.ScoreMarket(context.Background(), cid, ScoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TradesSeen)
	assert.Equal(t, 2, report.EdgesComputed)

	stats, ok, err := s.WalletStats(wallet)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.TradeCount)
	assert.InDelta(t, 40.0, stats.VolumeUSD, 1e-12)
	assert.InDelta(t, 0.10, stats.SumEdgeShort, 1e-12) // (0.50-0.40)*+1
	assert.InDelta(t, 0.30, stats.SumEdgeLong, 1e-12)  // (0.70-0.40)*+1
	assert.InDelta(t, 0.6*0.10+0.4*0.30, stats.Score, 1e-12)
}

func TestScoreMarketCursorPreventsDoubleCounting(t *testing.T) {
	store := openTestStore(t)
	s := newTestScorer(store, 1000+14400)

	putTradeRec(t, store, 1000, 0, wallet, domain.SideBuy, domain.OutcomeYes, 100, 0.40)

	report, err := s.ScoreMarket(context.Background(), cid, ScoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TradesSeen)
	assert.Equal(t, "0000001000:000000", report.Cursor)

	// Re-running over unchanged data folds nothing in again.
	report, err = s.ScoreMarket(context.Background(), cid, ScoreOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.TradesSeen)

	stats, ok, err := s.WalletStats(wallet)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.TradeCount)
}

// cancelWhenCtx reports cancellation as soon as the predicate holds, letting
// a test interrupt a pass at an exact point in its progress.
type cancelWhenCtx struct {
	context.Context
	hit func() bool
}

func (c cancelWhenCtx) Err() error {
	if c.hit() {
		return context.Canceled
	}
	return c.Context.Err()
}

func TestScoreMarketInterruptedPassDoesNotRefold(t *testing.T) {
	store := openTestStore(t)
	s := newTestScorer(store, 2000+14400)

	putTradeRec(t, store, 1000, 0, wallet, domain.SideBuy, domain.OutcomeYes, 100, 0.40)
	putTradeRec(t, store, 2000, 0, wallet, domain.SideBuy, domain.OutcomeYes, 50, 0.40)

	// Cancel between the two folds: the predicate trips once the first
	// trade's delta has committed.
	ctx := cancelWhenCtx{
		Context: context.Background(),
		hit: func() bool {
			_, ok, err := s.WalletStats(wallet)
			require.NoError(t, err)
			return ok
		},
	}
	report, err := s.ScoreMarket(ctx, cid, ScoreOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.TradesSeen)
	assert.Equal(t, "0000001000:000000", report.Cursor)

	// The retry resumes after the committed trade rather than re-folding it.
	report, err = s.ScoreMarket(context.Background(), cid, ScoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TradesSeen)

	stats, ok, err := s.WalletStats(wallet)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.TradeCount)
	assert.InDelta(t, 60.0, stats.VolumeUSD, 1e-12)
}

func TestScoreMarketSkipsImmatureTrades(t *testing.T) {
	store := openTestStore(t)
	// Long horizon has not elapsed for the second trade.
	s := newTestScorer(store, 5000+14400)

	putTradeRec(t, store, 5000, 0, wallet, domain.SideBuy, domain.OutcomeYes, 100, 0.40)
	putTradeRec(t, store, 5001, 0, wallet, domain.SideBuy, domain.OutcomeYes, 50, 0.40)

	report, err := s.ScoreMarket(context.Background(), cid, ScoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TradesSeen)
	assert.Equal(t, "0000005000:000000", report.Cursor)

	// Once the horizon elapses the younger trade is picked up exactly once.
	s.now = func() time.Time { return time.Unix(5001+14400, 0) }
	report, err = s.ScoreMarket(context.Background(), cid, ScoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TradesSeen)

	stats, ok, err := s.WalletStats(wallet)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.TradeCount)
	assert.InDelta(t, 60.0, stats.VolumeUSD, 1e-12)
}

func TestScoreMarketSkipsMalformedWallets(t *testing.T) {
	store := openTestStore(t)
	s := newTestScorer(store, 1000+14400)

	putTradeRec(t, store, 1000, 0, "not-a-wallet", domain.SideBuy, domain.OutcomeYes, 100, 0.40)
	putTradeRec(t, store, 1000, 1, wallet, domain.SideBuy, domain.OutcomeYes, 100, 0.40)

	report, err := s.ScoreMarket(context.Background(), cid, ScoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.TradesSeen)

	_, ok, err := s.WalletStats("not-a-wallet")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, ok, err := s.WalletStats(wallet)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.TradeCount)
}

func TestScoreMarketFullRescan(t *testing.T) {
	store := openTestStore(t)
	s := newTestScorer(store, 1000+14400)

	putTradeRec(t, store, 1000, 0, wallet, domain.SideBuy, domain.OutcomeYes, 100, 0.40)

	_, err := s.ScoreMarket(context.Background(), cid, ScoreOptions{})
	require.NoError(t, err)

	// Recovery: wipe the stats record, then rescan from the beginning.
	require.NoError(t, store.Delete(ledger.WalletStatsKey(wallet)))
	report, err := s.ScoreMarket(context.Background(), cid, ScoreOptions{FullRescan: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TradesSeen)

	stats, ok, err := s.WalletStats(wallet)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.TradeCount)
}

func TestResetCursor(t *testing.T) {
	store := openTestStore(t)
	s := newTestScorer(store, 1000+14400)

	putTradeRec(t, store, 1000, 0, wallet, domain.SideBuy, domain.OutcomeYes, 100, 0.40)
	_, err := s.ScoreMarket(context.Background(), cid, ScoreOptions{})
	require.NoError(t, err)

	cur, err := s.Cursor(cid)
	require.NoError(t, err)
	assert.NotEmpty(t, cur)

	require.NoError(t, s.ResetCursor(cid))
	cur, err = s.Cursor(cid)
	require.NoError(t, err)
	assert.Empty(t, cur)
}
