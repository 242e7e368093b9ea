package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/ledger"
)

const (
	smartWallet = "0xaa00000000000000000000000000000000000001"
	dumbWallet  = "0xbb00000000000000000000000000000000000002"
	otherSmart  = "0xcc00000000000000000000000000000000000003"
)

var thresholds = SmartThresholds{MinTrades: 25, MinVolumeUSD: 2000.0, ScoreThreshold: 0.002}

func newTestFlow(store *ledger.Store, nowUnix int64) *FlowAggregator {
	f := NewFlowAggregator(store, testLogger())
	f.now = func() time.Time { return time.Unix(nowUnix, 0) }
	return f
}

func putStats(t *testing.T, store *ledger.Store, w string, smart bool) {
	t.Helper()
	stats := domain.WalletStats{Wallet: w, TradeCount: 25, VolumeUSD: 2000.0, Score: 0.002}
	if !smart {
		stats.Score = 0.0
	}
	require.NoError(t, store.PutJSON(ledger.WalletStatsKey(w), stats))
}

func TestSmartFlowAggregation(t *testing.T) {
	store := openTestStore(t)
	now := int64(10000)
	f := newTestFlow(store, now)

	putStats(t, store, smartWallet, true)
	putStats(t, store, otherSmart, true)
	putStats(t, store, dumbWallet, false)

	// In window, smart, BUY Yes: +40.
	putTradeRec(t, store, 9000, 0, smartWallet, domain.SideBuy, domain.OutcomeYes, 100, 0.40)
	// In window, smart, SELL Yes: -25 from a second wallet.
	putTradeRec(t, store, 9100, 0, otherSmart, domain.SideSell, domain.OutcomeYes, 50, 0.50)
	// Same smart wallet again: distinct count stays at 2.
	putTradeRec(t, store, 9200, 0, smartWallet, domain.SideSell, domain.OutcomeNo, 20, 0.50) // +10
	// Dumb wallet ignored.
	putTradeRec(t, store, 9300, 0, dumbWallet, domain.SideBuy, domain.OutcomeYes, 500, 0.50)
	// Unknown wallet ignored.
	putTradeRec(t, store, 9400, 0, "0xdd00000000000000000000000000000000000004", domain.SideBuy, domain.OutcomeYes, 500, 0.50)
	// Outside window ignored.
	putTradeRec(t, store, 100, 0, smartWallet, domain.SideBuy, domain.OutcomeYes, 999, 0.99)

	flow, err := f.SmartFlow(context.Background(), cid, 3600, thresholds)
	require.NoError(t, err)

	assert.Equal(t, cid, flow.ConditionID)
	assert.Equal(t, now, flow.AsOf)
	assert.Equal(t, int64(3600), flow.WindowSec)
	assert.InDelta(t, 40.0-25.0+10.0, flow.NetUSD, 1e-9)
	assert.InDelta(t, 40.0+25.0+10.0, flow.VolumeUSD, 1e-9)
	assert.Equal(t, int64(3), flow.SmartTradeCount)
	assert.Equal(t, int64(2), flow.SmartWalletCount)
}

func TestSmartFlowWindowBoundaries(t *testing.T) {
	store := openTestStore(t)
	now := int64(10000)
	f := newTestFlow(store, now)
	putStats(t, store, smartWallet, true)

	// Exactly at windowStart and exactly at now are both included.
	putTradeRec(t, store, now-3600, 0, smartWallet, domain.SideBuy, domain.OutcomeYes, 10, 0.50)
	putTradeRec(t, store, now, 0, smartWallet, domain.SideBuy, domain.OutcomeYes, 10, 0.50)
	// Future-dated trades are excluded.
	putTradeRec(t, store, now+1, 0, smartWallet, domain.SideBuy, domain.OutcomeYes, 10, 0.50)

	flow, err := f.SmartFlow(context.Background(), cid, 3600, thresholds)
	require.NoError(t, err)
	assert.Equal(t, int64(2), flow.SmartTradeCount)
	assert.InDelta(t, 10.0, flow.NetUSD, 1e-9)
}

func TestSmartFlowEmptyMarket(t *testing.T) {
	store := openTestStore(t)
	f := newTestFlow(store, 10000)

	flow, err := f.SmartFlow(context.Background(), cid, 3600, thresholds)
	require.NoError(t, err)
	assert.Zero(t, flow.NetUSD)
	assert.Zero(t, flow.VolumeUSD)
	assert.Zero(t, flow.SmartTradeCount)
	assert.Zero(t, flow.SmartWalletCount)
}

func TestSmartFlowMalformedWalletSkipped(t *testing.T) {
	store := openTestStore(t)
	f := newTestFlow(store, 10000)
	putStats(t, store, smartWallet, true)

	putTradeRec(t, store, 9000, 0, "bogus", domain.SideBuy, domain.OutcomeYes, 100, 0.40)
	putTradeRec(t, store, 9001, 0, smartWallet, domain.SideBuy, domain.OutcomeYes, 100, 0.40)

	flow, err := f.SmartFlow(context.Background(), cid, 3600, thresholds)
	require.NoError(t, err)
	assert.Equal(t, int64(1), flow.SmartTradeCount)
	assert.Equal(t, int64(1), flow.SmartWalletCount)
}
