package pricer

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/ledger"
)

const cid = "0xab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"

func openTestStore(t *testing.T) *ledger.Store {
	t.Helper()
	s, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestPricer(store *ledger.Store, nowUnix int64) *Pricer {
	p := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = func() time.Time { return time.Unix(nowUnix, 0) }
	return p
}

func putTrade(t *testing.T, store *ledger.Store, ts int64, seq int, outcome string, price float64) {
	t.Helper()
	tr := domain.Trade{
		ConditionID: cid,
		Timestamp:   ts,
		Outcome:     outcome,
		Side:        domain.SideBuy,
		Size:        10,
		Price:       price,
	}
	require.NoError(t, store.PutJSON(ledger.TradeKey(cid, ts, seq), tr))
}

func TestProxyYesPriceAbsentWithoutTrades(t *testing.T) {
	store := openTestStore(t)
	p := newTestPricer(store, 5000)

	_, ok, err := p.ProxyYesPrice(cid)
	require.NoError(t, err)
	assert.False(t, ok)

	// No trades means no snapshot, not a zero-price snapshot.
	_, ok, err = p.Tick(cid)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = store.Get(ledger.LastPriceTsKey(cid))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProxyYesPriceUsesLatestTrade(t *testing.T) {
	store := openTestStore(t)
	p := newTestPricer(store, 5000)

	putTrade(t, store, 1000, 0, domain.OutcomeYes, 0.30)
	putTrade(t, store, 2000, 0, domain.OutcomeNo, 0.30) // latest: yes = 0.70

	yes, ok, err := p.ProxyYesPrice(cid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.70, yes, 1e-12)
}

func TestProxyYesPriceClamped(t *testing.T) {
	store := openTestStore(t)
	p := newTestPricer(store, 5000)

	putTrade(t, store, 1000, 0, domain.OutcomeNo, 1.25) // 1 - 1.25 = -0.25 -> 0
	yes, ok, err := p.ProxyYesPrice(cid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, yes)
}

func TestTickWritesSnapshotAndWatermark(t *testing.T) {
	store := openTestStore(t)
	p := newTestPricer(store, 4600)

	putTrade(t, store, 1000, 0, domain.OutcomeYes, 0.50)

	yes, ok, err := p.Tick(cid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.50, yes, 1e-12)

	var snap domain.PriceSnapshot
	require.NoError(t, store.GetJSON(ledger.PriceKey(cid, 4600), &snap))
	assert.Equal(t, cid, snap.ConditionID)
	assert.Equal(t, int64(4600), snap.Timestamp)
	assert.InDelta(t, 0.50, snap.YesPrice, 1e-12)

	var wm int64
	require.NoError(t, store.GetJSON(ledger.LastPriceTsKey(cid), &wm))
	assert.Equal(t, int64(4600), wm)
}

func TestWriteSnapshotOverwritesSameTimestamp(t *testing.T) {
	store := openTestStore(t)
	p := newTestPricer(store, 5000)

	require.NoError(t, p.WriteSnapshot(cid, 4600, 0.40))
	require.NoError(t, p.WriteSnapshot(cid, 4600, 0.55))

	var snap domain.PriceSnapshot
	require.NoError(t, store.GetJSON(ledger.PriceKey(cid, 4600), &snap))
	assert.InDelta(t, 0.55, snap.YesPrice, 1e-12)

	var count int
	require.NoError(t, store.ScanPrefix(ledger.PricePrefix(cid), 0, func(string, []byte) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}
