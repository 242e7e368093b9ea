package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
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

const (
	cid    = "0xab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"
	wallet = "0xaa00000000000000000000000000000000000001"
)

type captureWriter struct {
	path string
	body []byte
	puts int
}

func (c *captureWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	c.path = path
	c.body = b
	c.puts++
	return nil
}

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	s, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func putTrade(t *testing.T, s *ledger.Store, ts int64, seq int) {
	t.Helper()
	tr := domain.Trade{
		ConditionID: cid,
		Timestamp:   ts,
		Wallet:      wallet,
		Side:        domain.SideBuy,
		Outcome:     domain.OutcomeYes,
		Size:        10,
		Price:       0.5,
	}
	require.NoError(t, s.PutJSON(ledger.TradeKey(cid, ts, seq), tr))
}

func TestArchiveTradesBeforeCutoff(t *testing.T) {
	s := openStore(t)
	putTrade(t, s, 1000, 0)
	putTrade(t, s, 2000, 0)
	putTrade(t, s, 3000, 0) // at/after cutoff, stays out

	w := &captureWriter{}
	a := NewArchiver(s, w, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := a.ArchiveTrades(context.Background(), cid, time.Unix(3000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, w.puts)
	assert.Contains(t, w.path, "archive/trades/"+cid+"/")
	assert.Contains(t, w.path, ".jsonl")

	// Two JSONL lines, oldest first.
	var lines []domain.Trade
	sc := bufio.NewScanner(bytes.NewReader(w.body))
	for sc.Scan() {
		var tr domain.Trade
		require.NoError(t, json.Unmarshal(sc.Bytes(), &tr))
		lines = append(lines, tr)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1000), lines[0].Timestamp)
	assert.Equal(t, int64(2000), lines[1].Timestamp)
}

func TestArchiveTradesEmptyWritesNothing(t *testing.T) {
	s := openStore(t)
	w := &captureWriter{}
	a := NewArchiver(s, w, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := a.ArchiveTrades(context.Background(), cid, time.Unix(5000, 0))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, w.puts)
}
