package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWalletStatsRecompute(t *testing.T) {
	s := WalletStats{
		SumEdgeShort:   0.02,
		CountEdgeShort: 4,
		SumEdgeLong:    0.01,
		CountEdgeLong:  2,
	}
	s.Recompute()
	assert.InDelta(t, 0.005, s.ScoreShort, 1e-12)
	assert.InDelta(t, 0.005, s.ScoreLong, 1e-12)
	assert.InDelta(t, 0.005, s.Score, 1e-12)
}

func TestWalletStatsRecomputeZeroCounts(t *testing.T) {
	// Divides by max(1, count), so zero counts yield zero scores, not NaN.
	s := WalletStats{SumEdgeShort: 0, CountEdgeShort: 0}
	s.Recompute()
	assert.Zero(t, s.ScoreShort)
	assert.Zero(t, s.ScoreLong)
	assert.Zero(t, s.Score)
}

func TestWalletStatsAdd(t *testing.T) {
	var s WalletStats
	s.Add(StatsDelta{TradeCount: 1, VolumeUSD: 40, SumEdgeShort: 0.01, CountEdgeShort: 1})
	s.Add(StatsDelta{TradeCount: 1, VolumeUSD: 60, SumEdgeShort: 0.01, CountEdgeShort: 1, SumEdgeLong: 0.01, CountEdgeLong: 2})
	s.Recompute()

	assert.Equal(t, int64(2), s.TradeCount)
	assert.InDelta(t, 100.0, s.VolumeUSD, 1e-12)
	assert.InDelta(t, 0.01, s.ScoreShort, 1e-12)
	assert.InDelta(t, 0.005, s.ScoreLong, 1e-12)
	assert.InDelta(t, 0.6*0.01+0.4*0.005, s.Score, 1e-12)
}

func TestIsSmartBoundary(t *testing.T) {
	s := WalletStats{TradeCount: 25, VolumeUSD: 2000.0, Score: 0.002}

	assert.True(t, s.IsSmart(25, 2000.0, 0.002))

	low := s
	low.TradeCount = 24
	assert.False(t, low.IsSmart(25, 2000.0, 0.002))

	low = s
	low.VolumeUSD = 2000.0 - 1e-9
	assert.False(t, low.IsSmart(25, 2000.0, 0.002))

	low = s
	low.Score = 0.002 - 1e-9
	assert.False(t, low.IsSmart(25, 2000.0, 0.002))
}
