package domain

// WalletStats is the long-lived, market-agnostic accumulator of a wallet's
// behavior. It is mutated exclusively through additive deltas and never
// deleted. The JSON field names (n_trades, sum_edge_1h, ...) match the
// records the original collector wrote, so existing ledgers decode as-is:
// the short horizon maps to the *_1h fields and the long horizon to *_4h.
type WalletStats struct {
	Wallet         string  `json:"wallet"`
	TradeCount     int64   `json:"n_trades"`
	VolumeUSD      float64 `json:"volume_usd"`
	SumEdgeShort   float64 `json:"sum_edge_1h"`
	CountEdgeShort int64   `json:"cnt_edge_1h"`
	SumEdgeLong    float64 `json:"sum_edge_4h"`
	CountEdgeLong  int64   `json:"cnt_edge_4h"`
	ScoreShort     float64 `json:"score_1h"`
	ScoreLong      float64 `json:"score_4h"`
	Score          float64 `json:"score"`
}

// StatsDelta is one trade's additive contribution to a wallet's stats.
type StatsDelta struct {
	TradeCount     int64
	VolumeUSD      float64
	SumEdgeShort   float64
	CountEdgeShort int64
	SumEdgeLong    float64
	CountEdgeLong  int64
}

// Add folds a delta into the running sums. Scores are stale until Recompute
// is called.
func (s *WalletStats) Add(d StatsDelta) {
	s.TradeCount += d.TradeCount
	s.VolumeUSD += d.VolumeUSD
	s.SumEdgeShort += d.SumEdgeShort
	s.CountEdgeShort += d.CountEdgeShort
	s.SumEdgeLong += d.SumEdgeLong
	s.CountEdgeLong += d.CountEdgeLong
}

// Recompute derives the per-horizon scores and the blended score from the
// running sums: scoreX = sumEdgeX / max(1, countEdgeX) and
// score = 0.6*scoreShort + 0.4*scoreLong.
func (s *WalletStats) Recompute() {
	s.ScoreShort = s.SumEdgeShort / float64(max64(1, s.CountEdgeShort))
	s.ScoreLong = s.SumEdgeLong / float64(max64(1, s.CountEdgeLong))
	s.Score = 0.6*s.ScoreShort + 0.4*s.ScoreLong
}

// IsSmart reports whether the wallet clears all three caller-supplied
// thresholds. No defaults are baked in here.
func (s WalletStats) IsSmart(minTrades int64, minVolumeUSD, scoreThreshold float64) bool {
	return s.TradeCount >= minTrades &&
		s.VolumeUSD >= minVolumeUSD &&
		s.Score >= scoreThreshold
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
