package ledger

import "fmt"

// Key schema. All time-indexed keys zero-pad the timestamp to 10 decimal
// digits and the sequence number to 6, so byte-lexicographic key order equals
// timestamp order with deterministic tie-breaking. These exact formats are a
// compatibility surface: ledgers written by earlier collectors must keep
// scanning correctly.
//
//	trade:{conditionID}:{ts:010d}:{seq:06d}
//	price:{conditionID}:{ts:010d}
//	idx:market:{conditionID}:last_trade_ts
//	idx:market:{conditionID}:last_price_ts
//	idx:market:{conditionID}:last_scored
//	wallet:{wallet}:stats

// TradeKey returns the key for one trade record.
func TradeKey(conditionID string, ts int64, seq int) string {
	return fmt.Sprintf("trade:%s:%010d:%06d", conditionID, ts, seq)
}

// TradePrefix returns the scan prefix covering all trades of a market.
func TradePrefix(conditionID string) string {
	return fmt.Sprintf("trade:%s:", conditionID)
}

// TradeStartKey returns the inclusive lower bound for trades at or after ts.
func TradeStartKey(conditionID string, ts int64) string {
	return fmt.Sprintf("trade:%s:%010d", conditionID, ts)
}

// PriceKey returns the key for one price snapshot.
func PriceKey(conditionID string, ts int64) string {
	return fmt.Sprintf("price:%s:%010d", conditionID, ts)
}

// PricePrefix returns the scan prefix covering all snapshots of a market.
func PricePrefix(conditionID string) string {
	return fmt.Sprintf("price:%s:", conditionID)
}

// PriceStartKey returns the inclusive lower bound for snapshots at or after ts.
func PriceStartKey(conditionID string, ts int64) string {
	return fmt.Sprintf("price:%s:%010d", conditionID, ts)
}

// LastTradeTsKey is the per-market ingestion watermark: the highest trade
// timestamp ingested so far.
func LastTradeTsKey(conditionID string) string {
	return fmt.Sprintf("idx:market:%s:last_trade_ts", conditionID)
}

// LastPriceTsKey is the per-market pricing watermark: the timestamp of the
// most recent snapshot written.
func LastPriceTsKey(conditionID string) string {
	return fmt.Sprintf("idx:market:%s:last_price_ts", conditionID)
}

// ScoreCursorKey is the per-market scoring cursor: the "{ts:010d}:{seq:06d}"
// suffix of the last trade key already folded into wallet stats. Scoring
// passes resume strictly after it so re-running does not double-count.
func ScoreCursorKey(conditionID string) string {
	return fmt.Sprintf("idx:market:%s:last_scored", conditionID)
}

// WalletStatsKey is the market-agnostic stats record of one wallet.
func WalletStatsKey(wallet string) string {
	return fmt.Sprintf("wallet:%s:stats", wallet)
}
