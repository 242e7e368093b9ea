// Package domain defines the data model shared by every component: trades,
// price snapshots, wallet statistics, and the smart-flow signal. Types here
// are pure values with no I/O; their JSON tags match the records persisted in
// the ledger, so existing stored data decodes without migration.
package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Trade side values as they appear on the wire and in stored records.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade outcome values for a binary market.
const (
	OutcomeYes = "Yes"
	OutcomeNo  = "No"
)

// msThreshold separates second-precision from millisecond-precision unix
// timestamps by magnitude.
const msThreshold = 10_000_000_000

// Trade is a single fill on a binary prediction market. Trades are immutable
// once ingested and are identified by (market, timestamp, ingestion sequence),
// not by content, so re-ingesting the same fill creates a second record unless
// the caller deduplicates upstream.
type Trade struct {
	ConditionID string  `json:"conditionId"`
	Timestamp   int64   `json:"timestamp"` // unix seconds
	Wallet      string  `json:"proxyWallet"`
	Side        string  `json:"side"`    // BUY or SELL
	Outcome     string  `json:"outcome"` // Yes or No
	Size        float64 `json:"size"`
	Price       float64 `json:"price"` // in [0,1]
	TxHash      string  `json:"transactionHash,omitempty"`
	Title       string  `json:"title,omitempty"`
}

// NormalizeTimestamp converts a unix timestamp that may be in milliseconds to
// seconds, detected by magnitude. Non-positive inputs pass through unchanged.
func NormalizeTimestamp(ts int64) int64 {
	if ts > msThreshold {
		return ts / 1000
	}
	return ts
}

// Direction maps the trade's (side, outcome) pair to a sign in YES-price
// space:
//
//	BUY Yes  -> +1
//	SELL Yes -> -1
//	BUY No   -> -1 (buying No bets the yes price down)
//	SELL No  -> +1
//
// Any other combination returns 0, meaning the direction is undefined and the
// trade contributes nothing.
func (t Trade) Direction() int {
	if t.Side != SideBuy && t.Side != SideSell {
		return 0
	}
	switch t.Outcome {
	case OutcomeYes:
		if t.Side == SideBuy {
			return 1
		}
		return -1
	case OutcomeNo:
		if t.Side == SideBuy {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// ImpliedYesPrice converts the trade's fill price into YES-probability space:
// the raw price for Yes fills, 1-price for No fills. ok is false when the
// outcome is invalid.
func (t Trade) ImpliedYesPrice() (float64, bool) {
	switch t.Outcome {
	case OutcomeYes:
		return t.Price, true
	case OutcomeNo:
		return 1.0 - t.Price, true
	default:
		return 0, false
	}
}

// NotionalUSD returns |size * price|, the USD value proxy of the fill.
func (t Trade) NotionalUSD() float64 {
	n := t.Size * t.Price
	if n < 0 {
		return -n
	}
	return n
}

// NormalizeWallet lowercases a wallet address and reports whether it is a
// well-formed 0x-prefixed hex address. Trades with malformed wallets are
// skipped at the point of use rather than aborting the surrounding batch.
func NormalizeWallet(s string) (string, bool) {
	w := strings.ToLower(strings.TrimSpace(s))
	if !common.IsHexAddress(w) {
		return w, false
	}
	return w, true
}

// IsConditionID reports whether s is a well-formed market condition id:
// "0x" followed by exactly 64 hex characters.
func IsConditionID(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
