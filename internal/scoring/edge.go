// Package scoring labels trades with the price movement that followed them,
// folds those labels into per-wallet statistics, and aggregates the
// directional flow of smart-classified wallets.
package scoring

import (
	"encoding/json"
	"fmt"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/ledger"
)

// YesPriceAtOrAfter returns the YES price of the first snapshot for the
// market with timestamp >= ts. ok is false when no such snapshot exists yet;
// callers should retry once more snapshots accrue.
func YesPriceAtOrAfter(store *ledger.Store, conditionID string, ts int64) (float64, bool, error) {
	var (
		yes   float64
		found bool
	)
	err := store.ScanFrom(
		ledger.PricePrefix(conditionID),
		ledger.PriceStartKey(conditionID, ts),
		1,
		func(_ string, v []byte) error {
			var snap domain.PriceSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				// A corrupt snapshot record yields "not yet computable"
				// rather than poisoning the scoring pass.
				return ledger.ErrStopScan
			}
			yes = snap.YesPrice
			found = true
			return ledger.ErrStopScan
		},
	)
	if err != nil {
		return 0, false, fmt.Errorf("scoring: price at or after %s@%d: %w", conditionID, ts, err)
	}
	return yes, found, nil
}

// EdgeForTrade computes the trade's realized directional price movement at
// the given horizon, in YES-probability space:
//
//	edge = (futureYes - impliedYes) * direction
//
// where futureYes is the first snapshot at or after trade time + horizon.
// ok is false when the edge is not computable: malformed side/outcome, or no
// snapshot at the horizon yet. Both are absences, never errors.
func EdgeForTrade(store *ledger.Store, conditionID string, t domain.Trade, horizonSec int64) (float64, bool, error) {
	implied, valid := t.ImpliedYesPrice()
	if !valid {
		return 0, false, nil
	}
	dir := t.Direction()
	if dir == 0 {
		return 0, false, nil
	}

	t0 := domain.NormalizeTimestamp(t.Timestamp)
	future, found, err := YesPriceAtOrAfter(store, conditionID, t0+horizonSec)
	if err != nil || !found {
		return 0, false, err
	}
	return (future - implied) * float64(dir), true, nil
}
