// Package pricer derives a proxy probability-of-YES for a market from its
// most recent trade and appends timestamped snapshots to the ledger. The
// proxy is intentionally crude (last trade, no order-book weighting);
// consumers must treat it as directional only.
package pricer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/ledger"
)

// Pricer writes price snapshots for tracked markets.
type Pricer struct {
	store  *ledger.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Pricer over the given ledger.
func New(store *ledger.Store, logger *slog.Logger) *Pricer {
	return &Pricer{
		store:  store,
		logger: logger.With(slog.String("component", "pricer")),
		now:    time.Now,
	}
}

// ProxyYesPrice derives the market's proxy YES price from the single most
// recent trade on record: the raw price for a Yes fill, 1-price for a No
// fill, clamped to [0,1]. ok is false when the market has no usable trades
// yet; that is an absence, not an error.
func (p *Pricer) ProxyYesPrice(conditionID string) (float64, bool, error) {
	_, raw, err := p.store.LastInPrefix(ledger.TradePrefix(conditionID))
	if errors.Is(err, domain.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("pricer: latest trade %s: %w", conditionID, err)
	}

	var t domain.Trade
	if err := json.Unmarshal(raw, &t); err != nil {
		return 0, false, fmt.Errorf("pricer: decode latest trade %s: %w", conditionID, err)
	}
	yes, ok := t.ImpliedYesPrice()
	if !ok {
		// Malformed outcome on the latest record: no snapshot this tick.
		return 0, false, nil
	}
	return domain.ClampProbability(yes), true, nil
}

// WriteSnapshot persists a snapshot at the given timestamp and advances the
// market's last-price watermark. A second write at the same timestamp
// overwrites the first.
func (p *Pricer) WriteSnapshot(conditionID string, ts int64, yesPrice float64) error {
	snap := domain.PriceSnapshot{ConditionID: conditionID, Timestamp: ts, YesPrice: yesPrice}
	if err := p.store.PutJSON(ledger.PriceKey(conditionID, ts), snap); err != nil {
		return fmt.Errorf("pricer: write snapshot %s@%d: %w", conditionID, ts, err)
	}
	if err := p.store.PutJSON(ledger.LastPriceTsKey(conditionID), ts); err != nil {
		return fmt.Errorf("pricer: advance watermark %s: %w", conditionID, err)
	}
	return nil
}

// Tick computes the market's proxy price and, when one exists, writes a
// snapshot at the current wall-clock time. Returns the price and whether a
// snapshot was produced.
func (p *Pricer) Tick(conditionID string) (float64, bool, error) {
	yes, ok, err := p.ProxyYesPrice(conditionID)
	if err != nil || !ok {
		return 0, false, err
	}
	ts := p.now().Unix()
	if err := p.WriteSnapshot(conditionID, ts, yes); err != nil {
		return 0, false, err
	}
	p.logger.Debug("price snapshot written",
		slog.String("market", conditionID),
		slog.Int64("ts", ts),
		slog.Float64("yes_price", yes),
	)
	return yes, true, nil
}
