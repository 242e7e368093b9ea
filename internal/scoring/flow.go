package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/ledger"
)

// SmartThresholds are the three classification thresholds a wallet must
// clear to count as smart. All caller-supplied; no defaults live here.
type SmartThresholds struct {
	MinTrades      int64
	MinVolumeUSD   float64
	ScoreThreshold float64
}

// FlowAggregator computes the net signed USD flow of smart wallets in a
// trailing window. Every call is a full re-scan of the market's window; there
// is no incremental windowing state, trading simplicity for
// O(trades-in-window) cost per invocation.
type FlowAggregator struct {
	store  *ledger.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewFlowAggregator creates a FlowAggregator over the ledger.
func NewFlowAggregator(store *ledger.Store, logger *slog.Logger) *FlowAggregator {
	return &FlowAggregator{
		store:  store,
		logger: logger.With(slog.String("component", "flow")),
		now:    time.Now,
	}
}

// SmartFlow aggregates the market's trades in [now-windowSec, now] that were
// made by wallets currently classified smart: net signed USD (direction in
// YES space times notional), gross USD volume, trade count, and distinct
// wallet count. Trades with malformed wallets or unknown/dumb wallets are
// skipped; the wallet lookup always reads the current stats record, so
// reclassification applies immediately.
func (f *FlowAggregator) SmartFlow(ctx context.Context, conditionID string, windowSec int64, th SmartThresholds) (domain.SmartFlow, error) {
	now := f.now().Unix()
	windowStart := now - windowSec

	flow := domain.SmartFlow{
		ConditionID: conditionID,
		AsOf:        now,
		WindowSec:   windowSec,
	}
	wallets := make(map[string]struct{})

	prefix := ledger.TradePrefix(conditionID)
	err := f.store.ScanFrom(prefix, ledger.TradeStartKey(conditionID, windowStart), 0, func(_ string, raw []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		var t domain.Trade
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil
		}
		ts := domain.NormalizeTimestamp(t.Timestamp)
		if ts < windowStart {
			return nil
		}
		if ts > now {
			return ledger.ErrStopScan
		}

		wallet, ok := domain.NormalizeWallet(t.Wallet)
		if !ok {
			return nil
		}

		var stats domain.WalletStats
		if err := f.store.GetJSON(ledger.WalletStatsKey(wallet), &stats); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Never-scored wallet: not smart.
				return nil
			}
			return err
		}
		if !stats.IsSmart(th.MinTrades, th.MinVolumeUSD, th.ScoreThreshold) {
			return nil
		}

		usd := t.NotionalUSD()
		flow.NetUSD += float64(t.Direction()) * usd
		flow.VolumeUSD += usd
		flow.SmartTradeCount++
		wallets[wallet] = struct{}{}
		return nil
	})
	if err != nil {
		return domain.SmartFlow{}, fmt.Errorf("scoring: smart flow %s: %w", conditionID, err)
	}

	flow.SmartWalletCount = int64(len(wallets))
	f.logger.Debug("smart flow aggregated",
		slog.String("market", conditionID),
		slog.Float64("net_usd", flow.NetUSD),
		slog.Float64("vol_usd", flow.VolumeUSD),
		slog.Int64("trades", flow.SmartTradeCount),
		slog.Int64("wallets", flow.SmartWalletCount),
	)
	return flow, nil
}
