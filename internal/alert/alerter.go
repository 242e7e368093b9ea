// Package alert turns smart-flow aggregates into operator alerts. An alert
// fires when the absolute net smart USD flow of a market over the trailing
// window crosses the configured threshold.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/notify"
	"github.com/smartflow/engine/internal/scoring"
)

// FlowSource computes the smart-flow aggregate for one market.
type FlowSource interface {
	SmartFlow(ctx context.Context, conditionID string, windowSec int64, th scoring.SmartThresholds) (domain.SmartFlow, error)
}

// Notifier delivers a formatted alert to operator channels.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Publisher mirrors a fired signal onto the signal bus.
type Publisher interface {
	PublishSignal(ctx context.Context, sig domain.SmartFlow) error
}

// Config holds the alerting parameters.
type Config struct {
	WindowSec    int64
	ThresholdUSD float64
	Thresholds   scoring.SmartThresholds
}

// Alerter evaluates markets against the flow threshold. A market that fires
// is muted for one full window so a persistent imbalance produces one alert
// per window rather than one per evaluation cycle.
type Alerter struct {
	flows     FlowSource
	notifier  Notifier
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	lastFired map[string]int64
}

// New creates an Alerter. notifier and publisher may be nil; firing then
// only logs.
func New(flows FlowSource, notifier Notifier, publisher Publisher, cfg Config, logger *slog.Logger) *Alerter {
	return &Alerter{
		flows:     flows,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "alerter")),
		now:       time.Now,
		lastFired: make(map[string]int64),
	}
}

// CheckMarket evaluates one market and fires when the threshold is crossed.
// Returns the computed flow and whether an alert fired. Delivery failures
// are logged but do not fail the evaluation; the aggregate itself failing
// does.
func (a *Alerter) CheckMarket(ctx context.Context, conditionID string) (domain.SmartFlow, bool, error) {
	flow, err := a.flows.SmartFlow(ctx, conditionID, a.cfg.WindowSec, a.cfg.Thresholds)
	if err != nil {
		return domain.SmartFlow{}, false, fmt.Errorf("alert: flow %s: %w", conditionID, err)
	}
	if math.Abs(flow.NetUSD) < a.cfg.ThresholdUSD {
		return flow, false, nil
	}

	now := a.now().Unix()
	if last, ok := a.lastFired[conditionID]; ok && now-last < a.cfg.WindowSec {
		return flow, false, nil
	}
	a.lastFired[conditionID] = now

	a.fire(ctx, flow)
	return flow, true, nil
}

// CheckAll evaluates every market, continuing past per-market failures. The
// first error encountered is returned after the sweep completes.
func (a *Alerter) CheckAll(ctx context.Context, conditionIDs []string) error {
	var firstErr error
	for _, cid := range conditionIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, _, err := a.CheckMarket(ctx, cid); err != nil {
			a.logger.ErrorContext(ctx, "market check failed",
				slog.String("market", cid),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (a *Alerter) fire(ctx context.Context, flow domain.SmartFlow) {
	direction := "buying"
	if flow.NetUSD < 0 {
		direction = "selling"
	}
	title := fmt.Sprintf("Smart money %s: %s", direction, flow.ConditionID)
	message := fmt.Sprintf(
		"net %+.0f USD over %dm (%d trades, %d wallets, %.0f USD gross)",
		flow.NetUSD, flow.WindowSec/60, flow.SmartTradeCount, flow.SmartWalletCount, flow.VolumeUSD,
	)

	a.logger.InfoContext(ctx, "smart flow alert",
		slog.String("market", flow.ConditionID),
		slog.Float64("net_usd", flow.NetUSD),
		slog.Int64("trades", flow.SmartTradeCount),
		slog.Int64("wallets", flow.SmartWalletCount),
	)

	if a.notifier != nil {
		if err := a.notifier.Notify(ctx, notify.EventSmartFlow, title, message); err != nil {
			a.logger.ErrorContext(ctx, "alert delivery failed", slog.String("error", err.Error()))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.PublishSignal(ctx, flow); err != nil {
			a.logger.ErrorContext(ctx, "signal publish failed", slog.String("error", err.Error()))
		}
	}
}
