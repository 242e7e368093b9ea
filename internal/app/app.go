// Package app owns the process lifecycle: it wires the ledger, API clients,
// optional bus/blob backends, and notification channels, then runs the
// goroutines for the configured operating mode until the context ends.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smartflow/engine/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a stack of cleanup functions run in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies, dispatches on the configured mode, and blocks
// until the context is cancelled or the mode completes.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting engine",
		slog.String("mode", a.cfg.Mode),
		slog.String("ledger", a.cfg.Ledger.Path),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "universe":
		return a.UniverseMode(ctx, deps)
	case "backfill":
		return a.BackfillMode(ctx, deps)
	case "live":
		return a.LiveMode(ctx, deps)
	case "price":
		return a.PriceMode(ctx, deps)
	case "score":
		return a.ScoreMode(ctx, deps)
	case "flow":
		return a.FlowMode(ctx, deps)
	case "alerts":
		return a.AlertsMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down engine")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
