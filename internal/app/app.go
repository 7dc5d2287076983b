// Package app wires the emojibot dependencies (exchange client, journal,
// bus, archive, notifications) and runs the configured mode.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alanyoungcy/emojibot/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    os.Stdout,
	}
}

// WithOutput redirects register-mode credential output.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// Run wires dependencies for the configured mode and blocks until the mode
// finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
		slog.String("exchange", a.cfg.Exchange.BaseURL),
	)

	// Registration talks to the exchange only.
	if a.cfg.Mode == "register" {
		return a.RegisterMode(ctx, newExchangeClient(a.cfg), a.out)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch a.cfg.Mode {
	case "trade":
		return a.TradeMode(ctx, deps)
	case "monitor":
		return a.MonitorMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
