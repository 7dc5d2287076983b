package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/emojibot/internal/blob/s3"
	"github.com/alanyoungcy/emojibot/internal/domain"
	"github.com/alanyoungcy/emojibot/internal/platform/exchange"
	"github.com/alanyoungcy/emojibot/internal/scheduler"
	"github.com/alanyoungcy/emojibot/internal/server"
	"github.com/alanyoungcy/emojibot/internal/server/handler"
	"github.com/alanyoungcy/emojibot/internal/server/ws"
	"github.com/alanyoungcy/emojibot/internal/service"
)

// TradeMode runs the poll loop with order submission. With Redis enabled it
// first takes the per-team trader lock and stops trading if the lock is lost.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runLoop(ctx, deps, false)
}

// MonitorMode runs the poll loop without submitting orders; every intent is
// logged and published as a decision.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runLoop(ctx, deps, true)
}

// RegisterMode registers exchange.team_name and writes the credentials as
// .env lines to out.
func (a *App) RegisterMode(ctx context.Context, client *exchange.Client, out io.Writer) error {
	team := a.cfg.Exchange.TeamName
	a.logger.InfoContext(ctx, "registering team", slog.String("team_name", team))

	creds, err := client.Register(ctx, team)
	if err != nil {
		return fmt.Errorf("register mode: %w", err)
	}

	a.logger.InfoContext(ctx, "team registered", slog.String("team_id", creds.TeamID))
	_, err = fmt.Fprintf(out, "EMOJIBOT_EXCHANGE_TEAM_ID=%s\nEMOJIBOT_EXCHANGE_API_KEY=%s\n", creds.TeamID, creds.APIKey)
	return err
}

func (a *App) runLoop(ctx context.Context, deps *Dependencies, dryRun bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	team := a.cfg.Exchange.TeamID
	g, ctx := errgroup.WithContext(ctx)

	// Order path: validation, funds/position checks, journal, events.
	risk := service.NewRiskService(a.logger)
	orderSvc := service.NewOrderService(deps.Exchange, risk, a.logger).
		WithEventBus(deps.SignalBus).
		WithRateLimiter(deps.RateLimiter, team, a.cfg.Trading.OrdersPerSecond).
		WithNotifier(deps.Notifier)
	if deps.OrderStore != nil {
		orderSvc.WithJournal(deps.OrderStore, deps.AuditStore)
	}

	reporters := []scheduler.Reporter{scheduler.NewBusReporter(deps.SignalBus, team)}
	if deps.BlobWriter != nil {
		archiver := s3blob.NewReportArchiver(deps.BlobWriter, team)
		if deps.OrderStore != nil {
			archiver.WithJournal(deps.OrderStore)
		}
		reporters = append(reporters, archiver)
	}
	if deps.Notifier.Enabled() {
		reporters = append(reporters, scheduler.NewNotifyReporter(deps.Notifier))
	}

	loop := scheduler.New(scheduler.Config{
		Symbols:       a.cfg.Trading.Symbols,
		PollInterval:  a.cfg.Trading.PollInterval.Duration,
		TradeQuantity: a.cfg.Trading.TradeQuantity,
		ReportEvery:   a.cfg.Trading.ReportEvery,
		DryRun:        dryRun,
	}, a.cfg.Trading.Params(), deps.Exchange, orderSvc, a.logger).
		WithReporters(reporters...).
		WithEventBus(deps.SignalBus).
		WithNotifier(deps.Notifier)

	if !dryRun && deps.Locker != nil {
		unlock, refresh, err := deps.Locker.Acquire(ctx, "trader:"+team, a.cfg.Redis.LockTTL.Duration)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return fmt.Errorf("trade mode: another instance is trading for team %s: %w", team, err)
			}
			return fmt.Errorf("trade mode: acquire trader lock: %w", err)
		}
		defer unlock()

		g.Go(func() error {
			return a.holdLock(ctx, refresh, loop)
		})
	}

	g.Go(func() error {
		defer cancel()
		return loop.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		var manual handler.OrderSubmitter
		if !dryRun {
			manual = orderSvc
		}
		a.startHTTPServer(ctx, g, deps, loop, manual)
	}

	return g.Wait()
}

// holdLock refreshes the trader lock at a third of its TTL. Losing the lock
// stops the loop after the symbol in progress.
func (a *App) holdLock(ctx context.Context, refresh func(context.Context) error, loop *scheduler.Scheduler) error {
	ticker := time.NewTicker(a.cfg.Redis.LockTTL.Duration / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.ErrorContext(ctx, "trader lock lost, stopping loop",
					slog.String("error", err.Error()),
				)
				loop.Stop()
				return fmt.Errorf("trade mode: refresh trader lock: %w", err)
			}
		}
	}
}

func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	loop *scheduler.Scheduler,
	orders handler.OrderSubmitter,
) {
	health := handler.NewHealthHandler(a.logger)
	for name, p := range deps.Checks {
		health.WithCheck(name, p)
	}

	hub := ws.NewHub(deps.SignalBus, func() any { return loop.Status() }, a.logger)
	if h, ok := deps.SignalBus.(ws.HistoryReader); ok {
		hub.WithHistory(h, a.cfg.Server.ReplayEvents)
	}
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	srv := server.NewServer(server.Config{
		Port:              a.cfg.Server.Port,
		CORSOrigins:       a.cfg.Server.CORSOrigins,
		APIKey:            a.cfg.Server.APIKey,
		RateLimiter:       deps.RateLimiter,
		RequestsPerMinute: a.cfg.Server.RequestsPerMinute,
	}, server.Handlers{
		Health: health,
		Status: handler.NewStatusHandler(a.cfg.Mode, a.cfg.Exchange.TeamName, loop),
		Orders: handler.NewOrderHandler(deps.OrderStore, orders, a.logger),
		Audit:  handler.NewAuditHandler(deps.AuditStore, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
