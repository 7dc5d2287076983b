// Package scheduler runs the poll loop: every interval it walks the
// configured symbols in order, asks the decision engine what to do, and
// hands accepted intents to the order service.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/emojibot/internal/domain"
	"github.com/alanyoungcy/emojibot/internal/notify"
	"github.com/alanyoungcy/emojibot/internal/strategy"
)

// State is the lifecycle state of a Scheduler.
type State string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
)

// MarketData reads exchange state.
type MarketData interface {
	FetchOrderBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error)
	FetchPortfolio(ctx context.Context) (domain.PortfolioSnapshot, error)
}

// OrderSubmitter validates and submits a single intent.
type OrderSubmitter interface {
	Submit(ctx context.Context, intent domain.TradeIntent) (domain.OrderResult, error)
}

// Reporter receives the portfolio on every reporting iteration.
type Reporter interface {
	Name() string
	Report(ctx context.Context, iteration int64, portfolio domain.PortfolioSnapshot) error
}

// Config controls the loop.
type Config struct {
	Symbols       []string
	PollInterval  time.Duration
	TradeQuantity int64
	// ReportEvery reports the portfolio on every Nth iteration; 0 disables.
	ReportEvery int64
	// DryRun logs intents without submitting them.
	DryRun bool
}

// Scheduler is the sequential poll loop. Symbols are processed one at a
// time in configured order; there is no fan-out.
type Scheduler struct {
	cfg       Config
	params    strategy.Params
	market    MarketData
	orders    OrderSubmitter
	reporters []Reporter
	bus       domain.SignalBus
	notifier  *notify.Notifier
	logger    *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once

	mu            sync.RWMutex
	state         State
	iteration     int64
	startedAt     time.Time
	lastPortfolio *domain.PortfolioSnapshot
	recent        []Decision
	recentLimit   int
}

// New creates a Scheduler.
func New(cfg Config, params strategy.Params, market MarketData, orders OrderSubmitter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		params:      params,
		market:      market,
		orders:      orders,
		logger:      logger.With(slog.String("component", "scheduler")),
		stopCh:      make(chan struct{}),
		state:       StateIdle,
		recentLimit: 200,
	}
}

// WithReporters appends portfolio reporters.
func (s *Scheduler) WithReporters(reporters ...Reporter) *Scheduler {
	s.reporters = append(s.reporters, reporters...)
	return s
}

// WithEventBus publishes every Decision on domain.ChannelDecisions.
func (s *Scheduler) WithEventBus(bus domain.SignalBus) *Scheduler {
	s.bus = bus
	return s
}

// WithNotifier sends industrial_detected and error notifications.
func (s *Scheduler) WithNotifier(n *notify.Notifier) *Scheduler {
	s.notifier = n
	return s
}

// Run loops until ctx is cancelled or Stop is called. A stop request never
// interrupts an iteration mid-symbol: the current symbol completes, the
// remaining symbols are skipped, and Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateRunning
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "scheduler started",
		slog.Any("symbols", s.cfg.Symbols),
		slog.Duration("poll_interval", s.cfg.PollInterval),
		slog.Int64("trade_quantity", s.cfg.TradeQuantity),
		slog.Bool("dry_run", s.cfg.DryRun),
	)

	for !s.stopRequested(ctx) {
		s.RunIteration(ctx)
		if s.stopRequested(ctx) {
			break
		}

		select {
		case <-ctx.Done():
		case <-s.stopCh:
		case <-time.After(s.cfg.PollInterval):
		}
	}

	s.mu.Lock()
	s.state = StateStopped
	iterations := s.iteration
	s.mu.Unlock()

	s.logger.InfoContext(context.WithoutCancel(ctx), "scheduler stopped",
		slog.Int64("iterations", iterations),
	)
	return nil
}

// Stop requests a graceful stop. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// stopRequested reports whether ctx or Stop asked the loop to end, moving
// a running scheduler to StateStopping.
func (s *Scheduler) stopRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
	case <-s.stopCh:
	default:
		return false
	}

	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateStopping
		s.logger.Info("stop requested, finishing current iteration")
	}
	s.mu.Unlock()
	return true
}

// RunIteration processes every configured symbol once and, on reporting
// iterations, reports the portfolio. It returns the iteration number.
// Exchange calls use a context detached from ctx's cancellation so an
// in-flight submission is bounded by the client timeout only.
func (s *Scheduler) RunIteration(ctx context.Context) int64 {
	s.mu.Lock()
	s.iteration++
	n := s.iteration
	s.mu.Unlock()

	opCtx := context.WithoutCancel(ctx)

	for _, symbol := range s.cfg.Symbols {
		if s.stopRequested(ctx) {
			break
		}
		s.processSymbol(opCtx, n, symbol)
	}

	if s.cfg.ReportEvery > 0 && n%s.cfg.ReportEvery == 0 {
		s.report(opCtx, n)
	}
	return n
}

func (s *Scheduler) processSymbol(ctx context.Context, n int64, symbol string) {
	snap, err := s.market.FetchOrderBook(ctx, symbol)
	if err != nil {
		s.logFailure(ctx, "fetch order book", symbol, err)
		s.decide(ctx, Decision{Iteration: n, Symbol: symbol, Action: ActionError, Message: err.Error()})
		return
	}

	if intent, ok := s.params.DetectIndustrialOrder(snap); ok {
		s.logger.InfoContext(ctx, "industrial order detected",
			slog.String("symbol", symbol),
			slog.String("action", string(intent.Side)),
			slog.String("price", intent.Price.StringFixed(2)),
			slog.Int64("quantity", intent.Quantity),
			slog.String("reason", intent.Reason),
		)
		_ = s.notifier.Notifyf(ctx, notify.EventIndustrialDetected, "Industrial order",
			"%s: %s", symbol, intent.Reason)
		s.execute(ctx, n, ActionIndustrial, intent)
		return
	}

	switch {
	case s.params.ShouldBuy(snap):
		if intent, ok := s.params.SpreadIntent(snap, domain.OrderSideBuy, s.cfg.TradeQuantity); ok {
			s.execute(ctx, n, ActionBuy, intent)
			return
		}
	case s.params.ShouldSell(snap):
		if intent, ok := s.params.SpreadIntent(snap, domain.OrderSideSell, s.cfg.TradeQuantity); ok {
			s.execute(ctx, n, ActionSell, intent)
			return
		}
	}

	mid := strategy.Midpoint(snap)
	s.logger.DebugContext(ctx, "no opportunity",
		slog.String("symbol", symbol),
		slog.String("midpoint", mid.StringFixed(2)),
	)
	s.decide(ctx, Decision{Iteration: n, Symbol: symbol, Action: ActionHold, Midpoint: mid.StringFixed(2)})
}

func (s *Scheduler) execute(ctx context.Context, n int64, action Action, intent domain.TradeIntent) {
	d := Decision{
		Iteration: n,
		Symbol:    intent.Symbol,
		Action:    action,
		Side:      string(intent.Side),
		Price:     intent.Price.StringFixed(2),
		Quantity:  intent.Quantity,
		Reason:    intent.Reason,
	}

	if s.cfg.DryRun {
		s.logger.InfoContext(ctx, "dry run, order not submitted",
			slog.String("symbol", intent.Symbol),
			slog.String("action", string(intent.Side)),
			slog.String("price", d.Price),
			slog.Int64("quantity", intent.Quantity),
		)
		d.Message = "dry run"
		s.decide(ctx, d)
		return
	}

	d.Submitted = true
	result, err := s.orders.Submit(ctx, intent)
	if err != nil {
		if !domain.IsPrecondition(err) {
			s.logFailure(ctx, "submit order", intent.Symbol, err)
		}
		d.Message = err.Error()
		s.decide(ctx, d)
		return
	}

	d.Success = result.Success
	d.OrderID = result.Ack.OrderID
	d.Message = result.Message
	s.decide(ctx, d)
}

func (s *Scheduler) report(ctx context.Context, n int64) {
	portfolio, err := s.market.FetchPortfolio(ctx)
	if err != nil {
		s.logFailure(ctx, "fetch portfolio", "", err)
		return
	}

	s.mu.Lock()
	s.lastPortfolio = &portfolio
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "portfolio",
		slog.Int64("iteration", n),
		slog.String("cash", portfolio.Cash.StringFixed(2)),
		slog.String("equity", portfolio.Equity.StringFixed(2)),
		slog.Any("positions", portfolio.Positions),
	)

	for _, r := range s.reporters {
		if err := r.Report(ctx, n, portfolio); err != nil {
			s.logger.WarnContext(ctx, "portfolio reporter failed",
				slog.String("reporter", r.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// logFailure logs err under its failure category. The loop always
// continues afterwards.
func (s *Scheduler) logFailure(ctx context.Context, op, symbol string, err error) {
	kind := domain.Classify(err)
	attrs := []any{
		slog.String("op", op),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	}
	if symbol != "" {
		attrs = append(attrs, slog.String("symbol", symbol))
	}

	switch kind {
	case domain.FailureTimeout:
		s.logger.WarnContext(ctx, "exchange timeout", attrs...)
	case domain.FailureClient:
		s.logger.WarnContext(ctx, "exchange rejected request", attrs...)
	case domain.FailureServer:
		s.logger.ErrorContext(ctx, "exchange server error", attrs...)
		_ = s.notifier.Notifyf(ctx, notify.EventError, "Exchange server error", "%s %s: %v", op, symbol, err)
	default:
		s.logger.ErrorContext(ctx, "unexpected error", attrs...)
		_ = s.notifier.Notifyf(ctx, notify.EventError, "Unexpected error", "%s %s: %v", op, symbol, err)
	}
}

func (s *Scheduler) decide(ctx context.Context, d Decision) {
	d.At = time.Now().UTC()

	s.mu.Lock()
	s.recent = append(s.recent, d)
	if len(s.recent) > s.recentLimit {
		s.recent = s.recent[len(s.recent)-s.recentLimit:]
	}
	s.mu.Unlock()

	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(d)
	if err := s.bus.Publish(ctx, domain.ChannelDecisions, payload); err != nil {
		s.logger.DebugContext(ctx, "publish decision failed", slog.String("error", err.Error()))
	}
}
