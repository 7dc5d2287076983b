package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/emojibot/internal/domain"
	"github.com/alanyoungcy/emojibot/internal/notify"
)

// Exchange is the part of the exchange adapter the order path needs.
type Exchange interface {
	FetchPortfolio(ctx context.Context) (domain.PortfolioSnapshot, error)
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error)
}

// OrderEvent is published on the orders channel for every attempt.
type OrderEvent struct {
	Event    string    `json:"event"`
	IntentID string    `json:"intent_id"`
	OrderID  string    `json:"order_id,omitempty"`
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`
	Price    string    `json:"price"`
	Quantity int64     `json:"quantity"`
	Status   string    `json:"status,omitempty"`
	Source   string    `json:"source,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// OrderService validates intents against a fresh portfolio and submits the
// accepted ones. Journal, event bus, rate limiter and notifier are optional.
type OrderService struct {
	exchange Exchange
	risk     *RiskService

	orders     domain.OrderStore
	audit      domain.AuditStore
	bus        domain.SignalBus
	limiter    domain.RateLimiter
	limiterKey string
	perSecond  int
	notifier   *notify.Notifier

	logger *slog.Logger
}

// NewOrderService creates an OrderService with its required dependencies.
func NewOrderService(exchange Exchange, risk *RiskService, logger *slog.Logger) *OrderService {
	return &OrderService{
		exchange: exchange,
		risk:     risk,
		logger:   logger.With(slog.String("component", "order_service")),
	}
}

// WithJournal records every accepted and rejected attempt. Either store may
// be nil.
func (s *OrderService) WithJournal(orders domain.OrderStore, audit domain.AuditStore) *OrderService {
	s.orders = orders
	s.audit = audit
	return s
}

// WithEventBus publishes an OrderEvent on domain.ChannelOrders per attempt.
func (s *OrderService) WithEventBus(bus domain.SignalBus) *OrderService {
	s.bus = bus
	return s
}

// WithRateLimiter caps submissions at perSecond under "orders:"+team.
func (s *OrderService) WithRateLimiter(limiter domain.RateLimiter, team string, perSecond int) *OrderService {
	if perSecond <= 0 {
		return s
	}
	s.limiter = limiter
	s.limiterKey = "orders:" + team
	s.perSecond = perSecond
	return s
}

// WithNotifier sends order_placed and order_rejected notifications.
func (s *OrderService) WithNotifier(n *notify.Notifier) *OrderService {
	s.notifier = n
	return s
}

// SubmitBuy buys quantity units of symbol at price.
func (s *OrderService) SubmitBuy(ctx context.Context, symbol string, price decimal.Decimal, quantity int64) (domain.OrderResult, error) {
	return s.Submit(ctx, manualIntent(domain.OrderSideBuy, symbol, price, quantity))
}

// SubmitSell sells quantity units of symbol at price.
func (s *OrderService) SubmitSell(ctx context.Context, symbol string, price decimal.Decimal, quantity int64) (domain.OrderResult, error) {
	return s.Submit(ctx, manualIntent(domain.OrderSideSell, symbol, price, quantity))
}

func manualIntent(side domain.OrderSide, symbol string, price decimal.Decimal, quantity int64) domain.TradeIntent {
	return domain.TradeIntent{
		ID:       uuid.NewString(),
		Side:     side,
		Symbol:   symbol,
		Price:    price,
		Quantity: quantity,
		Reason:   "direct submission",
		Source:   domain.SourceManual,
	}
}

// Submit validates intent and, if every check passes, sends exactly one
// order to the exchange with the intent's side, price and quantity. The
// portfolio is fetched fresh for every call.
func (s *OrderService) Submit(ctx context.Context, intent domain.TradeIntent) (domain.OrderResult, error) {
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}

	if err := s.risk.ValidateIntent(intent); err != nil {
		return s.reject(ctx, intent, domain.OrderAck{}, err)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, s.limiterKey, s.perSecond, time.Second)
		if err != nil {
			s.logger.WarnContext(ctx, "rate limiter unavailable",
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			return s.reject(ctx, intent, domain.OrderAck{},
				fmt.Errorf("order_service: %w: %d orders/s", domain.ErrRateLimited, s.perSecond))
		}
	}

	portfolio, err := s.exchange.FetchPortfolio(ctx)
	if err != nil {
		return s.reject(ctx, intent, domain.OrderAck{}, fmt.Errorf("order_service: fetch portfolio: %w", err))
	}
	if err := s.risk.Check(ctx, portfolio, intent); err != nil {
		return s.reject(ctx, intent, domain.OrderAck{}, err)
	}

	ack, err := s.exchange.SubmitOrder(ctx, domain.OrderRequest{
		ClientOrderID: intent.ID,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Quantity:      intent.Quantity,
		LimitPrice:    intent.Price,
	})
	if err != nil {
		return s.reject(ctx, intent, ack, fmt.Errorf("order_service: submit: %w", err))
	}

	s.record(ctx, intent, ack, nil)

	s.logger.InfoContext(ctx, "order placed",
		slog.String("action", string(intent.Side)),
		slog.String("symbol", intent.Symbol),
		slog.String("price", intent.Price.StringFixed(2)),
		slog.Int64("quantity", intent.Quantity),
		slog.String("source", string(intent.Source)),
		slog.String("order_id", ack.OrderID),
		slog.String("status", string(ack.Status)),
		slog.Int64("filled", ack.FilledQuantity),
	)

	_ = s.notifier.Notifyf(ctx, notify.EventOrderPlaced, "Order placed",
		"%s %d %s @ %s (%s) -> %s", intent.Side, intent.Quantity, intent.Symbol,
		intent.Price.StringFixed(2), intent.Source, ack.Status)

	return domain.OrderResult{
		Success: true,
		Intent:  intent,
		Ack:     ack,
		Message: "order placed",
	}, nil
}

func (s *OrderService) reject(ctx context.Context, intent domain.TradeIntent, ack domain.OrderAck, cause error) (domain.OrderResult, error) {
	s.record(ctx, intent, ack, cause)

	s.logger.WarnContext(ctx, "order rejected",
		slog.String("action", string(intent.Side)),
		slog.String("symbol", intent.Symbol),
		slog.String("price", intent.Price.StringFixed(2)),
		slog.Int64("quantity", intent.Quantity),
		slog.String("source", string(intent.Source)),
		slog.String("kind", string(rejectKind(cause))),
		slog.String("error", cause.Error()),
	)

	_ = s.notifier.Notifyf(ctx, notify.EventOrderRejected, "Order rejected",
		"%s %d %s @ %s: %v", intent.Side, intent.Quantity, intent.Symbol,
		intent.Price.StringFixed(2), cause)

	return domain.OrderResult{
		Success: false,
		Intent:  intent,
		Ack:     ack,
		Message: cause.Error(),
	}, cause
}

// rejectKind labels precondition failures separately from exchange failures.
func rejectKind(err error) domain.FailureKind {
	if domain.IsPrecondition(err) {
		return "precondition"
	}
	return domain.Classify(err)
}

// record journals, audits and publishes one attempt. Failures here are
// logged and never change the outcome of the submission.
func (s *OrderService) record(ctx context.Context, intent domain.TradeIntent, ack domain.OrderAck, cause error) {
	now := time.Now().UTC()

	rec := domain.OrderRecord{
		ID:             intent.ID,
		OrderID:        ack.OrderID,
		Symbol:         intent.Symbol,
		Side:           intent.Side,
		Price:          intent.Price,
		Quantity:       intent.Quantity,
		Status:         ack.Status,
		FilledQuantity: ack.FilledQuantity,
		AvgFillPrice:   ack.AvgFillPrice,
		Source:         intent.Source,
		Reason:         intent.Reason,
		CreatedAt:      now,
	}
	event := "order_placed"
	if cause != nil {
		event = "order_rejected"
		rec.Status = domain.OrderStatusRejected
		rec.Error = cause.Error()
	}

	if s.orders != nil {
		if err := s.orders.Create(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "journal write failed",
				slog.String("intent_id", intent.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.audit != nil {
		detail := map[string]any{
			"intent_id": intent.ID,
			"order_id":  ack.OrderID,
			"symbol":    intent.Symbol,
			"side":      string(intent.Side),
			"price":     intent.Price.StringFixed(2),
			"quantity":  intent.Quantity,
			"source":    string(intent.Source),
		}
		if cause != nil {
			detail["error"] = cause.Error()
		}
		if err := s.audit.Log(ctx, event, detail); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("intent_id", intent.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		payload, _ := json.Marshal(OrderEvent{
			Event:    event,
			IntentID: intent.ID,
			OrderID:  ack.OrderID,
			Symbol:   intent.Symbol,
			Side:     string(intent.Side),
			Price:    intent.Price.StringFixed(2),
			Quantity: intent.Quantity,
			Status:   string(rec.Status),
			Source:   string(intent.Source),
			Reason:   intent.Reason,
			Error:    rec.Error,
			At:       now,
		})
		if err := s.bus.Publish(ctx, domain.ChannelOrders, payload); err != nil {
			s.logger.WarnContext(ctx, "publish event failed",
				slog.String("intent_id", intent.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
