package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// OrderSubmitter places manual orders through the same validation path the
// loop uses.
type OrderSubmitter interface {
	SubmitBuy(ctx context.Context, symbol string, price decimal.Decimal, quantity int64) (domain.OrderResult, error)
	SubmitSell(ctx context.Context, symbol string, price decimal.Decimal, quantity int64) (domain.OrderResult, error)
}

// OrderHandler serves order-related HTTP endpoints. Either collaborator may
// be nil; the matching endpoint then answers 503.
type OrderHandler struct {
	journal domain.OrderStore
	orders  OrderSubmitter
	logger  *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(journal domain.OrderStore, orders OrderSubmitter, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		journal: journal,
		orders:  orders,
		logger:  logHandler(logger, "orders"),
	}
}

type orderView struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id,omitempty"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Price          string    `json:"price"`
	Quantity       int64     `json:"quantity"`
	Status         string    `json:"status,omitempty"`
	FilledQuantity int64     `json:"filled_quantity"`
	AvgFillPrice   string    `json:"avg_fill_price,omitempty"`
	Source         string    `json:"source,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func newOrderView(rec domain.OrderRecord) orderView {
	v := orderView{
		ID:             rec.ID,
		OrderID:        rec.OrderID,
		Symbol:         rec.Symbol,
		Side:           string(rec.Side),
		Price:          rec.Price.StringFixed(2),
		Quantity:       rec.Quantity,
		Status:         string(rec.Status),
		FilledQuantity: rec.FilledQuantity,
		Source:         string(rec.Source),
		Reason:         rec.Reason,
		Error:          rec.Error,
		CreatedAt:      rec.CreatedAt,
	}
	if !rec.AvgFillPrice.IsZero() {
		v.AvgFillPrice = rec.AvgFillPrice.StringFixed(2)
	}
	return v
}

// ListOrders returns journaled submissions, newest first.
// GET /api/orders?limit=50&offset=0
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "order journal disabled")
		return
	}

	records, err := h.journal.ListRecent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list orders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	out := make([]orderView, 0, len(records))
	for _, rec := range records {
		out = append(out, newOrderView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

type placeOrderRequest struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

type placeOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// PlaceOrder submits a manual limit order.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		writeError(w, http.StatusServiceUnavailable, "order submission disabled")
		return
	}

	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	var (
		result domain.OrderResult
		err    error
	)
	switch domain.OrderSide(strings.ToUpper(req.Side)) {
	case domain.OrderSideBuy:
		result, err = h.orders.SubmitBuy(r.Context(), symbol, req.Price, req.Quantity)
	case domain.OrderSideSell:
		result, err = h.orders.SubmitSell(r.Context(), symbol, req.Price, req.Quantity)
	default:
		writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}

	resp := placeOrderResponse{
		Success: result.Success,
		OrderID: result.Ack.OrderID,
		Status:  string(result.Ack.Status),
		Message: result.Message,
	}
	if err != nil {
		if resp.Message == "" {
			resp.Message = err.Error()
		}
		writeJSON(w, statusForOrderError(err), resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func statusForOrderError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientPosition),
		errors.Is(err, domain.ErrOrderRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
