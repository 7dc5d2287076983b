package exchange

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// --------------------------------------------------------------------------
// Exchange API DTOs
// --------------------------------------------------------------------------

// APILevel is one price level of an order book response.
type APILevel struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"quantity"`
	OrderCount int64           `json:"orderCount"`
}

// APIOrderBook is the response of GET /api/orderbook/{symbol}.
type APIOrderBook struct {
	Symbol    string     `json:"symbol"`
	Bids      []APILevel `json:"bids"`
	Asks      []APILevel `json:"asks"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ToDomain converts the response into a snapshot. Levels with a negative
// quantity or order count are dropped. A missing timestamp is replaced by
// receivedAt.
func (b APIOrderBook) ToDomain(symbol string, receivedAt time.Time) domain.OrderBookSnapshot {
	snap := domain.OrderBookSnapshot{
		Symbol:    symbol,
		Bids:      toLevels(b.Bids),
		Asks:      toLevels(b.Asks),
		Timestamp: receivedAt,
	}
	if b.Symbol != "" {
		snap.Symbol = b.Symbol
	}
	if b.Timestamp != nil && !b.Timestamp.IsZero() {
		snap.Timestamp = *b.Timestamp
	}
	return snap
}

func toLevels(in []APILevel) []domain.OrderBookLevel {
	out := make([]domain.OrderBookLevel, 0, len(in))
	for _, l := range in {
		if l.Quantity < 0 || l.OrderCount < 0 {
			continue
		}
		out = append(out, domain.OrderBookLevel{
			Price:      l.Price,
			Quantity:   l.Quantity,
			OrderCount: l.OrderCount,
		})
	}
	return out
}

// APIPortfolio is the response of GET /api/portfolio.
type APIPortfolio struct {
	Cash      decimal.Decimal  `json:"cash"`
	Positions map[string]int64 `json:"positions"`
	Equity    decimal.Decimal  `json:"equity"`
}

// ToDomain converts the response into a portfolio snapshot.
func (p APIPortfolio) ToDomain(fetchedAt time.Time) domain.PortfolioSnapshot {
	positions := make(map[string]int64, len(p.Positions))
	for sym, qty := range p.Positions {
		positions[sym] = qty
	}
	return domain.PortfolioSnapshot{
		Cash:      p.Cash,
		Positions: positions,
		Equity:    p.Equity,
		FetchedAt: fetchedAt,
	}
}

// APIOrderRequest is the body of POST /api/orders. The limit price is sent
// as a JSON number with two decimals.
type APIOrderRequest struct {
	ClientOrderID string      `json:"clientOrderId"`
	Symbol        string      `json:"symbol"`
	Side          string      `json:"side"`
	Quantity      int64       `json:"quantity"`
	LimitPrice    json.Number `json:"limitPrice"`
	TimeInForce   string      `json:"timeInForce"`
}

func newAPIOrderRequest(req domain.OrderRequest) APIOrderRequest {
	return APIOrderRequest{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          string(req.Side),
		Quantity:      req.Quantity,
		LimitPrice:    json.Number(req.LimitPrice.StringFixed(2)),
		TimeInForce:   string(req.TimeInForce),
	}
}

// APIOrderAck is the response of POST /api/orders.
type APIOrderAck struct {
	OrderID        string          `json:"orderId"`
	Status         string          `json:"status"`
	FilledQuantity int64           `json:"filledQuantity"`
	AvgFillPrice   decimal.Decimal `json:"avgFillPrice"`
	Error          string          `json:"error,omitempty"`
}

// ToDomain converts the response into an acknowledgment.
func (a APIOrderAck) ToDomain() domain.OrderAck {
	status := domain.OrderStatus(a.Status)
	if status == "" {
		status = domain.OrderStatusNew
	}
	return domain.OrderAck{
		OrderID:        a.OrderID,
		Status:         status,
		FilledQuantity: a.FilledQuantity,
		AvgFillPrice:   a.AvgFillPrice,
	}
}

// APIRegisterRequest is the body of POST /api/register.
type APIRegisterRequest struct {
	TeamName string `json:"teamName"`
}

// APIRegisterResponse is the response of POST /api/register.
type APIRegisterResponse struct {
	TeamID string `json:"teamId"`
	APIKey string `json:"apiKey"`
}

// APIError is the body carried by non-2xx responses.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (e APIError) reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}
