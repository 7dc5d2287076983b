package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// TimeInForce governs how long a submitted order stays active.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good-Till-Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate-Or-Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill-Or-Kill
)

// OrderStatus is the exchange-reported order state.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// IntentSource names the heuristic that produced a TradeIntent.
type IntentSource string

const (
	SourceIndustrial IntentSource = "industrial"
	SourceSpread     IntentSource = "spread"
	SourceManual     IntentSource = "manual"
)

// TradeIntent is a decision to trade, produced by the decision engine and
// consumed within the same loop iteration.
type TradeIntent struct {
	ID       string
	Side     OrderSide
	Symbol   string
	Price    decimal.Decimal
	Quantity int64
	Reason   string
	Source   IntentSource
}

// Notional returns price * quantity.
func (t TradeIntent) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// OrderRequest is the wire-level order sent to the exchange.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Quantity      int64
	LimitPrice    decimal.Decimal
	TimeInForce   TimeInForce
}

// OrderAck is the exchange acknowledgment for a submitted order.
type OrderAck struct {
	OrderID        string
	Status         OrderStatus
	FilledQuantity int64
	AvgFillPrice   decimal.Decimal
}

// OrderResult wraps the outcome of a submission attempt.
type OrderResult struct {
	Success bool
	Intent  TradeIntent
	Ack     OrderAck
	Message string
}

// OrderRecord is a journaled submission attempt.
type OrderRecord struct {
	ID             string
	OrderID        string
	Symbol         string
	Side           OrderSide
	Price          decimal.Decimal
	Quantity       int64
	Status         OrderStatus
	FilledQuantity int64
	AvgFillPrice   decimal.Decimal
	Source         IntentSource
	Reason         string
	Error          string
	CreatedAt      time.Time
}
