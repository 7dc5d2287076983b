// Package domain holds the value types shared by the decision engine, the
// exchange adapter and the poll loop. Everything here is immutable once
// received from the exchange.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderBookLevel is the aggregated resting interest at one price.
type OrderBookLevel struct {
	Price      decimal.Decimal
	Quantity   int64
	OrderCount int64
}

// OrderBookSnapshot is a view of one symbol's book at one poll instant.
type OrderBookSnapshot struct {
	Symbol    string
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
	Timestamp time.Time
}

// BestBid returns the bid level with the highest price. ok is false when the
// bid side is empty.
func (s OrderBookSnapshot) BestBid() (level OrderBookLevel, ok bool) {
	for i, l := range s.Bids {
		if i == 0 || l.Price.GreaterThan(level.Price) {
			level = l
		}
	}
	return level, len(s.Bids) > 0
}

// BestAsk returns the ask level with the lowest price. ok is false when the
// ask side is empty.
func (s OrderBookSnapshot) BestAsk() (level OrderBookLevel, ok bool) {
	for i, l := range s.Asks {
		if i == 0 || l.Price.LessThan(level.Price) {
			level = l
		}
	}
	return level, len(s.Asks) > 0
}

// IsEmpty reports whether both sides of the book are empty.
func (s OrderBookSnapshot) IsEmpty() bool {
	return len(s.Bids) == 0 && len(s.Asks) == 0
}
