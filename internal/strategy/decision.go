// Package strategy is the decision engine: side-effect-free functions that
// read an order book snapshot and decide whether and how to trade.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// tickPlaces is the number of decimal places in one price tick (0.01).
const tickPlaces = 2

var two = decimal.NewFromInt(2)

// Midpoint returns the reference price for snap. A one-sided book yields
// that side's best price; an empty book yields zero, which callers treat as
// "do not trade".
func Midpoint(snap domain.OrderBookSnapshot) decimal.Decimal {
	bid, hasBid := snap.BestBid()
	ask, hasAsk := snap.BestAsk()

	switch {
	case hasBid && hasAsk:
		return bid.Price.Add(ask.Price).Div(two)
	case hasBid:
		return bid.Price
	case hasAsk:
		return ask.Price
	default:
		return decimal.Zero
	}
}

// Spread returns bestAsk - bestBid. ok is false when either side is empty.
func Spread(snap domain.OrderBookSnapshot) (decimal.Decimal, bool) {
	bid, hasBid := snap.BestBid()
	ask, hasAsk := snap.BestAsk()
	if !hasBid || !hasAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// RoundToTick rounds price to the nearest cent, halves away from zero.
func RoundToTick(price decimal.Decimal) decimal.Decimal {
	return price.Round(tickPlaces)
}

// ShouldBuy reports whether the spread is wide enough and the ask side deep
// enough to place a buy.
func (p Params) ShouldBuy(snap domain.OrderBookSnapshot) bool {
	return p.tradable(snap, domain.OrderSideBuy)
}

// ShouldSell reports whether the spread is wide enough and the bid side deep
// enough to place a sell.
func (p Params) ShouldSell(snap domain.OrderBookSnapshot) bool {
	return p.tradable(snap, domain.OrderSideSell)
}

func (p Params) tradable(snap domain.OrderBookSnapshot, side domain.OrderSide) bool {
	bid, hasBid := snap.BestBid()
	ask, hasAsk := snap.BestAsk()
	if !hasBid || !hasAsk {
		return false
	}
	if !ask.Price.Sub(bid.Price).GreaterThan(p.MinSpread) {
		return false
	}

	taken := ask
	if side == domain.OrderSideSell {
		taken = bid
	}
	return taken.Quantity >= p.MinLiquidity
}

// LimitPrice returns the resting price for side: SpreadCapture of the way
// from the own side of the book toward the other, rounded to a cent. ok is
// false for a one-sided book or a spread at or below MinSpread.
func (p Params) LimitPrice(snap domain.OrderBookSnapshot, side domain.OrderSide) (decimal.Decimal, bool) {
	bid, hasBid := snap.BestBid()
	ask, hasAsk := snap.BestAsk()
	if !hasBid || !hasAsk {
		return decimal.Zero, false
	}

	spread := ask.Price.Sub(bid.Price)
	if !spread.GreaterThan(p.MinSpread) {
		return decimal.Zero, false
	}

	edge := spread.Mul(p.SpreadCapture)
	switch side {
	case domain.OrderSideBuy:
		return RoundToTick(bid.Price.Add(edge)), true
	case domain.OrderSideSell:
		return RoundToTick(ask.Price.Sub(edge)), true
	default:
		return decimal.Zero, false
	}
}

// SizeOrder returns how many whole units availableCash buys at price,
// capped by OrderBudget. Invalid prices and negative cash size to zero.
func (p Params) SizeOrder(availableCash, price decimal.Decimal) int64 {
	if !price.IsPositive() {
		return 0
	}
	spendable := decimal.Min(availableCash, p.OrderBudget)
	if !spendable.IsPositive() {
		return 0
	}
	return spendable.Div(price).Floor().IntPart()
}
