package strategy

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// DetectIndustrialOrder looks for a single level that is unusually large or
// backed by several orders. Asks are scanned first (yielding a BUY), then
// bids (yielding a SELL); within a side, levels are scanned best price
// first and the first match wins.
//
// The scan deliberately sorts each side instead of walking the levels in
// the order the exchange listed them, so the chosen level does not depend on
// how the snapshot happens to be ordered. For a book listed best-first, both
// readings pick the same level.
func (p Params) DetectIndustrialOrder(snap domain.OrderBookSnapshot) (domain.TradeIntent, bool) {
	if level, ok := p.firstIndustrial(snap.Asks, true); ok {
		return p.industrialIntent(snap.Symbol, domain.OrderSideBuy, level), true
	}
	if level, ok := p.firstIndustrial(snap.Bids, false); ok {
		return p.industrialIntent(snap.Symbol, domain.OrderSideSell, level), true
	}
	return domain.TradeIntent{}, false
}

// IsIndustrial reports whether a level qualifies as an industrial order.
func (p Params) IsIndustrial(level domain.OrderBookLevel) bool {
	return level.Quantity > p.IndustrialQuantity || level.OrderCount > p.IndustrialOrderCount
}

func (p Params) firstIndustrial(levels []domain.OrderBookLevel, ascending bool) (domain.OrderBookLevel, bool) {
	ordered := make([]domain.OrderBookLevel, len(levels))
	copy(ordered, levels)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ascending {
			return ordered[i].Price.LessThan(ordered[j].Price)
		}
		return ordered[i].Price.GreaterThan(ordered[j].Price)
	})

	for _, l := range ordered {
		if p.IsIndustrial(l) {
			return l, true
		}
	}
	return domain.OrderBookLevel{}, false
}

func (p Params) industrialIntent(symbol string, side domain.OrderSide, level domain.OrderBookLevel) domain.TradeIntent {
	qty := level.Quantity
	if qty > p.IndustrialCap {
		qty = p.IndustrialCap
	}

	book := "ask"
	if side == domain.OrderSideSell {
		book = "bid"
	}

	return domain.TradeIntent{
		ID:       uuid.NewString(),
		Side:     side,
		Symbol:   symbol,
		Price:    RoundToTick(level.Price),
		Quantity: qty,
		Reason: fmt.Sprintf("industrial %s of %d units across %d orders at %s",
			book, level.Quantity, level.OrderCount, level.Price.StringFixed(tickPlaces)),
		Source: domain.SourceIndustrial,
	}
}

// SpreadIntent builds the ordinary spread-capture intent for side with a
// fixed quantity. ok is false when no limit price is available.
func (p Params) SpreadIntent(snap domain.OrderBookSnapshot, side domain.OrderSide, quantity int64) (domain.TradeIntent, bool) {
	price, ok := p.LimitPrice(snap, side)
	if !ok {
		return domain.TradeIntent{}, false
	}
	spread, _ := Spread(snap)
	return domain.TradeIntent{
		ID:       uuid.NewString(),
		Side:     side,
		Symbol:   snap.Symbol,
		Price:    price,
		Quantity: quantity,
		Reason:   fmt.Sprintf("spread %s above %s", spread.StringFixed(tickPlaces), p.MinSpread.StringFixed(tickPlaces)),
		Source:   domain.SourceSpread,
	}, true
}
