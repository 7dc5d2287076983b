package strategy

import "github.com/shopspring/decimal"

// Params holds the tunable thresholds of the decision engine.
type Params struct {
	// MinSpread is the exclusive lower bound on a tradable spread.
	MinSpread decimal.Decimal
	// MinLiquidity is the minimum best-level quantity on the side being taken.
	MinLiquidity int64
	// SpreadCapture is the fraction of the spread a limit order moves away
	// from its own side of the book.
	SpreadCapture decimal.Decimal
	// IndustrialQuantity flags a level whose quantity is strictly above it.
	IndustrialQuantity int64
	// IndustrialOrderCount flags a level backed by more than this many orders.
	IndustrialOrderCount int64
	// IndustrialCap bounds the quantity traded against one industrial level.
	IndustrialCap int64
	// OrderBudget caps the cash committed by SizeOrder.
	OrderBudget decimal.Decimal
}

// DefaultParams returns the workshop defaults.
func DefaultParams() Params {
	return Params{
		MinSpread:            decimal.RequireFromString("0.10"),
		MinLiquidity:         10,
		SpreadCapture:        decimal.RequireFromString("0.30"),
		IndustrialQuantity:   100,
		IndustrialOrderCount: 1,
		IndustrialCap:        50,
		OrderBudget:          decimal.NewFromInt(100),
	}
}
