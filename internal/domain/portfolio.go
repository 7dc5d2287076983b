package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is the team's cash and holdings as reported by the
// exchange. It is fetched on demand and never cached across decisions.
type PortfolioSnapshot struct {
	Cash      decimal.Decimal
	Positions map[string]int64
	Equity    decimal.Decimal
	FetchedAt time.Time
}

// Position returns the held quantity for symbol, 0 when none is held.
func (p PortfolioSnapshot) Position(symbol string) int64 {
	return p.Positions[symbol]
}

// Credentials identify the team on every exchange request.
type Credentials struct {
	TeamID string
	APIKey string
}

// Valid reports whether both halves of the credential pair are present.
func (c Credentials) Valid() bool {
	return c.TeamID != "" && c.APIKey != ""
}

// PortfolioReport is the serialised form of a periodic portfolio report.
type PortfolioReport struct {
	Team      string           `json:"team,omitempty"`
	Iteration int64            `json:"iteration"`
	Cash      string           `json:"cash"`
	Equity    string           `json:"equity"`
	Positions map[string]int64 `json:"positions"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// NewPortfolioReport builds the report for p at iteration.
func NewPortfolioReport(team string, iteration int64, p PortfolioSnapshot) PortfolioReport {
	positions := make(map[string]int64, len(p.Positions))
	for sym, qty := range p.Positions {
		positions[sym] = qty
	}
	return PortfolioReport{
		Team:      team,
		Iteration: iteration,
		Cash:      p.Cash.StringFixed(2),
		Equity:    p.Equity.StringFixed(2),
		Positions: positions,
		FetchedAt: p.FetchedAt,
	}
}
