package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// priceTickPlaces is the number of decimals the exchange accepts on a limit
// price. Funds are checked at the price that goes on the wire.
const priceTickPlaces = 2

// RiskService holds the pre-trade checks. Every check reads a portfolio
// snapshot the caller fetched immediately before; nothing is cached.
type RiskService struct {
	logger *slog.Logger
}

// NewRiskService creates a RiskService.
func NewRiskService(logger *slog.Logger) *RiskService {
	return &RiskService{
		logger: logger.With(slog.String("component", "risk_service")),
	}
}

// ValidateIntent rejects intents that must never reach the exchange.
func (s *RiskService) ValidateIntent(intent domain.TradeIntent) error {
	switch {
	case intent.Symbol == "":
		return fmt.Errorf("risk_service: %w: empty symbol", domain.ErrInvalidOrder)
	case intent.Quantity <= 0:
		return fmt.Errorf("risk_service: %w: quantity %d", domain.ErrInvalidOrder, intent.Quantity)
	case !intent.Price.IsPositive():
		return fmt.Errorf("risk_service: %w: price %s", domain.ErrInvalidOrder, intent.Price.String())
	case !intent.Price.Equal(intent.Price.Truncate(priceTickPlaces)):
		return fmt.Errorf("risk_service: %w: price %s is not a multiple of 0.01", domain.ErrInvalidOrder, intent.Price.String())
	case intent.Side != domain.OrderSideBuy && intent.Side != domain.OrderSideSell:
		return fmt.Errorf("risk_service: %w: side %q", domain.ErrInvalidOrder, intent.Side)
	}
	return nil
}

// Check runs the side-specific check for intent against portfolio.
func (s *RiskService) Check(ctx context.Context, portfolio domain.PortfolioSnapshot, intent domain.TradeIntent) error {
	if intent.Side == domain.OrderSideSell {
		return s.CheckSell(ctx, portfolio, intent)
	}
	return s.CheckBuy(ctx, portfolio, intent)
}

// CheckBuy fails when cash does not cover price * quantity. Orders are never
// resized to fit.
func (s *RiskService) CheckBuy(ctx context.Context, portfolio domain.PortfolioSnapshot, intent domain.TradeIntent) error {
	cost := intent.Notional()
	if portfolio.Cash.LessThan(cost) {
		s.logger.WarnContext(ctx, "insufficient cash",
			slog.String("symbol", intent.Symbol),
			slog.String("cost", cost.StringFixed(2)),
			slog.String("cash", portfolio.Cash.StringFixed(2)),
		)
		return fmt.Errorf("risk_service: %w: need %s, have %s",
			domain.ErrInsufficientFunds, cost.StringFixed(2), portfolio.Cash.StringFixed(2))
	}
	return nil
}

// CheckSell fails when the held position is smaller than the quantity.
func (s *RiskService) CheckSell(ctx context.Context, portfolio domain.PortfolioSnapshot, intent domain.TradeIntent) error {
	held := portfolio.Position(intent.Symbol)
	if held < intent.Quantity {
		s.logger.WarnContext(ctx, "insufficient position",
			slog.String("symbol", intent.Symbol),
			slog.Int64("quantity", intent.Quantity),
			slog.Int64("held", held),
		)
		return fmt.Errorf("risk_service: %w: need %d %s, hold %d",
			domain.ErrInsufficientPosition, intent.Quantity, intent.Symbol, held)
	}
	return nil
}
