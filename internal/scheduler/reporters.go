package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/emojibot/internal/domain"
	"github.com/alanyoungcy/emojibot/internal/notify"
)

// BusReporter publishes the portfolio report on domain.ChannelPortfolio.
type BusReporter struct {
	bus  domain.SignalBus
	team string
}

// NewBusReporter creates a BusReporter.
func NewBusReporter(bus domain.SignalBus, team string) *BusReporter {
	return &BusReporter{bus: bus, team: team}
}

func (r *BusReporter) Name() string { return "bus" }

func (r *BusReporter) Report(ctx context.Context, iteration int64, p domain.PortfolioSnapshot) error {
	payload, err := json.Marshal(domain.NewPortfolioReport(r.team, iteration, p))
	if err != nil {
		return fmt.Errorf("bus reporter: marshal: %w", err)
	}
	return r.bus.Publish(ctx, domain.ChannelPortfolio, payload)
}

// NotifyReporter sends a portfolio_report notification.
type NotifyReporter struct {
	notifier *notify.Notifier
}

// NewNotifyReporter creates a NotifyReporter.
func NewNotifyReporter(n *notify.Notifier) *NotifyReporter {
	return &NotifyReporter{notifier: n}
}

func (r *NotifyReporter) Name() string { return "notify" }

func (r *NotifyReporter) Report(ctx context.Context, iteration int64, p domain.PortfolioSnapshot) error {
	return r.notifier.Notifyf(ctx, notify.EventPortfolioReport, "Portfolio",
		"iteration %d: cash %s, equity %s, positions %v",
		iteration, p.Cash.StringFixed(2), p.Equity.StringFixed(2), p.Positions)
}
