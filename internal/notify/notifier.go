// Package notify fans bot events out to chat channels. Each event has a
// type, and operators choose which types reach their senders.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event names a category of notification.
type Event string

const (
	EventOrderPlaced        Event = "order_placed"
	EventOrderRejected      Event = "order_rejected"
	EventIndustrialDetected Event = "industrial_detected"
	EventPortfolioReport    Event = "portfolio_report"
	EventError              Event = "error"
)

// Sender delivers one notification to one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs, e.g. "telegram".
	Name() string
}

// Notifier dispatches events to every registered Sender whose event filter
// admits them. A nil *Notifier is valid and drops everything.
type Notifier struct {
	senders []Sender
	events  map[Event]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders. An empty events list admits
// every event type.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[Event]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[Event(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether n has at least one sender.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Allows reports whether event passes the configured filter.
func (n *Notifier) Allows(event Event) bool {
	return n != nil && (len(n.events) == 0 || n.events[event])
}

// Notify sends title and message to all senders if event is allowed.
func (n *Notifier) Notify(ctx context.Context, event Event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if !n.Allows(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", string(event)))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// Notifyf is Notify with a formatted message.
func (n *Notifier) Notifyf(ctx context.Context, event Event, title, format string, args ...any) error {
	return n.Notify(ctx, event, title, fmt.Sprintf(format, args...))
}

// dispatch delivers to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
