package scheduler

import (
	"time"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// Action is what the loop did for one symbol in one iteration.
type Action string

const (
	ActionIndustrial Action = "industrial"
	ActionBuy        Action = "buy"
	ActionSell       Action = "sell"
	ActionHold       Action = "hold"
	ActionError      Action = "error"
)

// Decision records one symbol's outcome.
type Decision struct {
	Iteration int64     `json:"iteration"`
	Symbol    string    `json:"symbol"`
	Action    Action    `json:"action"`
	Side      string    `json:"side,omitempty"`
	Price     string    `json:"price,omitempty"`
	Quantity  int64     `json:"quantity,omitempty"`
	Midpoint  string    `json:"midpoint,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Submitted bool      `json:"submitted"`
	Success   bool      `json:"success"`
	OrderID   string    `json:"order_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Status is a point-in-time view of the loop.
type Status struct {
	State         State                     `json:"state"`
	Iteration     int64                     `json:"iteration"`
	StartedAt     time.Time                 `json:"started_at"`
	Uptime        string                    `json:"uptime"`
	Symbols       []string                  `json:"symbols"`
	DryRun        bool                      `json:"dry_run"`
	LastPortfolio *domain.PortfolioSnapshot `json:"-"`
}

// Status returns a snapshot of the loop state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:     s.state,
		Iteration: s.iteration,
		StartedAt: s.startedAt,
		Symbols:   append([]string(nil), s.cfg.Symbols...),
		DryRun:    s.cfg.DryRun,
	}
	if !s.startedAt.IsZero() {
		st.Uptime = time.Since(s.startedAt).Truncate(time.Second).String()
	}
	if s.lastPortfolio != nil {
		p := *s.lastPortfolio
		st.LastPortfolio = &p
	}
	return st
}

// RecentDecisions returns up to limit decisions, newest first.
func (s *Scheduler) RecentDecisions(limit int) []Decision {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.recent)
	if limit > n {
		limit = n
	}
	out := make([]Decision, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.recent[i])
	}
	return out
}
