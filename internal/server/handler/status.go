package handler

import (
	"net/http"
	"strconv"

	"github.com/alanyoungcy/emojibot/internal/domain"
	"github.com/alanyoungcy/emojibot/internal/scheduler"
)

// StatusProvider exposes the poll loop's state.
type StatusProvider interface {
	Status() scheduler.Status
	RecentDecisions(limit int) []scheduler.Decision
}

// StatusHandler serves the loop status and recent decisions.
type StatusHandler struct {
	mode string
	team string
	loop StatusProvider
}

// NewStatusHandler creates a StatusHandler for the given run mode.
func NewStatusHandler(mode, team string, loop StatusProvider) *StatusHandler {
	return &StatusHandler{mode: mode, team: team, loop: loop}
}

type statusResponse struct {
	Mode      string                  `json:"mode"`
	Team      string                  `json:"team,omitempty"`
	Loop      scheduler.Status        `json:"loop"`
	Portfolio *domain.PortfolioReport `json:"portfolio,omitempty"`
}

// GetStatus responds with the mode, loop state and last portfolio report.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.loop.Status()
	resp := statusResponse{Mode: h.mode, Team: h.team, Loop: st}
	if st.LastPortfolio != nil {
		report := domain.NewPortfolioReport(h.team, st.Iteration, *st.LastPortfolio)
		resp.Portfolio = &report
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListDecisions returns the newest loop decisions first.
// GET /api/decisions?limit=20
func (h *StatusHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	decisions := h.loop.RecentDecisions(limit)
	if decisions == nil {
		decisions = []scheduler.Decision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}
