package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// AuditHandler serves the audit log.
type AuditHandler struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler. A nil store answers 503.
func NewAuditHandler(audit domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logHandler(logger, "audit")}
}

// ListAudit returns audit entries newest first.
// GET /api/audit?since=2026-01-02T00:00:00Z&limit=50
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit log disabled")
		return
	}

	opts := parseListOpts(r)
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		opts.Since = &since
	}

	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list audit failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
