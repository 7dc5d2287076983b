package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a backing service whose reachability is part of health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checks: make(map[string]Pinger),
		logger: logHandler(logger, "health"),
	}
}

// WithCheck adds a named dependency probe.
func (h *HealthHandler) WithCheck(name string, p Pinger) *HealthHandler {
	if p != nil {
		h.checks[name] = p
	}
	return h
}

// HealthCheck reports "ok", or "degraded" with 503 when any probe fails.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health probe failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			deps[name] = "down"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	body := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	writeJSON(w, code, body)
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
