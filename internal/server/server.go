// Package server exposes the bot's status, order journal and live event
// stream over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/emojibot/internal/domain"
	"github.com/alanyoungcy/emojibot/internal/server/handler"
	"github.com/alanyoungcy/emojibot/internal/server/middleware"
	"github.com/alanyoungcy/emojibot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimiter, when set, limits each client IP to RequestsPerMinute.
	RateLimiter       domain.RateLimiter
	RequestsPerMinute int
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Status *handler.StatusHandler
	Orders *handler.OrderHandler
	Audit  *handler.AuditHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in middleware
// (rate limit, auth, logging, CORS from innermost to outermost).
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, wsHub, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /api/decisions", handlers.Status.ListDecisions)
	mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("POST /api/orders", handlers.Orders.PlaceOrder)
	mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if cfg.RateLimiter != nil && cfg.RequestsPerMinute > 0 {
		h = middleware.RateLimit(cfg.RateLimiter, cfg.RequestsPerMinute, time.Minute, logger)(h)
	}
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
