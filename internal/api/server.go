// Package api provides the loopback HTTP bridge used by the game mod and
// local tools.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/graaaaa/vintagepresence/internal/app"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger

	// Use case dependencies
	health   app.HealthUsecase
	snapshot app.SnapshotUsecase
	presence app.PresenceUsecase
	preview  app.PreviewUsecase
	history  app.HistoryUsecase
	stats    app.StatsUsecase
	cfg      app.ConfigUsecase

	// SSE hub
	hub *Hub
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSnapshotUsecase enables PUT/DELETE /api/v1/snapshot.
func WithSnapshotUsecase(u app.SnapshotUsecase) ServerOption {
	return func(s *Server) { s.snapshot = u }
}

// WithPresenceUsecase enables GET /api/v1/presence.
func WithPresenceUsecase(u app.PresenceUsecase) ServerOption {
	return func(s *Server) { s.presence = u }
}

// WithPreviewUsecase enables POST /api/v1/preview and GET /api/v1/tokens.
func WithPreviewUsecase(u app.PreviewUsecase) ServerOption {
	return func(s *Server) { s.preview = u }
}

// WithHistoryUsecase enables GET /api/v1/history.
func WithHistoryUsecase(u app.HistoryUsecase) ServerOption {
	return func(s *Server) { s.history = u }
}

// WithStatsUsecase enables GET /api/v1/stats.
func WithStatsUsecase(u app.StatsUsecase) ServerOption {
	return func(s *Server) { s.stats = u }
}

// WithConfigUsecase enables GET/PUT /api/v1/config.
func WithConfigUsecase(u app.ConfigUsecase) ServerOption {
	return func(s *Server) { s.cfg = u }
}

// WithHub enables GET /api/v1/stream.
func WithHub(hub *Hub) ServerOption {
	return func(s *Server) { s.hub = hub }
}

// NewServer creates a new API server with the given dependencies.
func NewServer(addr string, health app.HealthUsecase, opts ...ServerOption) *Server {
	mux := http.NewServeMux()
	s := &Server{
		mux:    mux,
		logger: slog.Default(),
		health: health,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      securityHeadersMiddleware(hostGuardMiddleware(nil)(csrfMiddleware(nil)(mux))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // Disable for SSE (long-lived connections)
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	if s.snapshot != nil {
		s.mux.HandleFunc("PUT /api/v1/snapshot", s.handlePutSnapshot)
		s.mux.HandleFunc("DELETE /api/v1/snapshot", s.handleDeleteSnapshot)
	}
	if s.presence != nil {
		s.mux.HandleFunc("GET /api/v1/presence", s.handlePresence)
	}
	if s.preview != nil {
		s.mux.HandleFunc("POST /api/v1/preview", s.handlePreview)
		s.mux.HandleFunc("GET /api/v1/tokens", s.handleTokens)
	}
	if s.history != nil {
		s.mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	}
	if s.stats != nil {
		s.mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	}
	if s.cfg != nil {
		s.mux.HandleFunc("GET /api/v1/config", s.handleGetConfig)
		s.mux.HandleFunc("PUT /api/v1/config", s.handlePutConfig)
	}
	if s.hub != nil {
		s.mux.HandleFunc("GET /api/v1/stream", s.handleStream)
	}
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	result, err := s.health.Handle(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on l.
func (s *Server) Serve(l net.Listener) error {
	return s.httpServer.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
