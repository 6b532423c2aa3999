// Package server wires the HTTP handler layer into a net/http server: route
// table, middleware chain, and graceful start/shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/common"
	"github.com/ternarybob/orchestrator/internal/handlers"
)

// Handlers bundles every handler the route table dispatches to.
type Handlers struct {
	Session    *handlers.SessionHandler
	Generate   *handlers.GenerateHandler
	Iterate    *handlers.IterateHandler
	Node       *handlers.NodeHandler
	Preference *handlers.PreferenceHandler
	WebSocket  *handlers.WebSocketHandler
}

// Server manages the HTTP listener and route table.
type Server struct {
	handlers     *Handlers
	config       common.ServerConfig
	router       *http.ServeMux
	server       *http.Server
	logger       arbor.ILogger
	shutdownChan chan struct{}
}

// New creates an HTTP server wired to h, serving on cfg.Host:cfg.Port.
func New(h *Handlers, cfg common.ServerConfig, logger arbor.ILogger) *Server {
	s := &Server{
		handlers: h,
		config:   cfg,
		logger:   logger,
	}

	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withConditionalMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 360 * time.Second, // generation jobs can run long; don't cut the response short
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// SetShutdownChannel sets the channel signaled when HTTP shutdown is requested.
func (s *Server) SetShutdownChannel(ch chan struct{}) {
	s.shutdownChan = ch
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.server.Addr).Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// Handler returns the wrapped http.Handler, for use in tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ShutdownHandler handles a dev-mode graceful shutdown request over HTTP.
func (s *Server) ShutdownHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info().Msg("shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("shutting down gracefully...\n"))
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
