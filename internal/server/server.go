// Package server exposes the gantry runtime over HTTP: a JSON API for
// sessions, turns, tasks, and events, plus a live SSE stream fed by the
// event bus.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gantry-oss/gantry/internal/core"
	"github.com/gantry-oss/gantry/internal/telemetry"
)

// Server is the gantry HTTP server.
type Server struct {
	core   *core.Core
	broker *Broker
	logger *telemetry.Logger
}

// New creates a server around a wired core. The SSE broker subscribes
// to the core's bus immediately so no events are missed between New
// and Start.
func New(c *core.Core) *Server {
	return &Server{
		core:   c,
		broker: NewBroker(c.Bus, c.Logger),
		logger: c.Logger,
	}
}

// Start runs the HTTP server and blocks until the context is cancelled
// or the listener fails.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           corsMiddleware(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting gantry server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.broker.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		s.broker.Close()
		return err
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health and stats
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// Agents
	mux.HandleFunc("GET /api/agents", s.handleListAgents)

	// Sessions
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("GET /api/sessions/{id}/queue", s.handleSessionQueue)

	// Queues
	mux.HandleFunc("GET /api/queues", s.handleAllQueues)

	// Tasks
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/stats", s.handleTaskStats)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /api/tasks/{id}/cancel", s.handleCancelTask)

	// Tools
	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("POST /api/tools/{name}/execute", s.handleExecuteTool)

	// Events
	mux.HandleFunc("GET /api/events/history", s.handleEventHistory)
	mux.HandleFunc("GET /api/events/archive", s.handleEventArchive)
	mux.HandleFunc("GET /api/events/stream", s.handleEventStream)

	return mux
}

// corsMiddleware adds CORS headers so browser dashboards can talk to a
// locally running server.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
