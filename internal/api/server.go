// Package api exposes the fleet over HTTP: REST reads and commands, plus
// WebSocket and Server-Sent Events subscriptions to the broadcast hub.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dronefleet/internal/auth"
	"dronefleet/internal/logging"
	"dronefleet/internal/sim"
)

// Server serves the HTTP API for one simulator.
type Server struct {
	sim      *sim.Simulator
	auth     *auth.Authenticator
	upgrader websocket.Upgrader
}

// NewServer creates a server. A nil authenticator disables the login and
// admin routes and leaves commands unprotected.
func NewServer(s *sim.Simulator, a *auth.Authenticator) *Server {
	return &Server{
		sim:  s,
		auth: a,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed API with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	return withCORS(mux)
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRootUpgrade)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	mux.HandleFunc("GET /api/drones", s.handleDrones)
	mux.HandleFunc("GET /api/drones/{id}/vitals", s.handleVitals)
	mux.HandleFunc("GET /api/drones/{id}/feed", s.handleFeed)
	mux.Handle("POST /api/drones/{id}/command", s.protect(http.HandlerFunc(s.handleCommand)))
	mux.HandleFunc("GET /api/commands", s.handleCommands)
	mux.HandleFunc("GET /api/fleet-health", s.handleHealth)
	mux.HandleFunc("GET /api/telemetry", s.handleTelemetry)

	if s.auth != nil {
		mux.HandleFunc("POST /api/auth/login", s.auth.LoginHandler())
		mux.Handle("GET /api/admin/dashboard", s.auth.RequireAuth(http.HandlerFunc(s.handleDashboard)))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
}

func (s *Server) protect(h http.Handler) http.Handler {
	if s.auth == nil {
		return h
	}
	return s.auth.RequireAuth(h)
}

// Start serves on addr until ctx is done, then shuts down gracefully.
// Request contexts derive from ctx so streaming handlers end with it.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logging.FromContext(ctx)
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("api stopped")
	return nil
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Cache-Control")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
