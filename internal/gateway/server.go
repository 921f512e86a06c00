// Package gateway exposes the orchestration core over HTTP: a chat endpoint
// driving the per-turn state machine, a WebSocket progress stream, session
// management, health, and Prometheus metrics.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldhand/fieldhand/internal/agent"
	"github.com/fieldhand/fieldhand/internal/observability"
	"github.com/fieldhand/fieldhand/internal/progress"
	"github.com/fieldhand/fieldhand/internal/sessions"
)

// Options wires the server's collaborators.
type Options struct {
	// Addr is the listen address, e.g. "0.0.0.0:8080". Required.
	Addr string

	// Driver runs user turns. Required.
	Driver *agent.Driver

	// Sessions persists conversations. Required.
	Sessions sessions.Store

	// Hub routes progress events to open channels. Required for the
	// progress endpoint.
	Hub *progress.Hub

	// System is the system prompt applied to every turn.
	System string

	// Model overrides the provider default model when non-empty.
	Model string

	// MaxTokens and Temperature are passed through to the provider.
	MaxTokens   int
	Temperature float64

	// HistoryLimit bounds how many prior messages are loaded per turn.
	// Zero means the default of 50.
	HistoryLimit int

	// Metrics records turn telemetry when set.
	Metrics *observability.Metrics

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the HTTP surface over the orchestration core.
type Server struct {
	opts     Options
	logger   *slog.Logger
	server   *http.Server
	listener net.Listener
}

// NewServer builds a server from options.
func NewServer(opts Options) (*Server, error) {
	if opts.Driver == nil {
		return nil, fmt.Errorf("gateway: driver is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("gateway: session store is required")
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{opts: opts, logger: opts.Logger}, nil
}

// Handler builds the route table. Split out so tests can drive the mux
// without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/v1/progress", s.handleProgress)
	mux.HandleFunc("/v1/sessions", s.handleSessions)
	mux.HandleFunc("/v1/sessions/", s.handleSessionByID)

	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}

	s.listener = listener
	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("gateway listening", "addr", s.opts.Addr)
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.opts.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// decodeJSON decodes a request body with a 1MB cap.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
