package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/vdiff/pkg/middleware"
	"github.com/vango-dev/vdiff/pkg/snapshot"
)

// Server is the HTTP/WebSocket front end of the reconciler. Clients send
// trees over a WebSocket session and receive the patches that turn their
// mirror of the previous tree into the new one.
type Server struct {
	sessions  *SessionManager
	config    *ServerConfig
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	metrics   *middleware.Metrics
	tracer    *middleware.Tracer
	snapshots snapshot.Store

	mu         sync.Mutex
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics enables Prometheus metrics, served at config.MetricsPath.
func WithMetrics(m *middleware.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTracer enables OpenTelemetry spans for render passes.
func WithTracer(t *middleware.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithSnapshots stores a snapshot of every rendered tree in st.
func WithSnapshots(st snapshot.Store) Option {
	return func(s *Server) {
		s.snapshots = st
	}
}

// New creates a new Server with the given configuration. Unset fields take
// their defaults.
func New(config *ServerConfig, opts ...Option) (*Server, error) {
	config = config.withDefaults()
	s := &Server{
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		CheckOrigin:     config.CheckOrigin,
	}

	sessions, err := NewSessionManager(config, s.logger, s.metrics, s.tracer, s.snapshots)
	if err != nil {
		return nil, err
	}
	s.sessions = sessions
	return s, nil
}

// Handler returns the HTTP routes of the server:
//
//	GET  /healthz                  liveness and session count
//	POST /api/reconcile            one-shot reconciliation of two notations
//	GET  /api/snapshots/{hash}     a stored snapshot
//	GET  /ws                       WebSocket sessions
//	GET  <MetricsPath>             Prometheus metrics, when enabled
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/reconcile", s.handleReconcile)
		r.Get("/snapshots/{hash}", s.handleSnapshot)
	})
	r.Get("/ws", s.HandleWebSocket)
	if s.metrics != nil {
		r.Handle(s.config.MetricsPath, s.metrics.Handler())
	}
	return r
}

// Run serves on config.Address until ctx is canceled or the listener fails,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.config.Address,
		Handler:     s.Handler(),
		ReadTimeout: s.config.ReadTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server starting", "address", s.config.Address)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown closes every session and stops the HTTP server if Run started it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.Shutdown()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}
