package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vault-rebalancer/internal/config"
	"vault-rebalancer/internal/engine"
	"vault-rebalancer/internal/storage"
)

// Pinger verifies the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the manual analysis trigger and read-only views over
// the audit log.
type Server struct {
	cfg       config.ServerConfig
	engine    *engine.Engine
	reasoning storage.ReasoningStore
	actions   storage.ActionStore
	pinger    Pinger
	logger    zerolog.Logger
	httpSrv   *http.Server
}

// New wires the HTTP surface.
func New(cfg config.ServerConfig, eng *engine.Engine, reasoning storage.ReasoningStore, actions storage.ActionStore, pinger Pinger, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		engine:    eng,
		reasoning: reasoning,
		actions:   actions,
		pinger:    pinger,
		logger:    logger.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/reasoning", s.handleReasoning)
		r.Get("/actions", s.handleActions)
	})

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("http server listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
