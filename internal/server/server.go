// Package server exposes the referral pipeline over HTTP and serves gRPC health.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/export"
	"github.com/joseph-ayodele/referral-intake/internal/metrics"
	"github.com/joseph-ayodele/referral-intake/internal/pipeline"
)

// Extractor runs the pipeline for one uploaded document.
type Extractor interface {
	Process(ctx context.Context, doc entity.Document, opts pipeline.Options) (entity.ExtractionResult, error)
}

// Deps are the collaborators the HTTP API needs. Metrics and AIAvailable may be nil.
type Deps struct {
	Extractor   Extractor
	Exporter    *export.Service
	Metrics     *metrics.Metrics
	AIAvailable func() bool
}

// Server is the HTTP server for the referral API.
type Server struct {
	cfg    common.ServerConfig
	deps   Deps
	logger *slog.Logger
	server *http.Server
}

func NewServer(cfg common.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Exporter == nil {
		deps.Exporter = export.NewService(logger)
	}
	return &Server{cfg: cfg, deps: deps, logger: logger}
}

// Router builds the chi routing tree with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware(s.logger))
	r.Use(accessLogMiddleware)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}

	var onLimited func()
	if s.deps.Metrics != nil {
		onLimited = s.deps.Metrics.IncRateLimited
	}
	limited := rateLimitMiddleware(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst, onLimited)

	r.With(limited).Post("/api/v1/referrals/extract", s.handleExtract)
	r.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}
	return r
}

// Start listens on cfg.HTTPAddr and blocks until the server stops.
// http.ErrServerClosed after Stop is not reported as an error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.logger.Info("server.http.start", "addr", s.cfg.HTTPAddr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
