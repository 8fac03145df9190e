// Package api provides the HTTP API server for linelot.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linelot/linelot/internal/api/middleware"
	"github.com/linelot/linelot/internal/events"
	"github.com/linelot/linelot/internal/flatten"
	"github.com/linelot/linelot/internal/ingest"
	"github.com/linelot/linelot/internal/query"
	"github.com/linelot/linelot/internal/tenant"
)

// Server wires the HTTP transport around the domain collaborators: the
// ingestion pipeline, the query engine, the flattener, and the
// tenant/auth store. Mirrors the teacher's Server struct shape (held
// collaborators + a stdlib http.Server + graceful shutdown).
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	config     ServerConfig
	startTime  time.Time

	pipeline   *ingest.Pipeline
	engine     *query.Engine
	flattener  *flatten.Flattener
	tenants    tenant.Store
	limiter    middleware.RateLimiter
	health     HealthChecker
	closers    []io.Closer
}

// HealthChecker is the readiness probe's DB-reachability contract,
// satisfied by internal/storage.TracingStore (spec's supplemented
// readiness endpoint: "DB ping with short timeout, 503 on failure").
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewServer constructs a Server. pipeline, engine, and flattener are
// required; tenants may be nil only when cfg.AuthMode is off. Panics on a
// missing required dependency, matching the teacher's fail-fast
// constructor contract (a misconfigured server should never start).
func NewServer(
	cfg ServerConfig,
	logger *slog.Logger,
	pipeline *ingest.Pipeline,
	engine *query.Engine,
	flattener *flatten.Flattener,
	tenants tenant.Store,
	limiter middleware.RateLimiter,
	health HealthChecker,
) *Server {
	if pipeline == nil {
		panic("api: NewServer requires a non-nil ingest.Pipeline")
	}

	if engine == nil {
		panic("api: NewServer requires a non-nil query.Engine")
	}

	if flattener == nil {
		panic("api: NewServer requires a non-nil flatten.Flattener")
	}

	if cfg.AuthMode == middleware.AuthModeAPIKey && tenants == nil {
		panic("api: NewServer requires a non-nil tenant.Store when AUTH_MODE=api_key")
	}

	s := &Server{
		logger:    logger,
		config:    cfg,
		startTime: time.Now(),
		pipeline:  pipeline,
		engine:    engine,
		flattener: flattener,
		tenants:   tenants,
		limiter:   limiter,
		health:    health,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.setupRoutes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// RegisterCloser adds a dependency this server should close on shutdown
// (storage connections, the Kafka publisher), following the teacher's
// closeDependency best-effort close pattern.
func (s *Server) RegisterCloser(c io.Closer) {
	s.closers = append(s.closers, c)
}

// setupRoutes builds the mux and wraps it in the middleware chain.
// Ordering follows the teacher's server.go: correlation ID first (so
// every downstream log line carries one), then recovery (so a panic in
// auth/rate-limit/handlers is still caught), then auth, then rate limit,
// then request logging, then CORS, then the best-effort audit log.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	return middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(s.logger),
		middleware.WithTenantAuth(s.tenants, s.config.ToAuthConfig(), s.logger),
		middleware.WithRateLimit(s.limiter, s.logger),
		middleware.WithRequestLogger(s.logger),
		middleware.WithCORS(s.config.ToCORSConfig()),
		middleware.WithAudit(s.config.ToAuditConfig(), s.logger),
	)
}

// Start runs the HTTP server until a shutdown signal (SIGINT/SIGTERM) or
// the server fails to start, then drains in-flight requests within
// ShutdownTimeout. Mirrors the teacher's Start/signal-handling shape.
func (s *Server) Start() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting HTTP server", slog.String("address", s.httpServer.Addr))

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen and serve: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown failed", slog.Any("error", err))
	}

	for _, c := range s.closers {
		s.closeDependency(c)
	}

	return nil
}

// closeDependency closes c best-effort, logging but never failing
// shutdown on a close error.
func (s *Server) closeDependency(c io.Closer) {
	if err := c.Close(); err != nil {
		s.logger.Warn("failed to close dependency during shutdown", slog.Any("error", err))
	}
}
