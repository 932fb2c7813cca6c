package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relay-hq/sentinel/pkg/config"
	"relay-hq/sentinel/pkg/governance"
	"relay-hq/sentinel/pkg/governance/storage"
	"relay-hq/sentinel/pkg/middleware"
)

// Server is the governed HTTP server. It wraps an application handler with
// the governance middleware chain and exposes health, metrics, and admin
// endpoints alongside it.
type Server struct {
	config       *config.Config
	governor     *governance.Governor
	app          http.Handler
	recorder     storage.Backend
	gatherer     prometheus.Gatherer
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Options configures optional server collaborators.
type Options struct {
	// Recorder backs the admin history endpoints. Nil disables them.
	Recorder storage.Backend

	// Gatherer serves the metrics endpoint. Nil uses the default gatherer.
	Gatherer prometheus.Gatherer
}

// NewServer creates a governed server around the given application handler.
func NewServer(cfg *config.Config, gov *governance.Governor, app http.Handler, opts Options) *Server {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		config:       cfg,
		governor:     gov,
		app:          app,
		recorder:     opts.Recorder,
		gatherer:     gatherer,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"address", s.config.Server.ListenAddress,
			"rate_limit_strategy", s.config.Governance.RateLimit.Strategy,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
//
// The application handler is wrapped in the full governance chain. Health,
// metrics, and admin endpoints sit outside the rate limiter and breaker so
// operators can reach them while the circuit is open.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	admin := newAdminHandler(s.governor, s.recorder)

	mux.HandleFunc("/healthz", admin.health)
	mux.Handle("/admin/governance/snapshot", http.HandlerFunc(admin.snapshot))
	mux.Handle("/admin/governance/windows", http.HandlerFunc(admin.windows))
	mux.Handle("/admin/governance/history", http.HandlerFunc(admin.history))
	mux.Handle("/admin/circuit/open", http.HandlerFunc(admin.circuitOpen))
	mux.Handle("/admin/circuit/close", http.HandlerFunc(admin.circuitClose))
	mux.Handle("/admin/circuit/reset", http.HandlerFunc(admin.circuitReset))

	if !s.config.Telemetry.Metrics.Disabled {
		mux.Handle(s.config.Telemetry.Metrics.Path, promhttp.HandlerFor(
			s.gatherer,
			promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError},
		))
	}

	// All other traffic flows through the governed application handler.
	var governed http.Handler = s.app
	governed = middleware.Governance(s.governor, middleware.DefaultExtract)(governed)
	mux.Handle("/", governed)

	// Cross-cutting middleware wraps everything, admin surface included.
	var handler http.Handler = mux
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
