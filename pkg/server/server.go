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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edustack-hq/turnstile/pkg/admission"
	"edustack-hq/turnstile/pkg/audit"
	"edustack-hq/turnstile/pkg/config"
	"edustack-hq/turnstile/pkg/quota"
	"edustack-hq/turnstile/pkg/server/middleware"
	"edustack-hq/turnstile/pkg/telemetry/health"
)

// BuildInfo identifies the running binary on /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Deps are the collaborators the server exposes. Controller and
// Ledger are required; Recorder and AuditStore may be nil, which
// disables audit on the corresponding routes.
type Deps struct {
	Controller *admission.Controller
	Ledger     *quota.Ledger
	Recorder   *audit.Recorder
	AuditStore audit.Store
	Health     *health.Checker
	Build      BuildInfo
}

// Server is the admin and operations HTTP server.
type Server struct {
	config       *config.ServerConfig
	deps         Deps
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates an admin server. The health checker may be nil,
// in which case a fresh one with no registered checks is used.
func NewServer(cfg *config.ServerConfig, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	return &Server{
		config:       cfg,
		deps:         deps,
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

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting admin server", "address", s.config.ListenAddress)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

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

// Shutdown gracefully shuts down the server, waiting up to the
// configured shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
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

		slog.Info("admin server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler. Exposed for tests and
// for embedding the admin surface into another mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.deps.Health.LivenessHandler())
	mux.HandleFunc("HEAD /healthz", s.deps.Health.LivenessHandler())
	mux.HandleFunc("GET /readyz", s.deps.Health.ReadinessHandler())
	mux.HandleFunc("GET /version", health.VersionHandler(
		s.deps.Build.Version, s.deps.Build.Commit, s.deps.Build.BuildTime))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /admin/usage", s.handleListUsage)
	mux.HandleFunc("GET /admin/usage/{user_id}", s.handleGetUsage)
	mux.HandleFunc("GET /admin/blocks", s.handleListBlocks)
	mux.HandleFunc("DELETE /admin/blocks/{identifier}", s.handleUnblock)
	mux.HandleFunc("GET /admin/audit", s.handleListAudit)

	var handler http.Handler = mux
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)

	return handler
}
