// Package liveness serves the keep-alive endpoint used by the hosting platform,
// plus readiness and Prometheus metrics.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RootText is served on GET /.
const RootText = "Телеграм бот работает!"

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Options configures the handler.
type Options struct {
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	// Checks are run by /ready, keyed by dependency name.
	Checks map[string]Check
}

// NewHandler builds the chi router for the liveness endpoints.
func NewHandler(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, RootText)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()
		for name, check := range opts.Checks {
			if err := check(ctx); err != nil {
				slog.WarnContext(ctx, "Readiness check failed", "check", name, "error", err)
				writeText(w, http.StatusServiceUnavailable, name+": unavailable")
				return
			}
		}
		writeText(w, http.StatusOK, "ready")
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Server runs the liveness handler until its context is cancelled.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer creates a server listening on port.
func NewServer(port int, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(port)),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With("component", "liveness"),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "Liveness server listening", "addr", ln.Addr().String())
		serverErrors <- s.srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("liveness server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down liveness server")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Graceful shutdown did not complete", "timeout", s.shutdownTimeout, "error", err)
		if closeErr := s.srv.Close(); closeErr != nil {
			s.logger.Error("Error killing liveness server", "error", closeErr)
		}
		return fmt.Errorf("failed to shut down liveness server: %w", err)
	}
	s.logger.Info("Liveness server stopped")
	return nil
}
