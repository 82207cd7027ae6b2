// Package server assembles the HTTP handler tree and runs the listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/urbansphere/internal/core/config"
	"github.com/mohammed-shakir/urbansphere/internal/core/health"
	middleware "github.com/mohammed-shakir/urbansphere/internal/core/middleware"
	"github.com/mohammed-shakir/urbansphere/internal/core/router"
)

// NewHandler wires middleware, probes and the dashboard routes. /metrics is
// served here only when no dedicated metrics listener is configured.
func NewHandler(cfg config.Config, logger *slog.Logger, h *router.Handlers, checks ...health.Check) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(checks...))
	if !cfg.Metrics.Enabled {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}
	h.Mount(r)
	return r
}

// Run serves handler on cfg.Addr until ctx is done.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.FetchTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
