// internal/api/router.go
package api

import (
	"context"
	"net/http"
	"time"

	"loan-manager/internal/common/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessCheck reports whether a dependency (store, database) is usable.
type ReadinessCheck func(ctx context.Context) error

type RouterConfig struct {
	Handler       *Handler
	Auth          *BasicAuth
	Observability *observability.Observability
	Ready         ReadinessCheck
	// MetricsHandler defaults to promhttp.Handler().
	MetricsHandler http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Ready(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "not_ready",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	metrics := cfg.MetricsHandler
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Handle("/metrics", metrics)

	h := cfg.Handler
	r.Route("/api/v1/mobile", func(r chi.Router) {
		r.Post("/subscribe", h.Subscribe)
		r.Post("/loans/request", h.RequestLoan)
		r.Get("/loans/status/{customerNumber}", h.GetStatus)
	})

	r.Route("/api/v1/lms", func(r chi.Router) {
		r.Use(cfg.Auth.Middleware)
		r.Get("/transactions/{customerNumber}", h.Transactions)
	})

	return r
}
