package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds and returns the Chi router with all routes configured.
// The dashboard, health, and metrics endpoints are unauthenticated; the
// update routes require the shared secret when one is configured.
// Rate limiting is applied globally: 60 requests per minute per IP.
func NewRouter(handlers *Handlers, secrets []string, db dbPinger, redisClient redisPinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, redisClient, log))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/v1/dashboard", handlers.GetDashboard)

	r.Group(func(r chi.Router) {
		r.Use(SharedSecret(secrets))
		r.Post("/api/v1/update/bulletin", handlers.UpdateBulletin)
		r.Post("/api/v1/update/weather", handlers.UpdateWeather)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
