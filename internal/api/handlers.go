package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	dashboard DashboardService
	bulletins BulletinIngestor
	weather   WeatherIngestor
	massifID  int
	log       *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies. massifID
// is the default massif for bulletin updates without an explicit override.
func NewHandlers(dash DashboardService, bulletins BulletinIngestor, weather WeatherIngestor, massifID int, log *slog.Logger) *Handlers {
	return &Handlers{
		dashboard: dash,
		bulletins: bulletins,
		weather:   weather,
		massifID:  massifID,
		log:       log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetDashboard handles GET /api/v1/dashboard.
// refresh=1 forces re-ingestion of both sources before responding. A 500
// is returned only when the primary store query fails; upstream refresh
// failures degrade to whatever data is stored.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "1"

	resp, err := h.dashboard.Build(r.Context(), force)
	if err != nil {
		h.log.Error("dashboard build failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "failed to build dashboard"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"lastUpdated": resp.LastUpdated,
		"avalanche":   resp.Avalanche,
		"weather":     resp.Weather,
		"sources":     resp.Sources,
	})
}

// UpdateBulletin handles POST /api/v1/update/bulletin.
// An optional massifId query parameter overrides the configured massif.
func (h *Handlers) UpdateBulletin(w http.ResponseWriter, r *http.Request) {
	massifID := h.massifID
	if raw := r.URL.Query().Get("massifId"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid massifId"})
			return
		}
		massifID = n
	}

	result, err := h.bulletins.Run(r.Context(), massifID)
	if err != nil {
		h.log.Error("bulletin update failed", "massifId", massifID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "bulletin ingestion failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

// UpdateWeather handles POST /api/v1/update/weather.
func (h *Handlers) UpdateWeather(w http.ResponseWriter, r *http.Request) {
	result, err := h.weather.Run(r.Context())
	if err != nil {
		h.log.Error("weather update failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "weather ingestion failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

// HealthCheck handles GET /api/v1/health.
// Pings DB and Redis; returns 200 if both ok, 503 otherwise.
type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, map[string]string{
			"status": func() string {
				if status == http.StatusOK {
					return "ok"
				}
				return "degraded"
			}(),
			"db":    dbStatus,
			"redis": redisStatus,
		})
	}
}
