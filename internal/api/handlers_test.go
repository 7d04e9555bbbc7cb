package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imlastrebor/MontSignal/internal/api"
	"github.com/imlastrebor/MontSignal/internal/dashboard"
	"github.com/imlastrebor/MontSignal/internal/ingest"
)

// ---- mock implementations ----

type mockDashboard struct {
	buildFn func(ctx context.Context, force bool) (*dashboard.Response, error)
	force   bool
	calls   int
}

func (m *mockDashboard) Build(ctx context.Context, force bool) (*dashboard.Response, error) {
	m.calls++
	m.force = force
	return m.buildFn(ctx, force)
}

type mockBulletinRunner struct {
	runFn    func(ctx context.Context, massifID int) (*ingest.BulletinResult, error)
	massifID int
	calls    int
}

func (m *mockBulletinRunner) Run(ctx context.Context, massifID int) (*ingest.BulletinResult, error) {
	m.calls++
	m.massifID = massifID
	return m.runFn(ctx, massifID)
}

type mockWeatherRunner struct {
	runFn func(ctx context.Context) (*ingest.WeatherResult, error)
	calls int
}

func (m *mockWeatherRunner) Run(ctx context.Context) (*ingest.WeatherResult, error) {
	m.calls++
	return m.runFn(ctx)
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// ---- helpers ----

const testSecret = "update-secret"

func sampleDashboardResponse() *dashboard.Response {
	lastUpdated := "2026-01-15T16:00:00"
	return &dashboard.Response{
		LastUpdated: &lastUpdated,
		Avalanche:   &dashboard.Avalanche{Source: "meteo-france-bra", Massif: "MONT-BLANC", ValidDate: "2026-01-16"},
	}
}

func okDashboard() *mockDashboard {
	return &mockDashboard{
		buildFn: func(_ context.Context, _ bool) (*dashboard.Response, error) {
			return sampleDashboardResponse(), nil
		},
	}
}

func okBulletins() *mockBulletinRunner {
	return &mockBulletinRunner{
		runFn: func(_ context.Context, _ int) (*ingest.BulletinResult, error) {
			return &ingest.BulletinResult{Source: "meteo-france-bra", ValidDate: "2026-01-16"}, nil
		},
	}
}

func okWeather() *mockWeatherRunner {
	return &mockWeatherRunner{
		runFn: func(_ context.Context) (*ingest.WeatherResult, error) {
			return &ingest.WeatherResult{Source: "open-meteo-meteofrance", ValidDate: "2026-01-16"}, nil
		},
	}
}

func buildRouter(dash *mockDashboard, bulletins *mockBulletinRunner, weather *mockWeatherRunner, secrets []string, db, redis *mockPinger) http.Handler {
	if db == nil {
		db = &mockPinger{}
	}
	if redis == nil {
		redis = &mockPinger{}
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := api.NewHandlers(dash, bulletins, weather, 3, log)
	return api.NewRouter(handlers, secrets, db, redis, log)
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

// ---- GET /api/v1/dashboard ----

func TestGetDashboard(t *testing.T) {
	dash := okDashboard()
	router := buildRouter(dash, okBulletins(), okWeather(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec.Result())
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "2026-01-15T16:00:00", body["lastUpdated"])
	avalanche, ok := body["avalanche"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "MONT-BLANC", avalanche["massif"])
	assert.False(t, dash.force)
}

func TestGetDashboard_RefreshFlag(t *testing.T) {
	dash := okDashboard()
	router := buildRouter(dash, okBulletins(), okWeather(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard?refresh=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, dash.force)
}

func TestGetDashboard_BuildError(t *testing.T) {
	dash := &mockDashboard{
		buildFn: func(_ context.Context, _ bool) (*dashboard.Response, error) {
			return nil, errors.New("db down")
		},
	}
	router := buildRouter(dash, okBulletins(), okWeather(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec.Result())
	assert.Equal(t, false, body["ok"])
	assert.NotEmpty(t, body["error"])
}

// ---- POST /api/v1/update/bulletin ----

func TestUpdateBulletin(t *testing.T) {
	bulletins := okBulletins()
	router := buildRouter(okDashboard(), bulletins, okWeather(), []string{testSecret}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/update/bulletin", nil)
	req.Header.Set("x-internal-secret", testSecret)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec.Result())
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, 3, bulletins.massifID, "configured massif used by default")
}

func TestUpdateBulletin_MassifOverride(t *testing.T) {
	bulletins := okBulletins()
	router := buildRouter(okDashboard(), bulletins, okWeather(), []string{testSecret}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/update/bulletin?massifId=9", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 9, bulletins.massifID)
}

func TestUpdateBulletin_InvalidMassif(t *testing.T) {
	bulletins := okBulletins()
	router := buildRouter(okDashboard(), bulletins, okWeather(), []string{testSecret}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/update/bulletin?massifId=abc", nil)
	req.Header.Set("x-internal-secret", testSecret)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, bulletins.calls)
}

func TestUpdateBulletin_IngestError(t *testing.T) {
	bulletins := &mockBulletinRunner{
		runFn: func(_ context.Context, _ int) (*ingest.BulletinResult, error) {
			return nil, errors.New("upstream down")
		},
	}
	router := buildRouter(okDashboard(), bulletins, okWeather(), []string{testSecret}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/update/bulletin", nil)
	req.Header.Set("x-internal-secret", testSecret)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec.Result())
	assert.Equal(t, false, body["ok"])
}

// ---- POST /api/v1/update/weather ----

func TestUpdateWeather(t *testing.T) {
	weather := okWeather()
	router := buildRouter(okDashboard(), okBulletins(), weather, []string{testSecret}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/update/weather", nil)
	req.Header.Set("x-internal-secret", testSecret)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, weather.calls)
}

// ---- auth ----

func TestUpdateEndpoints_Unauthorized(t *testing.T) {
	bulletins := okBulletins()
	router := buildRouter(okDashboard(), bulletins, okWeather(), []string{testSecret}, nil, nil)

	tests := []struct {
		name   string
		header func(*http.Request)
	}{
		{"no credential", func(_ *http.Request) {}},
		{"wrong header secret", func(r *http.Request) { r.Header.Set("x-internal-secret", "wrong") }},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/update/bulletin", nil)
			tt.header(req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
	assert.Zero(t, bulletins.calls)
}

func TestUpdateEndpoints_SecondSecretAccepted(t *testing.T) {
	router := buildRouter(okDashboard(), okBulletins(), okWeather(), []string{"primary", "cron"}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/update/weather", nil)
	req.Header.Set("Authorization", "Bearer cron")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateEndpoints_OpenWithoutSecrets(t *testing.T) {
	router := buildRouter(okDashboard(), okBulletins(), okWeather(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/update/weather", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboard_NoAuthRequired(t *testing.T) {
	router := buildRouter(okDashboard(), okBulletins(), okWeather(), []string{testSecret}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

// ---- GET /api/v1/health ----

func TestHealth_OK(t *testing.T) {
	router := buildRouter(okDashboard(), okBulletins(), okWeather(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec.Result())
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["db"])
	assert.Equal(t, "ok", body["redis"])
}

func TestHealth_Degraded(t *testing.T) {
	db := &mockPinger{err: errors.New("db down")}
	router := buildRouter(okDashboard(), okBulletins(), okWeather(), nil, db, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec.Result())
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "error", body["db"])
	assert.Equal(t, "ok", body["redis"])
}

// ---- GET /metrics ----

func TestMetricsEndpoint(t *testing.T) {
	router := buildRouter(okDashboard(), okBulletins(), okWeather(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
