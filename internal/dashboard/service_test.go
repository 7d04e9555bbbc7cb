package dashboard_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imlastrebor/MontSignal/internal/dashboard"
	"github.com/imlastrebor/MontSignal/internal/ingest"
	"github.com/imlastrebor/MontSignal/internal/observability"
	"github.com/imlastrebor/MontSignal/internal/storage"
)

var testNow = time.Date(2026, 1, 16, 12, 0, 0, 0, time.UTC)

type mockStore struct {
	bulletin     *storage.BulletinRow
	bulletinErr  error
	weather      *storage.WeatherRow
	weatherErr   error
	texts        map[string]*storage.TextSourceRow
	textErr      error
	bulletinGets int
}

func (m *mockStore) LatestBulletin(_ context.Context) (*storage.BulletinRow, error) {
	m.bulletinGets++
	return m.bulletin, m.bulletinErr
}

func (m *mockStore) LatestWeatherSnapshot(_ context.Context) (*storage.WeatherRow, error) {
	return m.weather, m.weatherErr
}

func (m *mockStore) LatestTextSource(_ context.Context, source string) (*storage.TextSourceRow, error) {
	if m.textErr != nil {
		return nil, m.textErr
	}
	return m.texts[source], nil
}

type mockBulletinRunner struct {
	calls int
	err   error
	onRun func()
}

func (m *mockBulletinRunner) Run(_ context.Context, _ int) (*ingest.BulletinResult, error) {
	m.calls++
	if m.onRun != nil {
		m.onRun()
	}
	return &ingest.BulletinResult{}, m.err
}

type mockWeatherRunner struct {
	calls int
	err   error
	onRun func()
}

func (m *mockWeatherRunner) Run(_ context.Context) (*ingest.WeatherResult, error) {
	m.calls++
	if m.onRun != nil {
		m.onRun()
	}
	return &ingest.WeatherResult{}, m.err
}

type mockResponseCache struct {
	stored *dashboard.Response
	getErr error
	setErr error
	gets   int
	sets   int
}

func (m *mockResponseCache) Get(_ context.Context) (*dashboard.Response, error) {
	m.gets++
	return m.stored, m.getErr
}

func (m *mockResponseCache) Set(_ context.Context, resp *dashboard.Response) error {
	m.sets++
	if m.setErr == nil {
		m.stored = resp
	}
	return m.setErr
}

func strPtr(s string) *string { return &s }

// issuedAgo formats a timestamp the given duration before testNow.
func issuedAgo(d time.Duration) *string {
	return strPtr(testNow.Add(-d).Format("2006-01-02T15:04:05"))
}

func snapshotAgo(d time.Duration) *string {
	return strPtr(testNow.Add(-d).Format(time.RFC3339))
}

func freshStore() *mockStore {
	return &mockStore{
		bulletin: &storage.BulletinRow{
			Source:    "meteo-france-bra",
			Massif:    "MONT-BLANC",
			ValidDate: "2026-01-16",
			IssuedAt:  issuedAgo(10 * time.Hour),
		},
		weather: &storage.WeatherRow{
			Source:       "open-meteo-meteofrance",
			Location:     "Mont-Blanc",
			ValidDate:    "2026-01-16",
			SnapshotTime: snapshotAgo(1 * time.Hour),
		},
		texts: map[string]*storage.TextSourceRow{
			"meteo-france-bra": {
				Source:      "meteo-france-bra",
				ValidDate:   "2026-01-16",
				FrenchText:  strPtr("Risque marque."),
				EnglishText: strPtr("Marked risk."),
			},
		},
	}
}

type fixture struct {
	store     *mockStore
	bulletins *mockBulletinRunner
	weather   *mockWeatherRunner
	cache     *mockResponseCache
	service   *dashboard.Service
}

func newFixture(store *mockStore, opts func(*dashboard.Options)) *fixture {
	f := &fixture{
		store:     store,
		bulletins: &mockBulletinRunner{},
		weather:   &mockWeatherRunner{},
		cache:     &mockResponseCache{},
	}
	options := dashboard.Options{
		Store:     store,
		Bulletins: f.bulletins,
		Weather:   f.weather,
		Cache:     f.cache,
		Clock:     clockwork.NewFakeClockAt(testNow),
		MassifID:  3,
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   observability.NewMetricsForTesting(),
	}
	if opts != nil {
		opts(&options)
	}
	f.service = dashboard.NewService(options)
	return f
}

func TestBuild_FreshDataSkipsIngestion(t *testing.T) {
	f := newFixture(freshStore(), nil)

	resp, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)

	assert.Zero(t, f.bulletins.calls)
	assert.Zero(t, f.weather.calls)

	require.NotNil(t, resp.Avalanche)
	assert.Equal(t, "MONT-BLANC", resp.Avalanche.Massif)
	require.NotNil(t, resp.Weather)
	assert.Equal(t, "Mont-Blanc", resp.Weather.Location)
	require.NotNil(t, resp.Sources.Bulletin)
	assert.Equal(t, "Marked risk.", *resp.Sources.Bulletin.EnglishText)
	assert.Nil(t, resp.Sources.Chamonix)

	assert.Equal(t, resp.Avalanche.IssuedAt, resp.LastUpdated)
}

func TestBuild_StaleBulletinTriggersIngestion(t *testing.T) {
	store := freshStore()
	store.bulletin.IssuedAt = issuedAgo(19 * time.Hour)

	f := newFixture(store, nil)
	f.bulletins.onRun = func() {
		store.bulletin = &storage.BulletinRow{
			Source:    "meteo-france-bra",
			Massif:    "MONT-BLANC",
			ValidDate: "2026-01-17",
			IssuedAt:  issuedAgo(0),
		}
	}

	resp, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, f.bulletins.calls)
	assert.Zero(t, f.weather.calls)
	require.NotNil(t, resp.Avalanche)
	assert.Equal(t, "2026-01-17", resp.Avalanche.ValidDate, "refreshed row served")
}

func TestBuild_BulletinBoundaryIsFresh(t *testing.T) {
	store := freshStore()
	store.bulletin.IssuedAt = issuedAgo(18 * time.Hour)

	f := newFixture(store, nil)

	_, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, f.bulletins.calls)
}

func TestBuild_MissingIssuedAtIsStale(t *testing.T) {
	store := freshStore()
	store.bulletin.IssuedAt = nil

	f := newFixture(store, nil)

	_, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.bulletins.calls)
}

func TestBuild_NoBulletinRowTriggersIngestion(t *testing.T) {
	store := freshStore()
	store.bulletin = nil

	f := newFixture(store, nil)

	_, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.bulletins.calls)
}

func TestBuild_WeatherBoundaryIsFresh(t *testing.T) {
	store := freshStore()
	store.weather.SnapshotTime = snapshotAgo(3 * time.Hour)

	f := newFixture(store, nil)

	_, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, f.weather.calls)
}

func TestBuild_StaleWeatherTriggersIngestion(t *testing.T) {
	store := freshStore()
	store.weather.SnapshotTime = snapshotAgo(3*time.Hour + time.Minute)

	f := newFixture(store, nil)

	_, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.weather.calls)
	assert.Zero(t, f.bulletins.calls)
}

func TestBuild_ForceRefreshesBothSources(t *testing.T) {
	f := newFixture(freshStore(), nil)

	_, err := f.service.Build(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, f.bulletins.calls)
	assert.Equal(t, 1, f.weather.calls)
	assert.Zero(t, f.cache.gets, "force bypasses the response cache")
	assert.Equal(t, 1, f.cache.sets, "force repopulates the response cache")
}

func TestBuild_ReadOnlySkipsIngestion(t *testing.T) {
	store := freshStore()
	store.bulletin.IssuedAt = issuedAgo(30 * time.Hour)
	store.weather.SnapshotTime = snapshotAgo(10 * time.Hour)

	f := newFixture(store, func(o *dashboard.Options) { o.ReadOnly = true })

	resp, err := f.service.Build(context.Background(), true)
	require.NoError(t, err)

	assert.Zero(t, f.bulletins.calls)
	assert.Zero(t, f.weather.calls)
	require.NotNil(t, resp.Avalanche)
}

func TestBuild_IngestFailureServesStoredData(t *testing.T) {
	store := freshStore()
	store.bulletin.IssuedAt = issuedAgo(19 * time.Hour)

	f := newFixture(store, nil)
	f.bulletins.err = errors.New("upstream down")

	resp, err := f.service.Build(context.Background(), false)
	require.NoError(t, err, "refresh failures must not 5xx the read path")

	assert.Equal(t, 1, f.bulletins.calls)
	require.NotNil(t, resp.Avalanche)
	assert.Equal(t, "2026-01-16", resp.Avalanche.ValidDate, "prior row kept")
	assert.Equal(t, 1, store.bulletinGets, "no re-read after failed refresh")
}

func TestBuild_PrimaryQueryFailureIsFatal(t *testing.T) {
	store := freshStore()
	store.bulletinErr = errors.New("db down")

	f := newFixture(store, nil)

	_, err := f.service.Build(context.Background(), false)
	require.Error(t, err)
}

func TestBuild_SecondaryLookupFailuresDegrade(t *testing.T) {
	store := freshStore()
	store.weatherErr = errors.New("db flake")
	store.textErr = errors.New("db flake")

	f := newFixture(store, nil)

	resp, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)

	require.NotNil(t, resp.Avalanche)
	assert.Nil(t, resp.Weather)
	assert.Nil(t, resp.Sources.Bulletin)
	assert.Nil(t, resp.Sources.Chamonix)
}

func TestBuild_LastUpdatedFallsBackToWeather(t *testing.T) {
	store := freshStore()
	store.bulletin.IssuedAt = nil

	f := newFixture(store, func(o *dashboard.Options) { o.ReadOnly = true })

	resp, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)

	require.NotNil(t, resp.LastUpdated)
	assert.Equal(t, *store.weather.SnapshotTime, *resp.LastUpdated)
}

func TestBuild_LastUpdatedNilWithoutData(t *testing.T) {
	store := &mockStore{texts: map[string]*storage.TextSourceRow{}}

	f := newFixture(store, func(o *dashboard.Options) { o.ReadOnly = true })

	resp, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)

	assert.Nil(t, resp.LastUpdated)
	assert.Nil(t, resp.Avalanche)
	assert.Nil(t, resp.Weather)
}

func TestBuild_CacheHitSkipsStore(t *testing.T) {
	store := freshStore()
	cached := &dashboard.Response{LastUpdated: strPtr("2026-01-16T08:00:00")}

	f := newFixture(store, nil)
	f.cache.stored = cached

	resp, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, cached, resp)
	assert.Zero(t, store.bulletinGets)
	assert.Zero(t, f.cache.sets)
}

func TestBuild_CacheErrorsDegrade(t *testing.T) {
	f := newFixture(freshStore(), nil)
	f.cache.getErr = errors.New("redis down")
	f.cache.setErr = errors.New("redis down")

	resp, err := f.service.Build(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, resp.Avalanche)
}
