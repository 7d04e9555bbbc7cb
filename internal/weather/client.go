package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	// Model is the forecast model requested from Open-Meteo.
	Model = "meteofrance_seamless"

	// Timezone governs day-boundary semantics for the forecast series.
	Timezone = "Europe/Paris"

	// Source tags every snapshot row written by this pipeline.
	Source = "open-meteo-meteofrance"

	// Location is the single region this deployment covers.
	Location = "Mont-Blanc"

	httpTimeout = 10 * time.Second
)

var hourlyFields = []string{
	"temperature_2m",
	"precipitation",
	"rain",
	"snowfall",
	"cloud_cover",
	"wind_gusts_10m",
	"wind_speed_10m",
	"temperature_20m",
	"wind_direction_10m",
	"wind_speed_100m",
	"wind_direction_100m",
}

var dailyFields = []string{
	"sunrise",
	"sunset",
	"daylight_duration",
	"wind_speed_10m_max",
	"wind_gusts_10m_max",
	"wind_direction_10m_dominant",
	"temperature_2m_max",
	"temperature_2m_min",
	"uv_index_max",
	"precipitation_probability_max",
	"snowfall_sum",
	"precipitation_sum",
}

// forecastResponse is the subset of the Open-Meteo payload the normalizer
// reads.
type forecastResponse struct {
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Elevation *float64     `json:"elevation"`
	Hourly    HourlySeries `json:"hourly"`
	Daily     DailySeries  `json:"daily"`
}

// Client fetches forecasts from Open-Meteo. No API key is required.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a Client against the production Open-Meteo endpoint.
func NewClient() *Client {
	return NewClientWithURL(defaultForecastURL)
}

// NewClientWithURL constructs a Client pointing at a custom base URL (for
// tests).
func NewClientWithURL(baseURL string) *Client {
	return &Client{baseURL: baseURL, client: &http.Client{Timeout: httpTimeout}}
}

// forecast fetches the full hourly and daily series for one reference point.
func (c *Client) forecast(ctx context.Context, p Point) (*forecastResponse, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(p.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(p.Longitude, 'f', -1, 64))
	q.Set("elevation", strconv.FormatFloat(p.Elevation, 'f', -1, 64))
	q.Set("timezone", Timezone)
	q.Set("models", Model)
	q.Set("hourly", strings.Join(hourlyFields, ","))
	q.Set("daily", strings.Join(dailyFields, ","))

	endpoint := c.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating forecast request for %s: %w", p.Name, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching forecast for %s: %w", p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("forecast fetch for %s returned status %d: %s", p.Name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding forecast for %s: %w", p.Name, err)
	}

	return &parsed, nil
}
