package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// validDateSkewLimit guards against upstream clock skew: a first daily date
// further than this from now is replaced by the Paris-local today.
const validDateSkewLimit = 48 * time.Hour

// Fetcher retrieves both reference points and merges them into one
// canonical snapshot. Either point failing fails the whole snapshot.
type Fetcher struct {
	client *Client
	clock  clockwork.Clock
}

// NewFetcher constructs a Fetcher against the production endpoint with the
// real clock.
func NewFetcher() *Fetcher {
	return NewFetcherWithClient(NewClient(), clockwork.NewRealClock())
}

// NewFetcherWithClient constructs a Fetcher with an injectable client and
// clock (used in tests).
func NewFetcherWithClient(client *Client, clock clockwork.Clock) *Fetcher {
	return &Fetcher{client: client, clock: clock}
}

// Snapshot fetches the low- and high-altitude forecasts concurrently and
// normalizes them into a single snapshot.
func (f *Fetcher) Snapshot(ctx context.Context) (*Snapshot, error) {
	var low, high *forecastResponse

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := f.client.forecast(gCtx, LowAltitudePoint)
		if err != nil {
			return err
		}
		low = resp
		return nil
	})
	g.Go(func() error {
		resp, err := f.client.forecast(gCtx, HighAltitudePoint)
		if err != nil {
			return err
		}
		high = resp
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching weather snapshot: %w", err)
	}

	now := f.clock.Now()
	loc := parisLocation()

	lowHour := pickHourly(&low.Hourly, now, loc)
	highHour := pickHourly(&high.Hourly, now, loc)

	validDate := clampValidDate(firstDailyDate(low, high), now, loc)

	snowfallRecent := firstSnowfallSum(low)
	if snowfallRecent == nil {
		snowfallRecent = firstSnowfallSum(high)
	}

	daily, hourly := low.Daily, low.Hourly
	if len(daily.Time) == 0 {
		daily = high.Daily
	}
	if len(hourly.Time) == 0 {
		hourly = high.Hourly
	}

	lowName := LowAltitudePoint.Name
	highName := HighAltitudePoint.Name

	return &Snapshot{
		Source:    Source,
		Location:  Location,
		ValidDate: validDate,
		Timestamp: now.UTC().Format(time.RFC3339),
		Data: SnapshotData{
			Model: Model,
			LowAltitude: PointConditions{
				Name:             &lowName,
				Elevation:        low.Elevation,
				Temperature:      lowHour.temperature2m,
				WindSpeed:        lowHour.windSpeed10m,
				WindDirectionDeg: lowHour.windDirection10m,
				Gust:             lowHour.windGusts10m,
				Cloudiness:       lowHour.cloudCover,
				Snowfall:         lowHour.snowfall,
			},
			HighAltitude: PointConditions{
				Name:        &highName,
				Elevation:   high.Elevation,
				Temperature: highHour.temperature2m,
				// At altitude the 100 m wind level is the better signal;
				// fall back to 10 m when the model omits it. Gust and cloud
				// cover have no higher-level equivalent.
				WindSpeed:        firstNonNil(highHour.windSpeed100m, highHour.windSpeed10m),
				WindDirectionDeg: firstNonNil(highHour.windDirection100m, highHour.windDirection10m),
				Gust:             highHour.windGusts10m,
				Cloudiness:       highHour.cloudCover,
				Snowfall:         highHour.snowfall,
			},
			SnowfallRecentCm: snowfallRecent,
			Daily:            daily,
			Hourly:           hourly,
		},
	}, nil
}

// hourlyReading is one point's instant reading, taken from the hourly index
// nearest to now.
type hourlyReading struct {
	temperature2m     *float64
	precipitation     *float64
	rain              *float64
	snowfall          *float64
	cloudCover        *float64
	windGusts10m      *float64
	windSpeed10m      *float64
	windDirection10m  *float64
	windSpeed100m     *float64
	windDirection100m *float64
}

func pickHourly(h *HourlySeries, now time.Time, loc *time.Location) hourlyReading {
	idx := nearestIndex(h.Time, now, loc)
	return hourlyReading{
		temperature2m:     at(h.Temperature2m, idx),
		precipitation:     at(h.Precipitation, idx),
		rain:              at(h.Rain, idx),
		snowfall:          at(h.Snowfall, idx),
		cloudCover:        at(h.CloudCover, idx),
		windGusts10m:      at(h.WindGusts10m, idx),
		windSpeed10m:      at(h.WindSpeed10m, idx),
		windDirection10m:  at(h.WindDirection10m, idx),
		windSpeed100m:     at(h.WindSpeed100m, idx),
		windDirection100m: at(h.WindDirection100m, idx),
	}
}

// nearestIndex returns the index of the timestamp with the smallest
// absolute distance to now. Ties keep the first-encountered index;
// unparseable timestamps are skipped.
func nearestIndex(times []string, now time.Time, loc *time.Location) int {
	best := 0
	bestDiff := time.Duration(1<<63 - 1)
	for i, raw := range times {
		ts, err := parseLocalTime(raw, loc)
		if err != nil {
			continue
		}
		diff := now.Sub(ts)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return best
}

// clampValidDate truncates the candidate to its date part, replacing it
// with the Paris-local today when it is missing, unparseable, or further
// than two days from now.
func clampValidDate(candidate string, now time.Time, loc *time.Location) string {
	today := now.In(loc).Format("2006-01-02")
	if candidate == "" {
		return today
	}

	parsed, err := parseLocalTime(candidate, loc)
	if err != nil {
		return today
	}

	diff := parsed.Sub(now)
	if diff < 0 {
		diff = -diff
	}
	if diff > validDateSkewLimit {
		return today
	}

	if len(candidate) >= 10 {
		return candidate[:10]
	}
	return candidate
}

func firstDailyDate(low, high *forecastResponse) string {
	if len(low.Daily.Time) > 0 {
		return low.Daily.Time[0]
	}
	if len(high.Daily.Time) > 0 {
		return high.Daily.Time[0]
	}
	return ""
}

func firstSnowfallSum(resp *forecastResponse) *float64 {
	return at(resp.Daily.SnowfallSum, 0)
}

// parseLocalTime parses the provider's local timestamps ("2006-01-02T15:04"
// when a timezone is requested) as well as plain dates and RFC3339.
func parseLocalTime(raw string, loc *time.Location) (time.Time, error) {
	layouts := []string{
		"2006-01-02T15:04",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func parisLocation() *time.Location {
	loc, err := time.LoadLocation(Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func at(vals []*float64, idx int) *float64 {
	if idx < 0 || idx >= len(vals) {
		return nil
	}
	return vals[idx]
}

func firstNonNil(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
