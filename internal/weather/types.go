package weather

// Point is a fixed forecast reference location.
type Point struct {
	Name      string
	Latitude  float64
	Longitude float64
	Elevation float64
}

// The two reference points merged into each Mont-Blanc snapshot.
var (
	LowAltitudePoint  = Point{Name: "Chamonix", Latitude: 45.9237, Longitude: 6.8693, Elevation: 1035}
	HighAltitudePoint = Point{Name: "Aiguille du Midi", Latitude: 45.8789, Longitude: 6.887, Elevation: 3842}
)

// HourlySeries carries time-aligned forecast arrays: position i in every
// array refers to the timestamp at Time[i]. Value entries are pointers
// because the provider returns null for missing readings.
type HourlySeries struct {
	Time              []string   `json:"time"`
	Temperature2m     []*float64 `json:"temperature_2m"`
	Precipitation     []*float64 `json:"precipitation"`
	Rain              []*float64 `json:"rain"`
	Snowfall          []*float64 `json:"snowfall"`
	CloudCover        []*float64 `json:"cloud_cover"`
	WindGusts10m      []*float64 `json:"wind_gusts_10m"`
	WindSpeed10m      []*float64 `json:"wind_speed_10m"`
	Temperature20m    []*float64 `json:"temperature_20m"`
	WindDirection10m  []*float64 `json:"wind_direction_10m"`
	WindSpeed100m     []*float64 `json:"wind_speed_100m"`
	WindDirection100m []*float64 `json:"wind_direction_100m"`
}

// DailySeries carries one entry per forecast day, index-aligned on Time.
type DailySeries struct {
	Time                        []string   `json:"time"`
	Sunrise                     []string   `json:"sunrise"`
	Sunset                      []string   `json:"sunset"`
	DaylightDuration            []*float64 `json:"daylight_duration"`
	WindSpeed10mMax             []*float64 `json:"wind_speed_10m_max"`
	WindGusts10mMax             []*float64 `json:"wind_gusts_10m_max"`
	WindDirection10mDominant    []*float64 `json:"wind_direction_10m_dominant"`
	Temperature2mMax            []*float64 `json:"temperature_2m_max"`
	Temperature2mMin            []*float64 `json:"temperature_2m_min"`
	UVIndexMax                  []*float64 `json:"uv_index_max"`
	PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
	PrecipitationSum            []*float64 `json:"precipitation_sum"`
	SnowfallSum                 []*float64 `json:"snowfall_sum"`
}

// PointConditions is the normalized "current" reading for one reference
// point.
type PointConditions struct {
	Name             *string  `json:"name"`
	Elevation        *float64 `json:"elevation"`
	Temperature      *float64 `json:"temperature"`
	WindSpeed        *float64 `json:"windSpeed"`
	WindDirectionDeg *float64 `json:"windDirectionDeg"`
	Gust             *float64 `json:"gust"`
	Cloudiness       *float64 `json:"cloudiness"`
	Snowfall         *float64 `json:"snowfall"`
}

// SnapshotData is the payload persisted as weather_snapshots.data. Daily
// and Hourly keep the full forecast curve for consumers that need more
// than the instant readings.
type SnapshotData struct {
	Model            string          `json:"model"`
	LowAltitude      PointConditions `json:"lowAltitude"`
	HighAltitude     PointConditions `json:"highAltitude"`
	SnowfallRecentCm *float64        `json:"snowfallRecentCm"`
	Daily            DailySeries     `json:"daily"`
	Hourly           HourlySeries    `json:"hourly"`
}

// Snapshot is one normalized point-in-time weather result.
type Snapshot struct {
	Source    string       `json:"source"`
	Location  string       `json:"location"`
	ValidDate string       `json:"validDate"`
	Timestamp string       `json:"timestamp"`
	Data      SnapshotData `json:"data"`
}
