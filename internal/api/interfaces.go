package api

import (
	"context"

	"github.com/imlastrebor/MontSignal/internal/dashboard"
	"github.com/imlastrebor/MontSignal/internal/ingest"
)

// DashboardService defines the read-path aggregation needed by handlers.
type DashboardService interface {
	Build(ctx context.Context, force bool) (*dashboard.Response, error)
}

// BulletinIngestor defines the bulletin write path needed by handlers.
type BulletinIngestor interface {
	Run(ctx context.Context, massifID int) (*ingest.BulletinResult, error)
}

// WeatherIngestor defines the weather write path needed by handlers.
type WeatherIngestor interface {
	Run(ctx context.Context) (*ingest.WeatherResult, error)
}
