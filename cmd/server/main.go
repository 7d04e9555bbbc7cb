package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/imlastrebor/MontSignal/internal/api"
	"github.com/imlastrebor/MontSignal/internal/bulletin"
	"github.com/imlastrebor/MontSignal/internal/cache"
	"github.com/imlastrebor/MontSignal/internal/config"
	"github.com/imlastrebor/MontSignal/internal/dashboard"
	"github.com/imlastrebor/MontSignal/internal/ingest"
	"github.com/imlastrebor/MontSignal/internal/observability"
	"github.com/imlastrebor/MontSignal/internal/storage"
	"github.com/imlastrebor/MontSignal/internal/translate"
	"github.com/imlastrebor/MontSignal/internal/weather"
)

func main() {
	// Local development convenience; the file is absent in production.
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := context.Background()

	// Connect to PostgreSQL.
	pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Run migrations.
	if err := storage.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied")

	// Connect to Redis.
	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	// Wire dependencies.
	metrics := observability.NewMetrics()
	repo := storage.NewRepository(pool)
	translator := translate.New(cfg.OpenAIAPIKey, repo, metrics, log)

	bulletinClient := bulletin.NewClient(cfg.MeteoAPIKey)
	if cfg.BulletinURL != "" {
		bulletinClient = bulletin.NewClientWithURL(cfg.BulletinURL, cfg.MeteoAPIKey)
	}

	bulletinIngestor := ingest.NewBulletinIngestor(bulletinClient, translator, repo, metrics, log)
	weatherIngestor := ingest.NewWeatherIngestor(weather.NewFetcher(), repo, metrics, log)

	dash := dashboard.NewService(dashboard.Options{
		Store:     repo,
		Bulletins: bulletinIngestor,
		Weather:   weatherIngestor,
		Cache:     cache.NewCache(redisClient),
		MassifID:  cfg.MassifID,
		ReadOnly:  cfg.ReadOnly,
		Log:       log,
		Metrics:   metrics,
	})

	handlers := api.NewHandlers(dash, bulletinIngestor, weatherIngestor, cfg.MassifID, log)

	// Build router with pingers adapted for health check.
	dbPinger := &pgxPoolPinger{pool: pool}
	redisPinger := &redisPingerAdapter{client: redisClient}

	router := api.NewRouter(handlers, cfg.UpdateSecrets, dbPinger, redisPinger, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port, "readOnly", cfg.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

// pgxPoolPinger adapts pgxpool.Pool to the api.dbPinger interface.
type pgxPoolPinger struct {
	pool interface {
		Ping(ctx context.Context) error
	}
}

func (p *pgxPoolPinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// redisPingerAdapter adapts redis.Client to the api.redisPinger interface.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
