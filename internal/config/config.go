package config

import (
	"errors"
	"os"
	"strconv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL   string
	RedisURL      string
	OpenAIAPIKey  string
	MeteoAPIKey   string
	BulletinURL   string
	UpdateSecrets []string
	MassifID      int
	ReadOnly      bool
	Port          string
	MigrationsDir string
}

// Load reads configuration from environment variables, applying defaults
// where unset. DATABASE_URL, REDIS_URL, and OPENAI_API_KEY are required.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		MeteoAPIKey:   os.Getenv("METEO_FRANCE_API_KEY"),
		BulletinURL:   os.Getenv("METEO_FRANCE_BRA_URL"),
		MassifID:      3,
		ReadOnly:      os.Getenv("READ_ONLY") == "true",
		Port:          envOrDefault("PORT", "8080"),
		MigrationsDir: envOrDefault("MIGRATIONS_DIR", "migrations"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}

	if s := os.Getenv("MASSIF_ID"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.New("invalid MASSIF_ID")
		}
		cfg.MassifID = n
	}

	// Either secret grants access to the update endpoints; an empty list
	// leaves them open for local development.
	for _, key := range []string{"INTERNAL_UPDATE_SECRET", "CRON_SECRET"} {
		if v := os.Getenv(key); v != "" {
			cfg.UpdateSecrets = append(cfg.UpdateSecrets, v)
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
