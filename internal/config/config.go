package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/pm25-data-api/internal/dataset"
)

type AppConfig struct {
	Port string

	// DataFile is the NetCDF file loaded at startup.
	DataFile string
	// DatasetURL, when set, is downloaded to DataFile if the file is absent.
	DatasetURL  string
	HTTPTimeout time.Duration

	Load dataset.LoadOptions

	// StatsInterval controls how often dataset gauges are refreshed (0 = never).
	StatsInterval time.Duration

	// Mutation rate limit in requests per second (0 = unlimited).
	WriteRateLimit float64
	WriteRateBurst int

	LogLevel slog.Level
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.DataFile = getenvDefault("PM25_DATA_FILE", "data/global_pm25.nc")
	cfg.DatasetURL = os.Getenv("PM25_DATASET_URL")

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.Load = dataset.DefaultLoadOptions()
	cfg.Load.Variable = getenvDefault("PM25_VARIABLE", cfg.Load.Variable)
	cfg.Load.LatDim = getenvDefault("PM25_LAT_DIM", cfg.Load.LatDim)
	cfg.Load.LonDim = getenvDefault("PM25_LON_DIM", cfg.Load.LonDim)
	if cfg.Load.LatFraction, err = getenvInt("PM25_LAT_FRACTION", cfg.Load.LatFraction); err != nil {
		return nil, err
	}
	if cfg.Load.LonFraction, err = getenvInt("PM25_LON_FRACTION", cfg.Load.LonFraction); err != nil {
		return nil, err
	}
	if cfg.Load.LatFraction < 1 || cfg.Load.LonFraction < 1 {
		return nil, fmt.Errorf("PM25_LAT_FRACTION and PM25_LON_FRACTION must be at least 1")
	}

	interval, err := time.ParseDuration(getenvDefault("STATS_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_INTERVAL: %w", err)
	}
	cfg.StatsInterval = interval

	limit, err := strconv.ParseFloat(getenvDefault("WRITE_RATE_LIMIT", "50"), 64)
	if err != nil || limit < 0 {
		return nil, fmt.Errorf("invalid WRITE_RATE_LIMIT %q", os.Getenv("WRITE_RATE_LIMIT"))
	}
	cfg.WriteRateLimit = limit
	if cfg.WriteRateBurst, err = getenvInt("WRITE_RATE_BURST", 10); err != nil {
		return nil, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(getenvDefault("LOG_LEVEL", "info")))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
