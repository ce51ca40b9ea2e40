package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// config is read once at startup from the environment (and .env when present).
type config struct {
	Env            string
	LogLevel       string
	Port           string
	StorageBackend string
	DBURL          string
	SQLitePath     string
	LiveTick       time.Duration
	SummaryDays    int
}

// loadConfig loads .env if it exists, then reads and validates the environment.
// A missing .env is not an error; production usually sets real env vars.
func loadConfig() (*config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	tickSeconds, err := envInt("LIVE_TICK_SECONDS", 1)
	if err != nil {
		return nil, err
	}
	summaryDays, err := envInt("SUMMARY_DAYS", defaultSummaryDays)
	if err != nil {
		return nil, err
	}

	cfg := &config{
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Port:           getEnv("PORT", "3000"),
		StorageBackend: getEnv("STORAGE_BACKEND", "sqlite"),
		DBURL:          os.Getenv("DB_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", "energy.db"),
		LiveTick:       time.Duration(tickSeconds) * time.Second,
		SummaryDays:    summaryDays,
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	switch c.StorageBackend {
	case "postgres":
		if c.DBURL == "" {
			return errors.New("DB_URL is required when STORAGE_BACKEND=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	default:
		return errors.New("STORAGE_BACKEND must be one of: postgres, sqlite")
	}
	if c.LiveTick <= 0 {
		return errors.New("LIVE_TICK_SECONDS must be positive")
	}
	if c.SummaryDays <= 0 {
		return errors.New("SUMMARY_DAYS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
