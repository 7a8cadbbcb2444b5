package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv                string
	Port                  string
	DatabaseURL           string
	RedisURL              string
	LogLevel              string
	LogFormat             string
	MaxClientsPerQuestion int
	ShutdownTimeout       time.Duration

	// WebSocket connection limits
	WSMaxConnections int
	WSMaxPerIP       int
	WSConnRatePerSec float64
	WSConnBurst      int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	maxClients, err := getEnvInt("MAX_CLIENTS_PER_QUESTION", 500)
	if err != nil {
		return nil, err
	}
	if maxClients < 1 {
		return nil, fmt.Errorf("MAX_CLIENTS_PER_QUESTION must be positive, got %d", maxClients)
	}
	cfg.MaxClientsPerQuestion = maxClients

	shutdownSecs, err := getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout = time.Duration(shutdownSecs) * time.Second

	if cfg.WSMaxConnections, err = getEnvInt("WS_MAX_CONNECTIONS", 2000); err != nil {
		return nil, err
	}
	if cfg.WSMaxPerIP, err = getEnvInt("WS_MAX_PER_IP", 20); err != nil {
		return nil, err
	}
	if cfg.WSConnBurst, err = getEnvInt("WS_CONNECTION_BURST", 20); err != nil {
		return nil, err
	}
	rate, err := getEnvFloat("WS_CONNECTIONS_PER_SECOND", 10)
	if err != nil {
		return nil, err
	}
	cfg.WSConnRatePerSec = rate

	return cfg, nil
}

// RedisEnabled reports whether cross-instance fan-out is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return parsed, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}
