// Package config loads Oasis's startup configuration from the environment.
// There is no hot-reload path; configuration is read once at process start.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-driven setting the service needs.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string

	ShutdownTimeout time.Duration
	LogLevel        string
}

// Load reads the environment and applies the teacher's pattern of
// env-var-with-fallback-default for every field.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:    getenv("OASIS_HTTP_ADDR", ":8080"),
		MetricsAddr: getenv("OASIS_METRICS_ADDR", "0.0.0.0:9090"),

		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getenv("POSTGRES_PORT", "5432"),
		PostgresDB:       getenv("POSTGRES_DB", "oasis"),
		PostgresUser:     getenv("POSTGRES_USER", "oasis"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "oasis"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		S3Bucket:        getenv("OASIS_S3_BUCKET", ""),
		S3Region:        getenv("OASIS_S3_REGION", "us-east-1"),
		S3Endpoint:      getenv("OASIS_S3_ENDPOINT", ""),
		S3AccessKey:     getenv("OASIS_S3_ACCESS_KEY", ""),
		S3SecretKey:     getenv("OASIS_S3_SECRET_KEY", ""),
		S3PublicBaseURL: getenv("OASIS_S3_PUBLIC_BASE_URL", ""),

		LogLevel: getenv("OASIS_LOG_LEVEL", "info"),
	}

	shutdownSecs, err := strconv.Atoi(getenv("OASIS_SHUTDOWN_TIMEOUT_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid OASIS_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
	}
	cfg.ShutdownTimeout = time.Duration(shutdownSecs) * time.Second

	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("OASIS_S3_BUCKET is required")
	}

	return cfg, nil
}

// PostgresDSN builds the libpq connection string the way the teacher's
// lake/api config builds its ClickHouse/Postgres DSNs.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSLMode,
	)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
