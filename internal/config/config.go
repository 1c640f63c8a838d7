package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	StorageDriverFile     = "file"
	StorageDriverMemory   = "memory"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"
)

type Config struct {
	Env string

	BackendURL     string
	HTTPTimeout    time.Duration
	RefreshTimeout time.Duration

	StorageDriver    string
	StoragePath      string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	StorageKeyPrefix string

	LogLevel string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELTraceSamplingRatio    float64
	OTELMetricsExportInterval time.Duration
	OTELHTTPEnabled           bool
}

func Load() (*Config, error) {
	cfg, err := load()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	recordConfigValidationEvent(context.Background(), os.Getenv("APP_ENV"), os.Getenv("STORAGE_DRIVER"), outcome, classifyConfigLoadError(err))
	return cfg, err
}

func load() (*Config, error) {
	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		BackendURL:               strings.TrimRight(strings.TrimSpace(os.Getenv("BACKEND_URL")), "/"),
		StorageDriver:            strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverFile)),
		StoragePath:              getEnv("STORAGE_PATH", defaultStoragePath()),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getEnvInt("REDIS_DB", 0),
		StorageKeyPrefix:         getEnv("STORAGE_KEY_PREFIX", "alumni_portal"),
		LogLevel:                 strings.ToLower(getEnv("LOG_LEVEL", "info")),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "alumni-portal-client"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", false),
		OTELHTTPEnabled:          getEnvBool("OTEL_HTTP_ENABLED", true),
	}

	var err error
	if cfg.HTTPTimeout, err = time.ParseDuration(getEnv("HTTP_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("parse HTTP_TIMEOUT: %w", err)
	}
	if cfg.RefreshTimeout, err = time.ParseDuration(getEnv("REFRESH_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("parse REFRESH_TIMEOUT: %w", err)
	}
	if cfg.OTELMetricsExportInterval, err = time.ParseDuration(getEnv("OTEL_METRICS_EXPORT_INTERVAL", "15s")); err != nil {
		return nil, fmt.Errorf("parse OTEL_METRICS_EXPORT_INTERVAL: %w", err)
	}
	if cfg.OTELTraceSamplingRatio, err = strconv.ParseFloat(getEnv("OTEL_TRACE_SAMPLING_RATIO", "1.0"), 64); err != nil {
		return nil, fmt.Errorf("parse OTEL_TRACE_SAMPLING_RATIO: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.BackendURL == "" {
		errs = append(errs, "BACKEND_URL is required")
	} else if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "BACKEND_URL must be an absolute http(s) URL")
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, "HTTP_TIMEOUT must be > 0")
	}
	if c.RefreshTimeout <= 0 {
		errs = append(errs, "REFRESH_TIMEOUT must be > 0")
	}
	switch c.StorageDriver {
	case StorageDriverFile:
		if strings.TrimSpace(c.StoragePath) == "" {
			errs = append(errs, "STORAGE_PATH is required for the file storage driver")
		}
	case StorageDriverMemory:
	case StorageDriverSQLite, StorageDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, "DATABASE_URL is required for sql storage drivers")
		}
	case StorageDriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, "REDIS_ADDR is required for the redis storage driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_DRIVER %q is not supported", c.StorageDriver))
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".alumni-portal", "storage.json")
	}
	return filepath.Join(home, ".alumni-portal", "storage.json")
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
