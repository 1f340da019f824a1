package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	KVBackendURL         string
	KVCacheSize          int
	PlanTimezone         string
	ServerPort           string
	FrontendURL          string
	EnableHSTS           bool
	RedisURL             string
	RateLimit            string
	RabbitMQURL          string
	RabbitMQPrefetch     int
	ConfigReloadInterval time.Duration
	RequestTimeout       time.Duration
	OpenAPIPath          string
	ServerDebugMode      bool
	OTELEnabled          bool
	OTELEndpoint         string
	OTELSampleRatio      float64
}

// Load reads an optional .env file (ENV_FILE overrides the path) and then
// loads configuration from environment variables. Variables already set in the
// environment win over the file.
func Load() (*Config, error) {
	envFile := getEnv(os.Getenv, "ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return LoadFrom(os.Getenv)
}

// LoadFrom builds the configuration from a variable lookup function
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		KVBackendURL:         getEnv(getenv, "KV_BACKEND_URL", "sqlite://./plans.db"),
		KVCacheSize:          getEnvInt(getenv, "KV_CACHE_SIZE", 1024),
		PlanTimezone:         getEnv(getenv, "PLAN_TIMEZONE", "Asia/Seoul"),
		ServerPort:           getEnv(getenv, "SERVER_PORT", "8080"),
		FrontendURL:          getEnv(getenv, "FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:           getEnvBool(getenv, "ENABLE_HSTS", false),
		RedisURL:             getEnv(getenv, "REDIS_URL", ""),
		RateLimit:            getEnv(getenv, "RATE_LIMIT", "20-S"),
		RabbitMQURL:          getEnv(getenv, "RABBITMQ_URL", ""),
		RabbitMQPrefetch:     getEnvInt(getenv, "RABBITMQ_PREFETCH", 16),
		ConfigReloadInterval: getEnvDuration(getenv, "CONFIG_RELOAD_INTERVAL", 30*time.Second),
		RequestTimeout:       getEnvDuration(getenv, "REQUEST_TIMEOUT", 30*time.Second),
		OpenAPIPath:          getEnv(getenv, "OPENAPI_PATH", "api/openapi/openapi.yaml"),
		ServerDebugMode:      getEnvBool(getenv, "SERVER_DEBUG_MODE", false),
		OTELEnabled:          getEnvBool(getenv, "OTEL_ENABLED", false),
		OTELEndpoint:         getEnv(getenv, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRatio:      getEnvFloat(getenv, "OTEL_SAMPLE_RATIO", 1),
	}

	if !strings.Contains(cfg.KVBackendURL, "://") {
		return nil, fmt.Errorf("KV_BACKEND_URL must be a URL such as sqlite://./plans.db, got %q", cfg.KVBackendURL)
	}
	if cfg.KVCacheSize < 0 {
		return nil, fmt.Errorf("KV_CACHE_SIZE must not be negative")
	}
	if cfg.RabbitMQPrefetch < 1 {
		return nil, fmt.Errorf("RABBITMQ_PREFETCH must be at least 1")
	}
	if cfg.OTELEnabled && cfg.OTELEndpoint == "" {
		return nil, fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is set")
	}
	if cfg.OTELSampleRatio <= 0 || cfg.OTELSampleRatio > 1 {
		return nil, fmt.Errorf("OTEL_SAMPLE_RATIO must be in (0, 1]")
	}

	return cfg, nil
}

func getEnv(getenv func(string) string, key, defaultValue string) string {
	if value := strings.TrimSpace(getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(getenv func(string) string, key string, defaultValue bool) bool {
	if value := getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(getenv func(string) string, key string, defaultValue int) int {
	if value := getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(getenv func(string) string, key string, defaultValue float64) float64 {
	if value := getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
