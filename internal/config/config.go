package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Relay channel backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// Relay channel
	RelayBackend string
	RelayGroup   string
	RedisURL     string

	// Durable store (optional; relay runs without it)
	DatabaseURL string

	// Upstream broker (ingest runs only when enabled)
	IngestEnabled bool
	StompHost     string
	StompPort     int
	StompUser     string
	StompPassword string
	StompTopic    string

	// SSE endpoint
	APIToken          string
	QueueSize         int
	HeartbeatInterval time.Duration
	MaxClients        int64
	ConnectionsPerSec float64
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		RelayBackend:  getEnv("RELAY_BACKEND", ""),
		RelayGroup:    getEnv("RELAY_GROUP", "workflow_events"),
		RedisURL:      getEnv("REDIS_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		StompHost:     getEnv("STOMP_HOST", "localhost"),
		StompUser:     getEnv("STOMP_USER", "admin"),
		StompPassword: getEnv("STOMP_PASSWORD", "admin"),
		StompTopic:    getEnv("STOMP_TOPIC", "epictopic"),
		APIToken:      getEnv("API_TOKEN", ""),
	}

	var err error
	if cfg.IngestEnabled, err = getBool("INGEST_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.StompPort, err = getInt("STOMP_PORT", 61613); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = getInt("SSE_QUEUE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.MaxClients, err = getInt64("MAX_SSE_CLIENTS", 500); err != nil {
		return nil, err
	}
	if cfg.ConnectionsPerSec, err = getFloat("MAX_CONNECTIONS_PER_SECOND", 10); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval, err = getDuration("SSE_HEARTBEAT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}

	// Default backend: redis whenever a Redis URL is configured.
	if cfg.RelayBackend == "" {
		if cfg.RedisURL != "" {
			cfg.RelayBackend = BackendRedis
		} else {
			cfg.RelayBackend = BackendMemory
		}
	}

	switch cfg.RelayBackend {
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when RELAY_BACKEND is %q", BackendRedis)
		}
	case BackendMemory:
		// The memory backend cannot fan out across processes. Clients on
		// other processes would silently never receive events, so refuse
		// the configuration outright in production.
		if cfg.AppEnv == "production" {
			return nil, fmt.Errorf("RELAY_BACKEND %q cannot fan events out to other server processes; set REDIS_URL and use %q in production", BackendMemory, BackendRedis)
		}
	default:
		return nil, fmt.Errorf("unknown RELAY_BACKEND %q (expected %q or %q)", cfg.RelayBackend, BackendRedis, BackendMemory)
	}

	if cfg.QueueSize < 1 {
		return nil, fmt.Errorf("SSE_QUEUE_SIZE must be at least 1, got %d", cfg.QueueSize)
	}
	if cfg.HeartbeatInterval < time.Second {
		return nil, fmt.Errorf("SSE_HEARTBEAT_INTERVAL must be at least 1s, got %s", cfg.HeartbeatInterval)
	}
	if cfg.IngestEnabled && cfg.StompHost == "" {
		return nil, fmt.Errorf("STOMP_HOST is required when INGEST_ENABLED is set")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 30s): %w", key, err)
	}
	return v, nil
}

// StompAddr returns the broker address in host:port form.
func (c *Config) StompAddr() string {
	return fmt.Sprintf("%s:%d", c.StompHost, c.StompPort)
}
