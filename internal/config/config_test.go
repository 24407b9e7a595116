package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.RelayBackend)
	assert.Equal(t, "workflow_events", cfg.RelayGroup)
	assert.Equal(t, "epictopic", cfg.StompTopic)
	assert.Equal(t, 100, cfg.QueueSize)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.False(t, cfg.IngestEnabled)
}

func TestLoad_RedisBackendByDefaultWhenURLSet(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.RelayBackend)
}

func TestLoad_RedisBackendRequiresURL(t *testing.T) {
	t.Setenv("RELAY_BACKEND", BackendRedis)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_MemoryBackendRefusedInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("RELAY_BACKEND", BackendMemory)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fan events out")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad backend", "RELAY_BACKEND", "rabbitmq"},
		{"bad queue size", "SSE_QUEUE_SIZE", "zero"},
		{"queue size below one", "SSE_QUEUE_SIZE", "0"},
		{"bad heartbeat", "SSE_HEARTBEAT_INTERVAL", "soon"},
		{"heartbeat too short", "SSE_HEARTBEAT_INTERVAL", "10ms"},
		{"bad ingest flag", "INGEST_ENABLED", "maybe"},
		{"bad stomp port", "STOMP_PORT", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestStompAddr(t *testing.T) {
	cfg := &Config{StompHost: "mq.example.org", StompPort: 61613}
	assert.Equal(t, "mq.example.org:61613", cfg.StompAddr())
}
