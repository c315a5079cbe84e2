package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 把相关变量置空，避免宿主环境影响默认值
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SERVER_PORT", "APP_ENV", "LOG_LEVEL", "CORS_ALLOWED_ORIGIN", "ROOM_EVICTION_GRACE", "ROOM_AUTO_CREATE",
		"WS_MAX_MESSAGE_BYTES", "WS_SEND_BUFFER", "MIRROR_ENABLED", "MIRROR_QUEUE_SIZE", "PRESENCE_SWEEP_SCHEDULE",
		"WORKER_CONCURRENCY", "DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "REDIS_ADDR",
		"REDIS_PASSWORD", "REDIS_DB", "REDIS_KEY_PREFIX", "RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_DefaultsWithMirrorDisabled(t *testing.T) {
	// Arrange
	clearEnv(t)
	t.Setenv("MIRROR_ENABLED", "false")

	// Act
	cfg, err := LoadConfig()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigin)
	assert.Equal(t, 30*time.Second, cfg.RoomEvictionGrace)
	assert.False(t, cfg.RoomAutoCreate)
	assert.Equal(t, int64(524288), cfg.WSMaxMessageBytes)
	assert.Equal(t, 256, cfg.WSSendBuffer)
	assert.Equal(t, 1024, cfg.MirrorQueueSize)
	assert.Equal(t, "@every 5m", cfg.PresenceSweepSchedule)
	assert.Equal(t, "wb:", cfg.KeyPrefix)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, time.Second, cfg.RateLimitWindow)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROOM_EVICTION_GRACE", "2m")
	t.Setenv("ROOM_AUTO_CREATE", "true")
	t.Setenv("CORS_ALLOWED_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("DB_USER", "relay")
	t.Setenv("LOG_LEVEL", "verbose")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.True(t, cfg.MirrorEnabled)
	assert.Equal(t, 2*time.Minute, cfg.RoomEvictionGrace)
	assert.True(t, cfg.RoomAutoCreate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigin)
	assert.Equal(t, "info", cfg.LogLevel, "invalid level falls back to info")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"mirror without redis", map[string]string{"DB_USER": "relay"}},
		{"mirror without db user", map[string]string{"REDIS_ADDR": "redis:6379"}},
		{"non-positive grace", map[string]string{"MIRROR_ENABLED": "false", "ROOM_EVICTION_GRACE": "0s"}},
		{"unparsable grace", map[string]string{"MIRROR_ENABLED": "false", "ROOM_EVICTION_GRACE": "soon"}},
		{"unparsable bool", map[string]string{"MIRROR_ENABLED": "maybe"}},
		{"unparsable int", map[string]string{"MIRROR_ENABLED": "false", "WS_SEND_BUFFER": "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
