package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"CONFIG_FILE", "PORT", "JWT_SECRET", "KAFKA_BROKERS", "KAFKA_ENABLED", "EVENTS_DEFAULT_PAGE_LIMIT", "EVENTS_MAX_PAGE_LIMIT", "EVENTS_UPDATE_RETRIES"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 20, cfg.Events.DefaultPageLimit)
	assert.Equal(t, 100, cfg.Events.MaxPageLimit)
	assert.Equal(t, 3, cfg.Events.UpdateRetries)
	assert.Equal(t, "events.attendance.joined", cfg.Kafka.Topics.AttendanceJoined)
	assert.Len(t, cfg.Kafka.Topics.All(), 4)
	assert.Error(t, cfg.ValidateServer())
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: ":9000"
  read_timeout: 30s
kafka:
  enabled: false
  brokers: ["k1:9092", "k2:9092"]
auth:
  jwt_secret: from-file
  access_ttl: 10m
events:
  max_page_limit: 50
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", ":9100")
	t.Setenv("KAFKA_BROKERS", "a:1, b:2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 10*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 50, cfg.Events.MaxPageLimit)
	assert.NoError(t, cfg.ValidateServer())
}

func TestLoadRejectsInconsistentLimits(t *testing.T) {
	clearEnv(t)
	t.Setenv("EVENTS_DEFAULT_PAGE_LIMIT", "50")
	t.Setenv("EVENTS_MAX_PAGE_LIMIT", "10")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.True(t, getEnvBool("X_BOOL", true))
	assert.Equal(t, time.Second, getEnvDuration("X_DUR", time.Second))
}
