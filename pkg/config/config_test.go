package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synaptiq-labs/neurofabric/pkg/config"
)

// Invariant: the fabric must boot with safe defaults in dev mode.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("OTLP_ENDPOINT", "")
	t.Setenv("POOL_SIZE", "")
	t.Setenv("CHANNEL_CAPACITY", "")
	t.Setenv("FABRIC_PROFILE", "")
	t.Setenv("FABRIC_PROFILE_DIR", "")
	t.Setenv("TRAIL_SINK", "")
	t.Setenv("PENDING_STORE", "")

	cfg := config.Load()

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Contains(t, cfg.DatabaseURL, "localhost")
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 8, cfg.PoolSize)
	assert.Equal(t, 100, cfg.ChannelCapacity)
	assert.Empty(t, cfg.Profile)
	assert.Equal(t, "profiles", cfg.ProfileDir)
	assert.Empty(t, cfg.TrailSink)
	assert.Equal(t, "memory", cfg.PendingStore)
}

// Invariant: ops control config via standard 12-factor env vars.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DATABASE_URL", "postgres://production:5432/db")
	t.Setenv("POOL_SIZE", "32")
	t.Setenv("CHANNEL_CAPACITY", "250")
	t.Setenv("FABRIC_PROFILE", "prod")
	t.Setenv("FABRIC_PROFILE_DIR", "/etc/fabric")
	t.Setenv("TRAIL_SINK", "sqlite")
	t.Setenv("PENDING_STORE", "redis")

	cfg := config.Load()

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "postgres://production:5432/db", cfg.DatabaseURL)
	assert.Equal(t, 32, cfg.PoolSize)
	assert.Equal(t, 250, cfg.ChannelCapacity)
	assert.Equal(t, "prod", cfg.Profile)
	assert.Equal(t, "/etc/fabric", cfg.ProfileDir)
	assert.Equal(t, "sqlite", cfg.TrailSink)
	assert.Equal(t, "redis", cfg.PendingStore)
}

func TestLoad_RejectsInvalidInts(t *testing.T) {
	t.Setenv("POOL_SIZE", "not-a-number")
	t.Setenv("CHANNEL_CAPACITY", "-5")

	cfg := config.Load()

	assert.Equal(t, 8, cfg.PoolSize)
	assert.Equal(t, 100, cfg.ChannelCapacity)
}
