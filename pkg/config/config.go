package config

import (
	"os"
	"strconv"
)

// Config holds fabric process configuration.
type Config struct {
	LogLevel        string
	DatabaseURL     string
	RedisAddr       string
	OTLPEndpoint    string
	PoolSize        int
	ChannelCapacity int
	RootKey         string
	Profile         string // profile code, empty means built-in defaults
	ProfileDir      string
	TrailSink       string // "", "sqlite" or "postgres"
	PendingStore    string // "memory" or "redis"
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		// Default to local generic postgres
		dbURL = "postgres://fabric@localhost:5432/fabric?sslmode=disable"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	otlpEndpoint := os.Getenv("OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	poolSize := intEnv("POOL_SIZE", 8)
	capacity := intEnv("CHANNEL_CAPACITY", 100)

	profileDir := os.Getenv("FABRIC_PROFILE_DIR")
	if profileDir == "" {
		profileDir = "profiles"
	}

	pending := os.Getenv("PENDING_STORE")
	if pending == "" {
		pending = "memory"
	}

	return &Config{
		LogLevel:        logLevel,
		DatabaseURL:     dbURL,
		RedisAddr:       redisAddr,
		OTLPEndpoint:    otlpEndpoint,
		PoolSize:        poolSize,
		ChannelCapacity: capacity,
		RootKey:         os.Getenv("FABRIC_ROOT_KEY"),
		Profile:         os.Getenv("FABRIC_PROFILE"),
		ProfileDir:      profileDir,
		TrailSink:       os.Getenv("TRAIL_SINK"),
		PendingStore:    pending,
	}
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
