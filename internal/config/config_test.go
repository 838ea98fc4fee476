package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	ConfigFileEnv,
	"SERVER_PORT", "STORE_BACKEND", "MONGO_URI", "MONGO_DATABASE", "DATABASE_URL",
	"REDIS_URL", "JWT_SECRET", "JWT_EXPIRY", "LOG_LEVEL", "SWEEP_INTERVAL",
	"PROCESSED_RETENTION", "DRAIN_MAX_BATCH", "DRAIN_MAX_WAIT",
}

// clearEnv blanks every variable LoadConfig reads; empty values fall back to defaults.
func clearEnv(t *testing.T) {
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults with mongo uri", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MONGO_URI", "mongodb://localhost:27017")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.ServerPort)
		assert.Equal(t, BackendMongo, cfg.StoreBackend)
		assert.Equal(t, "weddingsync", cfg.MongoDatabase)
		assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
		assert.Equal(t, 500, cfg.DrainMaxBatch)
		assert.Equal(t, 30*time.Second, cfg.DrainMaxWait)
		assert.False(t, cfg.AuthEnabled())
	})

	t.Run("mongo backend requires a uri", func(t *testing.T) {
		clearEnv(t)

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "MONGO_URI is required")
	})

	t.Run("postgres backend requires a database url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "postgres")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "DATABASE_URL is required")

		t.Setenv("DATABASE_URL", "postgres://localhost/weddingsync")
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	})

	t.Run("unknown backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "cassandra")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "invalid STORE_BACKEND")
	})

	t.Run("environment overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("JWT_EXPIRY", "2h")
		t.Setenv("DRAIN_MAX_BATCH", "25")
		t.Setenv("DRAIN_MAX_WAIT", "10s")
		t.Setenv("PROCESSED_RETENTION", "48h")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.ServerPort)
		assert.True(t, cfg.AuthEnabled())
		assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
		assert.Equal(t, 25, cfg.DrainMaxBatch)
		assert.Equal(t, 10*time.Second, cfg.DrainMaxWait)
		assert.Equal(t, 48*time.Hour, cfg.ProcessedRetention)
	})

	t.Run("malformed values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("JWT_EXPIRY", "tomorrow")

		_, err := LoadConfig()
		assert.EqualError(t, err, "invalid JWT_EXPIRY format")

		t.Setenv("JWT_EXPIRY", "")
		t.Setenv("DRAIN_MAX_BATCH", "lots")
		_, err = LoadConfig()
		assert.EqualError(t, err, "invalid DRAIN_MAX_BATCH format")
	})
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "weddingsync.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_backend = "postgres"
database_url = "postgres://file/weddingsync"
server_port = "7070"
sweep_interval = "15m"
drain_max_batch = 50
`), 0o600))
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("SERVER_PORT", "6060")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, "postgres://file/weddingsync", cfg.DatabaseURL)
	assert.Equal(t, "6060", cfg.ServerPort, "environment wins over the file")
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 50, cfg.DrainMaxBatch)

	t.Run("unknown keys are rejected", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(bad, []byte(`store_backed = "memory"`), 0o600))
		t.Setenv(ConfigFileEnv, bad)

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "unknown config key")
	})
}
