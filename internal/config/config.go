package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// ConfigFileEnv names the optional TOML file read before the environment.
const ConfigFileEnv = "WEDDINGSYNC_CONFIG"

type Config struct {
	ServerPort    string        `toml:"server_port"`
	StoreBackend  string        `toml:"store_backend"`
	MongoURI      string        `toml:"mongo_uri"`
	MongoDatabase string        `toml:"mongo_database"`
	DatabaseURL   string        `toml:"database_url"`
	RedisURL      string        `toml:"redis_url"`
	JWTSecret     string        `toml:"jwt_secret"`
	JWTExpiry     time.Duration `toml:"jwt_expiry"`
	LogLevel      string        `toml:"log_level"`

	SweepInterval      time.Duration `toml:"sweep_interval"`
	ProcessedRetention time.Duration `toml:"processed_retention"`
	DrainMaxBatch      int           `toml:"drain_max_batch"`
	DrainMaxWait       time.Duration `toml:"drain_max_wait"`
}

func DefaultConfig() *Config {
	return &Config{
		ServerPort:         "8080",
		StoreBackend:       BackendMongo,
		MongoDatabase:      "weddingsync",
		JWTExpiry:          24 * time.Hour,
		LogLevel:           "info",
		SweepInterval:      time.Hour,
		ProcessedRetention: 7 * 24 * time.Hour,
		DrainMaxBatch:      500,
		DrainMaxWait:       30 * time.Second,
	}
}

// LoadConfig builds the configuration from defaults, the optional file named
// by WEDDINGSYNC_CONFIG and the environment, in that order.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGO_DATABASE", c.MongoDatabase)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	var err error
	if c.JWTExpiry, err = getDurationEnv("JWT_EXPIRY", c.JWTExpiry); err != nil {
		return err
	}
	if c.SweepInterval, err = getDurationEnv("SWEEP_INTERVAL", c.SweepInterval); err != nil {
		return err
	}
	if c.ProcessedRetention, err = getDurationEnv("PROCESSED_RETENTION", c.ProcessedRetention); err != nil {
		return err
	}
	if c.DrainMaxWait, err = getDurationEnv("DRAIN_MAX_WAIT", c.DrainMaxWait); err != nil {
		return err
	}
	if value := os.Getenv("DRAIN_MAX_BATCH"); value != "" {
		if c.DrainMaxBatch, err = strconv.Atoi(value); err != nil {
			return errors.New("invalid DRAIN_MAX_BATCH format")
		}
	}

	return nil
}

// Validate checks the fields required by the selected store backend.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo backend")
		}
		if c.MongoDatabase == "" {
			return errors.New("MONGO_DATABASE is required for the mongo backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: must be mongo, postgres or memory", c.StoreBackend)
	}

	if c.ServerPort == "" {
		return errors.New("SERVER_PORT is required")
	}
	if c.JWTExpiry <= 0 {
		return errors.New("JWT_EXPIRY must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	if c.ProcessedRetention <= 0 {
		return errors.New("PROCESSED_RETENTION must be positive")
	}
	if c.DrainMaxBatch < 0 {
		return errors.New("DRAIN_MAX_BATCH must not be negative")
	}
	if c.DrainMaxWait < 0 {
		return errors.New("DRAIN_MAX_WAIT must not be negative")
	}

	return nil
}

// AuthEnabled reports whether bearer tokens are required.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return d, nil
}
