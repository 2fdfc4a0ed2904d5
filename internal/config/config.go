// Package config loads the adapter's configuration from environment
// variables (§6.3). There is no file-based configuration surface for this
// service; every setting has a safe default and can be overridden by an
// env var, in the same read-with-fallback style as the teacher's
// ApplyEnvOverrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable named in §6.3.
type Config struct {
	ListenAddr string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	DataRetentionDays int

	TagsetCacheUpdateInterval time.Duration
	TagsetCacheUpdateTimeout  time.Duration
	HousekeepingInterval      time.Duration
	HousekeepingTimeout       time.Duration

	InsertMetricCacheSize int
	InsertTagsetCacheSize int

	LogLevel  string
	LogFormat string

	// SchemaVersion is checked against the adapter's expected DDL contract
	// (§6.1) at startup; see internal/schema.
	SchemaVersion string
}

// CacheEntryTTL is DataRetentionPeriod/2, the invariant from §3 that keeps
// a cached identifier from ever outliving the row it names.
func (c *Config) CacheEntryTTL() time.Duration {
	return c.DataRetentionPeriod() / 2
}

// DataRetentionPeriod converts DataRetentionDays to a duration.
func (c *Config) DataRetentionPeriod() time.Duration {
	return time.Duration(c.DataRetentionDays) * 24 * time.Hour
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":4242"),

		DBHost:     getEnv("TIMESCALE_HOST", "localhost"),
		DBUser:     getEnv("TIMESCALE_USER", "postgres"),
		DBPassword: getEnv("TIMESCALE_PASSWORD", ""),
		DBName:     getEnv("TIMESCALE_DBNAME", "tsdb"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		SchemaVersion: getEnv("SCHEMA_VERSION", "1.0.0"),
	}

	var err error
	if cfg.DBPort, err = getEnvInt("TIMESCALE_PORT", 5432); err != nil {
		return nil, fmt.Errorf("TIMESCALE_PORT: %w", err)
	}
	if cfg.DataRetentionDays, err = getEnvInt("DATA_RETENTION_DAYS", 30); err != nil {
		return nil, fmt.Errorf("DATA_RETENTION_DAYS: %w", err)
	}
	if cfg.TagsetCacheUpdateInterval, err = getEnvSeconds("TAGSET_CACHE_UPDATE_INTERVAL_SECONDS", 30); err != nil {
		return nil, fmt.Errorf("TAGSET_CACHE_UPDATE_INTERVAL_SECONDS: %w", err)
	}
	if cfg.TagsetCacheUpdateTimeout, err = getEnvSeconds("TAGSET_CACHE_UPDATE_TIMEOUT_SECONDS", 20); err != nil {
		return nil, fmt.Errorf("TAGSET_CACHE_UPDATE_TIMEOUT_SECONDS: %w", err)
	}
	if cfg.HousekeepingInterval, err = getEnvSeconds("HOUSEKEEPING_INTERVAL_SECONDS", 3600); err != nil {
		return nil, fmt.Errorf("HOUSEKEEPING_INTERVAL_SECONDS: %w", err)
	}
	if cfg.HousekeepingTimeout, err = getEnvSeconds("HOUSEKEEPING_TIMEOUT_SECONDS", 600); err != nil {
		return nil, fmt.Errorf("HOUSEKEEPING_TIMEOUT_SECONDS: %w", err)
	}
	if cfg.InsertMetricCacheSize, err = getEnvInt("INSERT_METRIC_CACHE_SIZE", 65536); err != nil {
		return nil, fmt.Errorf("INSERT_METRIC_CACHE_SIZE: %w", err)
	}
	if cfg.InsertTagsetCacheSize, err = getEnvInt("INSERT_TAGSET_CACHE_SIZE", 2097152); err != nil {
		return nil, fmt.Errorf("INSERT_TAGSET_CACHE_SIZE: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would violate the cache/retention
// invariant in §3 (CacheEntryTtl < DataRetentionPeriod/2 is definitional
// here, but a retention of zero makes everything stale immediately, which
// is never what an operator wants).
func (c *Config) Validate() error {
	if c.DataRetentionDays <= 0 {
		return fmt.Errorf("DATA_RETENTION_DAYS must be positive, got %d", c.DataRetentionDays)
	}
	if c.TagsetCacheUpdateInterval <= 0 {
		return fmt.Errorf("TAGSET_CACHE_UPDATE_INTERVAL_SECONDS must be positive")
	}
	if c.HousekeepingInterval <= 0 {
		return fmt.Errorf("HOUSEKEEPING_INTERVAL_SECONDS must be positive")
	}
	return nil
}

// DSN builds a lib/pq connection string from the loaded settings.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func getEnvSeconds(key string, defSeconds int) (time.Duration, error) {
	n, err := getEnvInt(key, defSeconds)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}
