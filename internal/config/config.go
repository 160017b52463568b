package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds application configuration.
type Config struct {
	// ImageMaxBytes is the maximum size of a single attached image.
	ImageMaxBytes int64 `json:"image_max_bytes"`

	// ForegroundIntervalMS is the foreground reconciliation tick, in milliseconds.
	ForegroundIntervalMS int `json:"foreground_interval_ms"`

	// BackgroundCron is the 5-field cron spec for the background reconciliation
	// task. Platform background budgets make anything tighter than 15 minutes
	// pointless.
	BackgroundCron string `json:"background_cron"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ImageMaxBytes:        10 * 1024 * 1024,
		ForegroundIntervalMS: 1000,
		BackgroundCron:       "*/15 * * * *",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of the app data dir.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs. Overlay values take precedence for
// non-zero scalars.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.ImageMaxBytes = overlay.ImageMaxBytes
	if result.ImageMaxBytes == 0 {
		result.ImageMaxBytes = base.ImageMaxBytes
	}

	result.ForegroundIntervalMS = overlay.ForegroundIntervalMS
	if result.ForegroundIntervalMS == 0 {
		result.ForegroundIntervalMS = base.ForegroundIntervalMS
	}

	result.BackgroundCron = overlay.BackgroundCron
	if result.BackgroundCron == "" {
		result.BackgroundCron = base.BackgroundCron
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	return result
}
