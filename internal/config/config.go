// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/PatrikGFX/portfolio-tracker/internal/reliability"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for the snapshot database (always absolute)
	Port            int
	LogLevel        string
	DevMode         bool
	TickInterval    time.Duration // simulated price tick cadence
	RefreshInterval time.Duration // real-quote refresh cadence
	HistoryDays     int           // length of generated demo/fallback histories
	YahooBaseURL    string        // override for tests; empty = production endpoint
	Backup          reliability.BackupConfig
	BackupInterval  time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRACKER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("PORT", 8090),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		TickInterval:    getEnvAsDuration("TICK_INTERVAL", 5*time.Second),
		RefreshInterval: getEnvAsDuration("REFRESH_INTERVAL", 5*time.Minute),
		HistoryDays:     getEnvAsInt("HISTORY_DAYS", 90),
		YahooBaseURL:    getEnv("YAHOO_BASE_URL", ""),
		Backup: reliability.BackupConfig{
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("BACKUP_S3_PREFIX", "portfolio-backup-"),
			Keep:            getEnvAsInt("BACKUP_KEEP", 10),
		},
		BackupInterval: getEnvAsDuration("BACKUP_INTERVAL", 6*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
