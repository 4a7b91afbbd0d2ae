// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	DevMode  bool
	LogLevel string

	// Payment provider settings
	ProviderSender string // Sender address of payment notification mails (Gmail query filter)

	// Savings goal shown alongside aggregates (monthly target)
	SavingsGoal decimal.Decimal

	// Cache TTLs
	DayCacheTTL  time.Duration // TTL for a single day's aggregate
	YearCacheTTL time.Duration // TTL for a year's monthly breakdown

	// Session idle timeout
	SessionIdleTimeout time.Duration

	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup storage configuration.
// Backups are disabled when Bucket is empty.
type BackupConfig struct {
	Bucket        string
	Endpoint      string // Custom endpoint for S3-compatible stores (empty = AWS)
	Region        string
	AccessKeyID   string
	SecretKey     string
	RetentionDays int
}

// Enabled reports whether backups are configured.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TIPFOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	goal, err := decimal.NewFromString(getEnv("SAVINGS_GOAL", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid SAVINGS_GOAL: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("PORT", 8080),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ProviderSender:     getEnv("PAYMENT_SENDER", ""),
		SavingsGoal:        goal,
		DayCacheTTL:        getEnvAsDuration("DAY_CACHE_TTL", 5*time.Minute),
		YearCacheTTL:       getEnvAsDuration("YEAR_CACHE_TTL", 24*time.Hour),
		SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 5*time.Minute),
		Backup:             loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.ProviderSender == "" {
		return fmt.Errorf("PAYMENT_SENDER is required (sender address of payment notification mails)")
	}
	if c.SavingsGoal.IsNegative() {
		return fmt.Errorf("SAVINGS_GOAL must not be negative")
	}
	return nil
}

// loadBackupConfig loads S3 backup configuration from the environment.
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:        getEnv("BACKUP_S3_BUCKET", ""),
		Endpoint:      getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:        getEnv("BACKUP_S3_REGION", "auto"),
		AccessKeyID:   getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretKey:     getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
	}
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
