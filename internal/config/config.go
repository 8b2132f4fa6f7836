// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and backup staging (always absolute)
	Port     int
	DevMode  bool
	LogLevel string

	// RegionalDiscountPct is the market-reality deduction applied in
	// depressed regional markets. Empirically tuned (5%, reduced from an
	// earlier 17.5%); kept configurable rather than hard-coded.
	RegionalDiscountPct float64

	Provider *ProviderConfig
	Backup   *BackupConfig
}

// ProviderConfig holds the external knowledge/search provider settings.
type ProviderConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int // Caps completion length per request

	// DiscoveryTimeout caps the price-discovery call; EnrichmentTimeout
	// caps the shorter market-signals call. Enforced independently.
	DiscoveryTimeout  time.Duration
	EnrichmentTimeout time.Duration
}

// BackupConfig holds S3-compatible database backup settings.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // S3-compatible endpoint URL (empty for AWS S3)
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	MaxKeep         int    // Number of backup archives to retain remotely
	Schedule        string // Cron spec for the periodic backup job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("APPRAISER_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("PORT", 8080),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		RegionalDiscountPct: getEnvAsFloat("REGIONAL_DISCOUNT_PCT", 0.05),
		Provider: &ProviderConfig{
			BaseURL:           getEnv("KNOWLEDGE_API_URL", "https://api.perplexity.ai"),
			APIKey:            getEnv("KNOWLEDGE_API_KEY", ""),
			Model:             getEnv("KNOWLEDGE_MODEL", "sonar"),
			MaxTokens:         getEnvAsInt("KNOWLEDGE_MAX_TOKENS", 1024),
			DiscoveryTimeout:  time.Duration(getEnvAsInt("DISCOVERY_TIMEOUT_SECONDS", 50)) * time.Second,
			EnrichmentTimeout: time.Duration(getEnvAsInt("ENRICHMENT_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Backup: &BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			MaxKeep:         getEnvAsInt("BACKUP_MAX_KEEP", 14),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"), // daily at 03:00
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.RegionalDiscountPct < 0 || c.RegionalDiscountPct >= 1 {
		return fmt.Errorf("regional discount must be in [0,1): %f", c.RegionalDiscountPct)
	}
	if c.Provider.MaxTokens <= 0 {
		return fmt.Errorf("provider max tokens must be positive: %d", c.Provider.MaxTokens)
	}

	// Note: the provider API key is optional; without it the pipeline runs
	// on the deterministic fallback estimator alone.

	if c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("backup enabled but BACKUP_S3_BUCKET is empty")
		}
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			return fmt.Errorf("backup enabled but S3 credentials are missing")
		}
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
