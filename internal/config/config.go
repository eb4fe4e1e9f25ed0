package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Azure      AzureConfig
	Cleanup    CleanupConfig
	Replicator ReplicatorConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
}

// AzureConfig contains subscription and default scope configuration
type AzureConfig struct {
	SubscriptionID string
	ResourceGroup  string
	Region         string
}

// CleanupConfig contains orphan detection and cleanup configuration
type CleanupConfig struct {
	// ScanSchedule is a cron spec for the background orphan scanner
	ScanSchedule string
	DryRun       bool
}

// ReplicatorConfig contains batch provisioning limits
type ReplicatorConfig struct {
	Workers       int
	RatePerSecond float64
	Burst         int
}

// MetricsConfig contains the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Azure: AzureConfig{
			SubscriptionID: getEnv("FLEETGATE_SUBSCRIPTION_ID", ""),
			ResourceGroup:  getEnv("FLEETGATE_RESOURCE_GROUP", ""),
			Region:         getEnv("FLEETGATE_REGION", ""),
		},
		Cleanup: CleanupConfig{
			ScanSchedule: getEnv("FLEETGATE_SCAN_SCHEDULE", "@hourly"),
			DryRun:       getEnvAsBool("FLEETGATE_DRY_RUN", false),
		},
		Replicator: ReplicatorConfig{
			Workers:       getEnvAsInt("FLEETGATE_REPLICATOR_WORKERS", 4),
			RatePerSecond: getEnvAsFloat("FLEETGATE_REPLICATOR_RATE", 2),
			Burst:         getEnvAsInt("FLEETGATE_REPLICATOR_BURST", 4),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("FLEETGATE_METRICS_ENABLED", false),
			Addr:    getEnv("FLEETGATE_METRICS_ADDR", ":9090"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("FLEETGATE_LOG_LEVEL", "info"),
			Format: getEnv("FLEETGATE_LOG_FORMAT", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Replicator.Workers < 1 {
		return fmt.Errorf("replicator workers must be positive, got %d", c.Replicator.Workers)
	}
	if c.Replicator.RatePerSecond <= 0 {
		return fmt.Errorf("replicator rate must be positive, got %f", c.Replicator.RatePerSecond)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("unsupported log format: %s", c.Logging.Format)
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
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
