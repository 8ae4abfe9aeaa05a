package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	Env            string
	AllowedOrigins []string

	// Database configuration. Empty URL selects the in-memory store.
	DatabaseURL string

	// Redis configuration. Empty URL disables the report cache.
	RedisURL       string
	RedisPassword  string
	ReportCacheTTL time.Duration

	// JWT configuration. Empty secret disables bearer authentication.
	JWTSecret string

	// Chart of accounts seed file (YAML)
	ChartSeedPath string

	// Ledger configuration
	PostingLockTimeout time.Duration
	MaxAccountDepth    int

	// Consolidation configuration
	AlertWarningThreshold  decimal.Decimal
	AlertCriticalThreshold decimal.Decimal
	ConsolidationTopN      int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    getEnv("ENV", "development"),
		AllowedOrigins:         getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		ReportCacheTTL:         getEnvAsDuration("REPORT_CACHE_TTL", 10*time.Minute),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		ChartSeedPath:          getEnv("CHART_SEED_PATH", ""),
		PostingLockTimeout:     getEnvAsDuration("POSTING_LOCK_TIMEOUT", 5*time.Second),
		MaxAccountDepth:        getEnvAsInt("MAX_ACCOUNT_DEPTH", 10),
		AlertWarningThreshold:  getEnvAsDecimal("ALERT_WARNING_THRESHOLD", decimal.NewFromInt(75)),
		AlertCriticalThreshold: getEnvAsDecimal("ALERT_CRITICAL_THRESHOLD", decimal.NewFromInt(90)),
		ConsolidationTopN:      getEnvAsInt("CONSOLIDATION_TOP_N", 5),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures configuration values are usable
func (c *Config) Validate() error {
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.IsProduction() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	}

	if c.PostingLockTimeout <= 0 {
		return fmt.Errorf("POSTING_LOCK_TIMEOUT must be positive")
	}

	if c.MaxAccountDepth < 1 {
		return fmt.Errorf("MAX_ACCOUNT_DEPTH must be at least 1")
	}

	if c.AlertWarningThreshold.IsNegative() {
		return fmt.Errorf("ALERT_WARNING_THRESHOLD cannot be negative")
	}

	if !c.AlertWarningThreshold.LessThan(c.AlertCriticalThreshold) {
		return fmt.Errorf("ALERT_WARNING_THRESHOLD must be below ALERT_CRITICAL_THRESHOLD")
	}

	if c.ConsolidationTopN < 1 {
		return fmt.Errorf("CONSOLIDATION_TOP_N must be at least 1")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesPostgres reports whether a database URL was configured
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a time.Duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsDecimal gets an environment variable as a decimal with a default value
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
