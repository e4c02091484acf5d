package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// minSimQuantity is the simulator's per-trade quantity floor; the maximum
// must not fall below it.
const minSimQuantity = 10

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Ledger
	LedgerMode   string // "memory" or "postgres"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// Simulation
	SimEnabled       bool
	SimInterval      time.Duration
	SimTradeChance   float64
	SimBotCount      int
	SimBotBalance    int64
	SimMaxQuantity   int64
	SimMeanReversion float64

	// Feed
	FeedBufferSize        int
	FeedClientBufferSize  int
	FeedHeartbeatInterval time.Duration

	// Catalog
	MarketListCacheTTL time.Duration

	// Engine
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Ledger defaults
		LedgerMode:   getEnvOrDefault("LEDGER_MODE", "memory"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "mercatus"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "mercatus123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "mercatus"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		// Simulation defaults
		SimEnabled:       getBoolOrDefault("SIM_ENABLED", false),
		SimInterval:      getDurationOrDefault("SIM_INTERVAL", 3*time.Second),
		SimTradeChance:   getFloat64OrDefault("SIM_TRADE_CHANCE", 0.3),
		SimBotCount:      getIntOrDefault("SIM_BOT_COUNT", 3),
		SimBotBalance:    getInt64OrDefault("SIM_BOT_BALANCE", 1_000_000),
		SimMaxQuantity:   getInt64OrDefault("SIM_MAX_QUANTITY", 60),
		SimMeanReversion: getFloat64OrDefault("SIM_MEAN_REVERSION", 0.05),

		// Feed defaults
		FeedBufferSize:        getIntOrDefault("FEED_BUFFER_SIZE", 1024),
		FeedClientBufferSize:  getIntOrDefault("FEED_CLIENT_BUFFER_SIZE", 64),
		FeedHeartbeatInterval: getDurationOrDefault("FEED_HEARTBEAT_INTERVAL", 15*time.Second),

		// Catalog defaults
		MarketListCacheTTL: getDurationOrDefault("MARKET_LIST_CACHE_TTL", 2*time.Second),

		// Engine defaults
		BreakerFailureThreshold: getIntOrDefault("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:         getDurationOrDefault("BREAKER_COOLDOWN", 30*time.Second),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.LedgerMode != "memory" && c.LedgerMode != "postgres" {
		return fmt.Errorf("LEDGER_MODE must be 'memory' or 'postgres', got %q", c.LedgerMode)
	}

	if c.SimTradeChance < 0 || c.SimTradeChance > 1 {
		return fmt.Errorf("SIM_TRADE_CHANCE must be between 0 and 1, got %f", c.SimTradeChance)
	}

	if c.SimBotCount < 1 {
		return fmt.Errorf("SIM_BOT_COUNT must be at least 1, got %d", c.SimBotCount)
	}

	if c.SimMaxQuantity < minSimQuantity {
		return fmt.Errorf("SIM_MAX_QUANTITY must be at least %d, got %d", minSimQuantity, c.SimMaxQuantity)
	}

	if c.BreakerFailureThreshold < 1 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be at least 1, got %d", c.BreakerFailureThreshold)
	}

	return nil
}

// PostgresDSN builds the lib/pq connection string from the postgres settings.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPass, c.PostgresDB, c.PostgresSSL,
	)
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
