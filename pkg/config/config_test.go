package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.LedgerMode)
	assert.False(t, cfg.SimEnabled)
	assert.Equal(t, 3*time.Second, cfg.SimInterval)
	assert.Equal(t, 1024, cfg.FeedBufferSize)
	assert.Equal(t, 5, cfg.BreakerFailureThreshold)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LEDGER_MODE", "postgres")
	t.Setenv("SIM_ENABLED", "true")
	t.Setenv("SIM_TRADE_CHANCE", "0.7")
	t.Setenv("SIM_BOT_BALANCE", "250000")
	t.Setenv("BREAKER_COOLDOWN", "90s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.LedgerMode)
	assert.True(t, cfg.SimEnabled)
	assert.Equal(t, 0.7, cfg.SimTradeChance)
	assert.Equal(t, int64(250_000), cfg.SimBotBalance)
	assert.Equal(t, 90*time.Second, cfg.BreakerCooldown)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.HTTPPort = "" }},
		{"bad ledger mode", func(c *Config) { c.LedgerMode = "redis" }},
		{"trade chance above one", func(c *Config) { c.SimTradeChance = 1.5 }},
		{"zero bots", func(c *Config) { c.SimBotCount = 0 }},
		{"max quantity below trade floor", func(c *Config) { c.SimMaxQuantity = 5 }},
		{"zero breaker threshold", func(c *Config) { c.BreakerFailureThreshold = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromEnv()
			require.NoError(t, err)

			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	dsn := cfg.PostgresDSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=mercatus")
	assert.Contains(t, dsn, "sslmode=disable")
}
