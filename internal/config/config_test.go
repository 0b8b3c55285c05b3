package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 300*time.Second, cfg.PriceUpdateInterval)
	assert.Equal(t, 30*time.Minute, cfg.InventorySyncInterval)
	assert.Equal(t, 20, cfg.MaxConcurrentFetches)
	assert.Len(t, cfg.EncryptionKey, 32)
}

func TestLoadProductionPollInterval(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 600*time.Second, cfg.PriceUpdateInterval)
}

func TestLoadExplicitIntervalWins(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PRICE_UPDATE_INTERVAL", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.PriceUpdateInterval)
}

func TestSteamAPIKeysParsing(t *testing.T) {
	t.Setenv("STEAM_API_KEYS", " key1, key2 ,,key3 ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"key1", "key2", "key3"}, cfg.SteamAPIKeys)
}
