package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "test-session-secret")
	t.Setenv("ADMIN_TOKEN", "test-admin-token-0123456789")
}

func TestLoad_AllRequiredVarsSet(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-session-secret", cfg.SessionSecret)
	assert.Equal(t, "test-admin-token-0123456789", cfg.AdminToken)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		skipEnv string
		wantErr string
	}{
		{"missing SESSION_SECRET", "SESSION_SECRET", "SESSION_SECRET is required"},
		{"missing ADMIN_TOKEN", "ADMIN_TOKEN", "ADMIN_TOKEN is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skipEnv, "")

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_ShortAdminToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_TOKEN", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 16 characters")
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 100, cfg.SyncQueueCapacity)
	assert.Equal(t, 1000, cfg.SyncMaxClients)
	assert.Equal(t, 5*time.Minute, cfg.SyncIdleTimeout)
	assert.Equal(t, 60*time.Second, cfg.SyncCleanupInterval)
	assert.Equal(t, 168*time.Hour, cfg.SessionMaxAge)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_CustomSyncSettings(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNC_QUEUE_CAPACITY", "250")
	t.Setenv("SYNC_IDLE_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.SyncQueueCapacity)
	assert.Equal(t, 90*time.Second, cfg.SyncIdleTimeout)
}

func TestLoad_InvalidSyncSettings(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"zero queue capacity", "SYNC_QUEUE_CAPACITY", "0", "SYNC_QUEUE_CAPACITY must be positive"},
		{"zero max clients", "SYNC_MAX_CLIENTS", "0", "SYNC_MAX_CLIENTS must be positive"},
		{"zero burst", "RATE_LIMIT_BURST", "0", "RATE_LIMIT_BURST must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ProductionRequiresAppURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, "APP_URL is required in production", err.Error())

	t.Setenv("APP_URL", "https://portfolio.example.com")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
