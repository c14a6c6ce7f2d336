package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, 60, cfg.App.CacheTTLSeconds)
	assert.Equal(t, 0, cfg.App.StatsMaxConcurrent)
	assert.Empty(t, cfg.Cleanup.Schedule)
	assert.False(t, cfg.Cleanup.Delete)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("APP_ENV", "production")
	t.Setenv("FIREBASE_PROJECT_ID", "taskboard-prod")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("STATS_MAX_CONCURRENT", "8")
	t.Setenv("CLEANUP_CRON", "0 0 3 * * *")
	t.Setenv("CLEANUP_DELETE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "taskboard-prod", cfg.Firebase.ProjectID)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 120, cfg.App.CacheTTLSeconds)
	assert.Equal(t, 8, cfg.App.StatsMaxConcurrent)
	assert.Equal(t, "0 0 3 * * *", cfg.Cleanup.Schedule)
	assert.True(t, cfg.Cleanup.Delete)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadInvalidIntegerFallsBack(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CACHE_TTL_SECONDS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.App.CacheTTLSeconds)
}

func TestValidateRequiresFirebaseOutsideDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("FIREBASE_PROJECT_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIREBASE_PROJECT_ID")
}
