// Package config tests.
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, 128, cfg.CacheSize)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/var/data/projects.db")
	t.Setenv("PROJECT_CACHE_SIZE", "16")
	t.Setenv("API_KEY", "sekret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, "/var/data/projects.db", cfg.SQLitePath)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.True(t, cfg.AuthConfigured())
}

func TestRemoteEnabled(t *testing.T) {
	cfg := &Config{StorageBackend: "remote", RemoteBaseURL: "http://storage:9000"}
	assert.True(t, cfg.RemoteEnabled())

	cfg = &Config{StorageBackend: "remote"}
	assert.False(t, cfg.RemoteEnabled(), "remote without a base URL is not usable")

	cfg = &Config{StorageBackend: "memory", RemoteBaseURL: "http://storage:9000"}
	assert.False(t, cfg.RemoteEnabled())
}

func TestApplyBytes_OverridesOnlyPresentKeys(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyBytes([]byte("log_level: debug\ncache_size: 4\n")))

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.CacheSize)
	assert.Equal(t, ":8080", cfg.ListenAddr, "absent keys keep their env values")
	assert.Equal(t, "memory", cfg.StorageBackend)
}

func TestApplyBytes_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_OVERLAY_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyBytes([]byte("api_key: ${TEST_OVERLAY_KEY}\n")))
	assert.Equal(t, "from-env", cfg.APIKey)

	require.NoError(t, cfg.ApplyBytes([]byte("jwt_secret: $TEST_OVERLAY_KEY\n")))
	assert.Equal(t, "from-env", cfg.JWTSecret)
}

func TestApplyBytes_MissingVarBecomesEmpty(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyBytes([]byte("api_key: ${NO_SUCH_VAR_SET_ANYWHERE}\n")))
	assert.Empty(t, cfg.APIKey)
}

func TestApplyFile_MissingFileIsFine(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.ApplyFile("/no/such/overlay.yaml"))
}

func TestApplyBytes_Malformed(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.ApplyBytes([]byte("log_level: [broken")))
}
