package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, uint16(8080), cfg.HTTP.Port)
	assert.Equal(t, "http://localhost:3000", cfg.Upstream.BaseURL)
	assert.Equal(t, "main", cfg.Upstream.DefaultBroker)
	assert.Equal(t, 20, cfg.Poller.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Poller.Interval)
	assert.Equal(t, 30*time.Second, cfg.StateCache.TTL)
	assert.True(t, cfg.Watcher.Enabled)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
http:
  port: 9090
upstream:
  base_url: https://pgrst.internal:3001
  default_broker: edge-1
poller:
  max_attempts: 5
  interval: 500ms
watcher:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(9090), cfg.HTTP.Port)
	assert.Equal(t, "https://pgrst.internal:3001", cfg.Upstream.BaseURL)
	assert.Equal(t, "edge-1", cfg.Upstream.DefaultBroker)
	assert.Equal(t, 5, cfg.Poller.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Poller.Interval)
	assert.False(t, cfg.Watcher.Enabled)

	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.RateLimiter.MaxRatePerSecond)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("DYNSEC_API_URL", "http://env-wins:3000")
	t.Setenv("POLLER_MAX_ATTEMPTS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://env-wins:3000", cfg.Upstream.BaseURL)
	assert.Equal(t, 7, cfg.Poller.MaxAttempts)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
