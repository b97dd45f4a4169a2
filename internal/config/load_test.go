package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytes_FullConfig(t *testing.T) {
	t.Parallel()

	yaml := `
deployment: web-shop
region: nbg1
concurrency: 6
admin:
  key_file: ~/.ssh/id_ed25519.pub
artifacts:
  grant_ttl: 45m
health:
  protocol: http
  port: 8080
  path: /healthz
  interval: 2s
  threshold: 2
  window: 90s
scale:
  min: 2
  max: 6
`
	cfg, err := LoadBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "web-shop", cfg.Deployment)
	assert.Equal(t, "nbg1", cfg.Region)
	assert.Equal(t, 6, cfg.Concurrency)
	assert.Equal(t, "~/.ssh/id_ed25519.pub", cfg.Admin.KeyFile)
	assert.Equal(t, 45*time.Minute, cfg.Artifacts.GrantTTL)
	assert.Equal(t, "http", cfg.Health.Protocol)
	assert.Equal(t, 8080, cfg.Health.Port)
	assert.Equal(t, "/healthz", cfg.Health.Path)
	assert.Equal(t, 2*time.Second, cfg.Health.Interval)
	assert.Equal(t, 2, cfg.Health.Threshold)
	assert.Equal(t, 90*time.Second, cfg.Health.Window)
	assert.Equal(t, 2, cfg.Scale.Min)
	assert.Equal(t, 6, cfg.Scale.Max)
}

func TestLoadBytes_MinimalConfigGetsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadBytes([]byte("deployment: demo\nregion: fsn1\n"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, time.Hour, cfg.Artifacts.GrantTTL)
	assert.Equal(t, "tcp", cfg.Health.Protocol)
	assert.Equal(t, 2*time.Minute, cfg.Health.Window)
}

func TestLoadBytes_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadBytes([]byte("deployment: [broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal yaml")
}

func TestLoadBytes_InvalidDuration(t *testing.T) {
	t.Parallel()

	_, err := LoadBytes([]byte("deployment: demo\nregion: fsn1\nartifacts:\n  grant_ttl: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode config")
}

func TestLoadBytes_ValidationFailure(t *testing.T) {
	t.Parallel()

	_, err := LoadBytes([]byte("deployment: demo\nregion: mars1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Health.Protocol = "http"
	cfg.Health.Path = "/healthz"

	path := filepath.Join(t.TempDir(), "stackzner.yaml")
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "deployment: web-shop")

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Deployment, loaded.Deployment)
	assert.Equal(t, "/healthz", loaded.Health.Path)
}

func TestLoadTimeouts_Defaults(t *testing.T) {
	timeouts := LoadTimeouts()

	assert.Equal(t, 10*time.Minute, timeouts.Create)
	assert.Equal(t, 5*time.Minute, timeouts.Delete)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
	assert.Equal(t, time.Second, timeouts.RetryInitialDelay)
}

func TestLoadTimeouts_EnvOverride(t *testing.T) {
	t.Setenv("STACKZNER_TIMEOUT_DELETE", "90s")
	t.Setenv("STACKZNER_RETRY_MAX_ATTEMPTS", "2")
	t.Setenv("STACKZNER_RETRY_INITIAL_DELAY", "not-a-duration")

	timeouts := LoadTimeouts()

	assert.Equal(t, 90*time.Second, timeouts.Delete)
	assert.Equal(t, 2, timeouts.RetryMaxAttempts)
	assert.Equal(t, time.Second, timeouts.RetryInitialDelay, "invalid value falls back to default")
}
