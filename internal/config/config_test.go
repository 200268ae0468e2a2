package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/llmrelay/llmrelay/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1.0\"\n"))
	require.NoError(t, err)

	assert.Equal(t, 8402, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, time.Hour, cfg.Session.RateLimitCooldown)
	assert.Equal(t, 3, cfg.Session.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Session.RequestTimeout)
	assert.Equal(t, "https://claude.ai/api/append_message", cfg.Session.AppendMessageURL)
	assert.Equal(t, "https://api.anthropic.com/v1/messages", cfg.Upstream.MessagesURL)
	assert.Equal(t, "2023-06-01", cfg.Upstream.ProtocolVersion)
	assert.Equal(t, "X-API-Key", cfg.API.Auth.HeaderName)
	assert.Equal(t, time.Hour, cfg.Maintenance.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.Maintenance.RecoveryInterval)
}

func TestParseOverrides(t *testing.T) {
	data := []byte(`
server:
  host: 127.0.0.1
  http_port: 9000
session:
  max_attempts: 5
  rate_limit_cooldown: 30m
`)
	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 5, cfg.Session.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Session.RateLimitCooldown)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [not a map"))
	var parseErr *errors.ErrConfigParse
	require.ErrorAs(t, err, &parseErr)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  http_port: 70000\n"},
		{"negative attempts", "session:\n  max_attempts: -1\n"},
		{"auth without keys", "api:\n  auth:\n    enabled: true\n"},
		{"telegram without token", "telegram:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			var verr *errors.ErrConfigValidation
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoaderMissingFile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := loader.Load()
	var notFound *errors.ErrConfigNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestLoaderLoadAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9100\n"), 0644))

	loader := NewLoader(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.HTTPPort)
	assert.Same(t, cfg, loader.Get())
}

func TestLoaderEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_RELAY_PORT", "9200")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: ${TEST_RELAY_PORT}\n"), 0644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.HTTPPort)
}

func TestLoaderReloadNotifiesCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9100\n"), 0644))

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	var notified *Config
	loader.SetOnChange(func(c *Config) { notified = c })

	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9300\n"), 0644))
	cfg, err := loader.Reload()
	require.NoError(t, err)
	require.NotNil(t, notified)
	assert.Equal(t, 9300, notified.Server.HTTPPort)
	assert.Same(t, cfg, notified)
}
