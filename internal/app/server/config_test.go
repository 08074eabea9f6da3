package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"echo-core/internal/constants"
	coreerrors "echo-core/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGetDefaultConfig(t *testing.T) {
	config := GetDefaultConfig()

	assert.Equal(t, "0.0.0.0:4000", config.ListenAddr())
	assert.Equal(t, 5*time.Second, config.IdleTimeout())
	assert.False(t, config.Session.EvictOnClose)
	assert.False(t, config.ManagementAPI.Enabled)
	assert.Equal(t, constants.DefaultManagementAddr, config.ManagementAPI.ListenAddr)
	require.NoError(t, ValidateConfig(config))
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 4100
session:
  idle_timeout_ms: 1500
  evict_on_close: true
log:
  level: debug
  format: json
management_api:
  enabled: true
  listen_addr: 127.0.0.1:9100
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4100", config.ListenAddr())
	assert.Equal(t, 1500*time.Millisecond, config.IdleTimeout())
	assert.True(t, config.Session.EvictOnClose)
	assert.Equal(t, constants.LogLevelDebug, config.Log.Level)
	assert.Equal(t, constants.LogFormatJSON, config.Log.Format)
	// 未出现的字段保留默认值
	assert.Equal(t, constants.LogOutputStdout, config.Log.Output)
	assert.True(t, config.ManagementAPI.Enabled)
	assert.Equal(t, "127.0.0.1:9100", config.ManagementAPI.ListenAddr)
	assert.Equal(t, 20, config.ManagementAPI.RateLimit.RPS)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 4100\n")
	t.Setenv("ECHO_SERVER_HOST", "127.0.0.1")
	t.Setenv("ECHO_SERVER_PORT", "4200")
	t.Setenv("ECHO_IDLE_TIMEOUT_MS", "250")
	t.Setenv("ECHO_EVICT_ON_CLOSE", "true")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("MANAGEMENT_API_ENABLED", "1")
	t.Setenv("MANAGEMENT_API_LISTEN", "127.0.0.1:9200")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4200", config.ListenAddr())
	assert.Equal(t, 250*time.Millisecond, config.IdleTimeout())
	assert.True(t, config.Session.EvictOnClose)
	assert.Equal(t, constants.LogLevelWarn, config.Log.Level)
	assert.True(t, config.ManagementAPI.Enabled)
	assert.Equal(t, "127.0.0.1:9200", config.ManagementAPI.ListenAddr)
}

func TestApplyEnvOverridesIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("ECHO_SERVER_PORT", "not-a-port")
	t.Setenv("ECHO_IDLE_TIMEOUT_MS", "soon")

	config := GetDefaultConfig()
	ApplyEnvOverrides(config)
	assert.Equal(t, constants.DefaultListenPort, config.Server.Port)
	assert.Equal(t, constants.DefaultIdleTimeoutMs, config.Session.IdleTimeoutMs)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"ephemeral port", func(c *Config) { c.Server.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, true},
		{"negative timeout", func(c *Config) { c.Session.IdleTimeoutMs = -5 }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"bad log output", func(c *Config) { c.Log.Output = "syslog" }, true},
		{"file output without path", func(c *Config) { c.Log.Output = constants.LogOutputFile }, true},
		{"bad api address", func(c *Config) {
			c.ManagementAPI.Enabled = true
			c.ManagementAPI.ListenAddr = "no-port"
		}, true},
		{"bad api address while disabled", func(c *Config) { c.ManagementAPI.ListenAddr = "no-port" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tt.mutate(config)
			err := ValidateConfig(config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConfigFillsZeroValues(t *testing.T) {
	config := &Config{}
	require.NoError(t, ValidateConfig(config))

	assert.Equal(t, constants.DefaultListenHost, config.Server.Host)
	assert.Equal(t, constants.DefaultIdleTimeoutMs, config.Session.IdleTimeoutMs)
	assert.Equal(t, constants.LogLevelInfo, config.Log.Level)
	assert.Equal(t, constants.LogFormatText, config.Log.Format)
	assert.Equal(t, constants.LogOutputStdout, config.Log.Output)
	assert.Equal(t, 40, config.ManagementAPI.RateLimit.Burst)
}
