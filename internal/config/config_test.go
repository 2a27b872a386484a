package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xchat.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
reconnect = true

[log]
level = "debug"
console = false

[youtube]
channel = "somebody"
poll_interval = "3s"

[kick]
enabled = false

[relay]
addr = "0.0.0.0:9000"
format = "json"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Reconnect)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Console)
	assert.Equal(t, "somebody", cfg.YouTube.Channel)
	assert.Equal(t, 3*time.Second, cfg.YouTube.PollInterval)
	assert.False(t, cfg.Kick.Enabled)
	assert.Equal(t, "0.0.0.0:9000", cfg.Relay.Addr)
	assert.Equal(t, "json", cfg.Relay.Format)
	// untouched values keep their defaults
	assert.Equal(t, "/ws", cfg.Relay.Path)
	assert.Equal(t, 100, cfg.Hub.Capacity)
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	path := writeFile(t, "[hub]\ncapacity = 50\n")
	t.Setenv("XCHAT_HUB_CAPACITY", "250")
	t.Setenv("XCHAT_REDIS_ENABLED", "true")
	t.Setenv("XCHAT_REDIS_ADDR", "redis:6379")
	t.Setenv("XCHAT_STORE_PATH", "/var/lib/xchat/m.sqlite3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Hub.Capacity)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "chat", cfg.Redis.Stream)
	assert.Equal(t, "/var/lib/xchat/m.sqlite3", cfg.Store.Path)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "[hub]\ncapacity = 0\n[relay]\nformat = \"xml\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hub.capacity")
	assert.Contains(t, err.Error(), "relay.format")
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	_, err := Load(writeFile(t, "[log\nlevel="))
	assert.Error(t, err)
}

func TestValidateSkipsDisabledSections(t *testing.T) {
	cfg := Defaults()
	cfg.YouTube.Enabled = false
	cfg.YouTube.Channel = ""
	cfg.Relay.Enabled = false
	cfg.Relay.Format = ""
	assert.NoError(t, cfg.Validate())
}
