package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nanobridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `webhook_id = "wh-1"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wh-1", cfg.WebhookID)
	assert.Equal(t, DefaultAgentName, cfg.AgentName)
	assert.Equal(t, DefaultListen, cfg.ListenAddress)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeoutDuration())
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeoutDuration())
	assert.Equal(t, DefaultLogFile, cfg.LogFile)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
webhook_id = "wh-2"
agent_name = "Kitchen Agent"
listen_address = ":9000"
request_timeout = 10
probe_timeout = 2
auth_secret_env = "BRIDGE_SECRET"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Kitchen Agent", cfg.AgentName)
	assert.Equal(t, ":9000", cfg.ListenAddress)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeoutDuration())
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeoutDuration())

	t.Setenv("BRIDGE_SECRET", "hunter2")
	assert.Equal(t, []byte("hunter2"), cfg.AuthSecret())
}

func TestLoadRejectsBadConfig(t *testing.T) {
	_, err := Load(writeConfig(t, `agent_name = "no webhook id"`))
	assert.ErrorContains(t, err, "webhook_id")

	_, err = Load(writeConfig(t, "webhook_id = \"wh\"\nrequest_timeout = -1"))
	assert.ErrorContains(t, err, "negative")

	_, err = Load(writeConfig(t, `this is not toml`))
	assert.Error(t, err)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.WebhookID)
	assert.Equal(t, DefaultListen, cfg.ListenAddress)
}

func TestAuthSecretEmptyWhenUnconfigured(t *testing.T) {
	cfg := Default()
	assert.Nil(t, cfg.AuthSecret())
}
