package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().App, cfg.App)
	assert.Equal(t, "simulated", cfg.Environments.Terminal.Mode)
	require.NoError(t, cfg.Validate())
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"app": {"name": "bot", "workspace": "/tmp/ws"},
		"providers": {"openai": {"api_key": "sk-test", "model": "gpt-4o-mini", "enabled": true}},
		"gateways": {"telegram": {"token": "tg", "enabled": true}}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bot", cfg.App.Name)
	assert.Equal(t, "./reports", cfg.App.ReportsDir)
	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "openai", name)
	assert.Equal(t, "gpt-4o-mini", p.Model)

	tg, ok := cfg.GetGatewayConfig("telegram")
	assert.True(t, ok)
	assert.Equal(t, "tg", tg.Token)
	_, ok = cfg.GetGatewayConfig("discord")
	assert.False(t, ok)
}

func TestLoadYAMLExpandsEnv(t *testing.T) {
	t.Setenv("TEST_TG_TOKEN", "secret-token")
	path := writeFile(t, "config.yaml", `
gateways:
  telegram:
    token: ${TEST_TG_TOKEN}
    enabled: true
environments:
  terminal:
    mode: live
    latency_ms: 50
policy:
  deny_commands: ["sudo"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Gateways["telegram"].Token)
	assert.Equal(t, "live", cfg.Environments.Terminal.Mode)
	assert.Equal(t, 50, cfg.Environments.Terminal.LatencyMS)
	assert.Equal(t, "simulated", cfg.Environments.Browser.Mode)
	assert.Equal(t, []string{"sudo"}, cfg.Policy.DenyCommands)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOPILOT_OPENAI_API_KEY", "sk-env")
	t.Setenv("AUTOPILOT_MODEL", "gpt-test")
	t.Setenv("AUTOPILOT_WORKSPACE", "/srv/ws")
	t.Setenv("AUTOPILOT_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	name, p, err := cfg.RequireProvider()
	require.NoError(t, err)
	assert.Equal(t, "openai", name)
	assert.Equal(t, "sk-env", p.APIKey)
	assert.Equal(t, "gpt-test", p.Model)
	assert.Equal(t, "/srv/ws", cfg.App.Workspace)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestRequireProvider(t *testing.T) {
	cfg := DefaultConfig()
	_, _, err := cfg.RequireProvider()
	assert.True(t, errors.Is(err, ErrMissingProvider))

	cfg.Providers["openai"] = ProviderConfig{Enabled: true}
	_, _, err = cfg.RequireProvider()
	assert.ErrorIs(t, err, ErrMissingProvider)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environments.Browser.Mode = "remote"
	cfg.Environments.FileSystem.LatencyMS = -1
	cfg.Logging.Level = "loud"
	cfg.Policy.DenyCommands = []string{"("}
	cfg.Gateways["discord"] = GatewayConfig{Enabled: true}

	err := cfg.Validate()
	var cfgErr ConfigError
	require.ErrorAs(t, err, &cfgErr)
	msg := err.Error()
	assert.Contains(t, msg, `environments.browser.mode: unknown mode "remote"`)
	assert.Contains(t, msg, "environments.file_system.latency_ms")
	assert.Contains(t, msg, `logging.level: unknown level "loud"`)
	assert.Contains(t, msg, "policy.deny_commands")
	assert.Contains(t, msg, "gateways.discord.token")
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := writeFile(t, "config.json", `{"app": `)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}
