package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeWebhook, cfg.Telegram.Mode)
	assert.Equal(t, "0.0.0.0", cfg.Gateway.Host)
	assert.Equal(t, 5000, cfg.Gateway.Port)
	assert.Equal(t, StorageJSON, cfg.Storage.Driver)
	assert.Equal(t, "forwards.json", cfg.Storage.Path)
	assert.Equal(t, TextModeForward, cfg.Forward.TextMode)
	assert.Equal(t, "unknown chat", cfg.Forward.UnknownChatLabel)
	assert.False(t, cfg.Storage.Strict)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Gateway.Port)
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"telegram": {"token": "file-token", "mode": "polling", "allow_from": [123, "@admin"]},
		"storage": {"driver": "sqlite", "path": "/var/lib/forwardbot/rules.db"},
		"forward": {"text_mode": "copy", "workers": 2}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	t.Setenv("FORWARDBOT_GATEWAY_PORT", "8443")
	t.Setenv("FORWARDBOT_FORWARD_WORKERS", "4")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, ModePolling, cfg.Telegram.Mode)
	assert.Equal(t, FlexibleStringSlice{"123", "@admin"}, cfg.Telegram.AllowFrom)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, TextModeCopy, cfg.Forward.TextMode)
	assert.Equal(t, 8443, cfg.Gateway.Port)
	assert.Equal(t, 4, cfg.Forward.Workers)
	// Untouched defaults survive a partial file.
	assert.Equal(t, 15, cfg.Forward.SendTimeoutSeconds)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_LegacyEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:legacy")
	t.Setenv("WEBHOOK_URL", "https://bot.example.com/")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, "123:legacy", cfg.Telegram.Token)
	assert.Equal(t, "https://bot.example.com/", cfg.Telegram.WebhookURL)
	assert.Equal(t, "/123:legacy", cfg.Telegram.EffectiveWebhookPath())
	assert.Equal(t, "https://bot.example.com/123:legacy", cfg.Telegram.WebhookEndpoint())
}

func TestLoadConfig_PrefixedEnvBeatsLegacy(t *testing.T) {
	t.Setenv("BOT_TOKEN", "legacy")
	t.Setenv("FORWARDBOT_TELEGRAM_TOKEN", "prefixed")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Telegram.Token)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Telegram.Token = "abc"
	cfg.Telegram.AllowFrom = FlexibleStringSlice{"1", "2"}

	require.NoError(t, SaveConfig(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *cfg, decoded)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token is required")
	assert.Contains(t, err.Error(), "telegram.webhook_url is required")

	cfg.Telegram.Token = "t"
	cfg.Telegram.WebhookURL = "https://example.com"
	require.NoError(t, cfg.Validate())

	cfg.Telegram.Mode = "carrier-pigeon"
	cfg.Storage.Driver = "redis"
	cfg.Forward.TextMode = "quote"
	cfg.Forward.Workers = 0
	err = cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"telegram.mode", "storage.driver", "forward.text_mode", "forward.workers"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestEffectiveWebhookPath(t *testing.T) {
	assert.Equal(t, "/hook", TelegramConfig{Token: "t", WebhookPath: "hook"}.EffectiveWebhookPath())
	assert.Equal(t, "/hook", TelegramConfig{Token: "t", WebhookPath: "/hook"}.EffectiveWebhookPath())
	assert.Equal(t, "/t", TelegramConfig{Token: "t"}.EffectiveWebhookPath())
}
