package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

const (
	ModeWebhook = "webhook"
	ModePolling = "polling"

	TextModeForward = "forward"
	TextModeCopy    = "copy"

	StorageJSON   = "json"
	StorageSQLite = "sqlite"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Gateway  GatewayConfig  `json:"gateway"`
	Storage  StorageConfig  `json:"storage"`
	Forward  ForwardConfig  `json:"forward"`
}

type TelegramConfig struct {
	Token         string              `env:"FORWARDBOT_TELEGRAM_TOKEN"          json:"token"`
	Mode          string              `env:"FORWARDBOT_TELEGRAM_MODE"           json:"mode"`
	WebhookURL    string              `env:"FORWARDBOT_TELEGRAM_WEBHOOK_URL"    json:"webhook_url"`
	WebhookPath   string              `env:"FORWARDBOT_TELEGRAM_WEBHOOK_PATH"   json:"webhook_path,omitempty"`
	WebhookSecret string              `env:"FORWARDBOT_TELEGRAM_WEBHOOK_SECRET" json:"webhook_secret,omitempty"`
	Proxy         string              `env:"FORWARDBOT_TELEGRAM_PROXY"          json:"proxy,omitempty"`
	AllowFrom     FlexibleStringSlice `env:"FORWARDBOT_TELEGRAM_ALLOW_FROM"     json:"allow_from"`
}

// EffectiveWebhookPath defaults to "/<token>".
func (t TelegramConfig) EffectiveWebhookPath() string {
	if t.WebhookPath != "" {
		if !strings.HasPrefix(t.WebhookPath, "/") {
			return "/" + t.WebhookPath
		}
		return t.WebhookPath
	}
	return "/" + t.Token
}

// WebhookEndpoint is the public URL registered with Telegram.
func (t TelegramConfig) WebhookEndpoint() string {
	return strings.TrimRight(t.WebhookURL, "/") + t.EffectiveWebhookPath()
}

type GatewayConfig struct {
	Host string `env:"FORWARDBOT_GATEWAY_HOST" json:"host"`
	Port int    `env:"FORWARDBOT_GATEWAY_PORT" json:"port"`
}

type StorageConfig struct {
	Driver string `env:"FORWARDBOT_STORAGE_DRIVER" json:"driver"`
	Path   string `env:"FORWARDBOT_STORAGE_PATH"   json:"path"`
	// Strict makes an unreadable store fatal at startup instead of starting empty.
	Strict bool `env:"FORWARDBOT_STORAGE_STRICT" json:"strict"`
}

type ForwardConfig struct {
	TextMode           string `env:"FORWARDBOT_FORWARD_TEXT_MODE"            json:"text_mode"`
	SendTimeoutSeconds int    `env:"FORWARDBOT_FORWARD_SEND_TIMEOUT_SECONDS" json:"send_timeout_seconds"`
	Workers            int    `env:"FORWARDBOT_FORWARD_WORKERS"              json:"workers"`
	UnknownChatLabel   string `env:"FORWARDBOT_FORWARD_UNKNOWN_CHAT_LABEL"   json:"unknown_chat_label"`
}

func (f ForwardConfig) SendTimeout() time.Duration {
	return time.Duration(f.SendTimeoutSeconds) * time.Second
}

func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Mode:      ModeWebhook,
			AllowFrom: FlexibleStringSlice{},
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Storage: StorageConfig{
			Driver: StorageJSON,
			Path:   "forwards.json",
		},
		Forward: ForwardConfig{
			TextMode:           TextModeForward,
			SendTimeoutSeconds: 15,
			Workers:            8,
			UnknownChatLabel:   "unknown chat",
		},
	}
}

// legacyEnv maps the unprefixed variables of older deployments.
var legacyEnv = []struct {
	name string
	set  func(c *Config, v string)
}{
	{"BOT_TOKEN", func(c *Config, v string) { c.Telegram.Token = v }},
	{"WEBHOOK_URL", func(c *Config, v string) { c.Telegram.WebhookURL = v }},
}

func applyLegacyEnv(cfg *Config) {
	for _, e := range legacyEnv {
		if v, ok := os.LookupEnv(e.name); ok && v != "" {
			e.set(cfg, v)
		}
	}
}

// LoadConfig reads path (a missing file yields defaults), then applies the
// legacy BOT_TOKEN/WEBHOOK_URL variables and FORWARDBOT_* overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyLegacyEnv(cfg)

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks the settings needed to run the gateway.
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	switch c.Telegram.Mode {
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			errs = append(errs, errors.New("telegram.webhook_url is required in webhook mode"))
		}
	case ModePolling:
	default:
		errs = append(errs, fmt.Errorf("telegram.mode: unknown value %q", c.Telegram.Mode))
	}

	switch c.Storage.Driver {
	case StorageJSON, StorageSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown value %q", c.Storage.Driver))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}

	switch c.Forward.TextMode {
	case TextModeForward, TextModeCopy:
	default:
		errs = append(errs, fmt.Errorf("forward.text_mode: unknown value %q", c.Forward.TextMode))
	}
	if c.Forward.Workers < 1 {
		errs = append(errs, errors.New("forward.workers must be at least 1"))
	}
	if c.Forward.SendTimeoutSeconds < 0 {
		errs = append(errs, errors.New("forward.send_timeout_seconds must not be negative"))
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port: invalid value %d", c.Gateway.Port))
	}

	return errors.Join(errs...)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
