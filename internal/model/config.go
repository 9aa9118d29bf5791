package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// DCONNECT_API_BASE_URL overrides api.base_url.
const EnvPrefix = "DCONNECT"

// APIConfig holds settings for the REST backend.
type APIConfig struct {
	// BaseURL is the root URL of the backend (e.g., https://api.dconnect.app).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every outbound call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// Timeout returns the per-call timeout as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// PushConfig holds settings for the notification push channel.
type PushConfig struct {
	// URL is the Socket.IO endpoint root (http, https, ws or wss).
	URL string `mapstructure:"url" yaml:"url"`

	// MaxBackoffSec caps the reconnect delay.
	MaxBackoffSec int `mapstructure:"max_backoff_sec" yaml:"max_backoff_sec"`
}

// MaxBackoff returns the reconnect delay cap as a duration.
func (c PushConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSec) * time.Second
}

// ChatConfig holds conversation polling settings.
type ChatConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	// UnreadPollIntervalSec is how often the header badge re-reads the
	// unread count in the background.
	UnreadPollIntervalSec int `mapstructure:"unread_poll_interval_sec" yaml:"unread_poll_interval_sec"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File receives log output; the terminal belongs to the UI.
	File string `mapstructure:"file" yaml:"file"`

	// JSON selects the JSON handler instead of the text handler.
	JSON bool `mapstructure:"json" yaml:"json"`
}

// LocationsConfig points at the local country/state/city catalogue.
type LocationsConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Push      PushConfig      `mapstructure:"push" yaml:"push"`
	Chat      ChatConfig      `mapstructure:"chat" yaml:"chat"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Locations LocationsConfig `mapstructure:"locations" yaml:"locations"`
}

// ConfigDir returns ~/.config/dconnect, or the working directory when the
// home directory cannot be determined.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dconnect")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/dconnect/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:3000",
			TimeoutSec: 8,
		},
		Push: PushConfig{
			URL:           "http://localhost:4000",
			MaxBackoffSec: 30,
		},
		Chat: ChatConfig{
			PollIntervalSec: 5,
		},
		Display: DisplayConfig{
			UnreadPollIntervalSec: 60,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(ConfigDir(), "dconnect.log"),
		},
		Locations: LocationsConfig{
			DBPath: filepath.Join(ConfigDir(), "locations.db"),
		},
	}
}

// NewViper returns a viper instance with defaults and environment
// overrides registered. Callers may bind flags before LoadConfig reads it.
func NewViper() *viper.Viper {
	d := defaultAppConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values, and so
	// AutomaticEnv knows which keys exist.
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("push.url", d.Push.URL)
	v.SetDefault("push.max_backoff_sec", d.Push.MaxBackoffSec)
	v.SetDefault("chat.poll_interval_sec", d.Chat.PollIntervalSec)
	v.SetDefault("display.unread_poll_interval_sec", d.Display.UnreadPollIntervalSec)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("locations.db_path", d.Locations.DBPath)

	// The web client's variable names are honoured as aliases.
	_ = v.BindEnv("api.base_url", EnvPrefix+"_API_BASE_URL", "VITE_API_BASE_URL")
	_ = v.BindEnv("push.url", EnvPrefix+"_PUSH_URL", EnvPrefix+"_WEBSOCKET_URL", "VITE_WEBSOCKET_URL")

	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults and environment overrides apply.
func LoadConfig(v *viper.Viper, path string) (*AppConfig, error) {
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = 8
	}
	if cfg.Chat.PollIntervalSec <= 0 {
		cfg.Chat.PollIntervalSec = 5
	}
	if cfg.Push.MaxBackoffSec <= 0 {
		cfg.Push.MaxBackoffSec = 30
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("push", cfg.Push)
	v.Set("chat", cfg.Chat)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("locations", cfg.Locations)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
