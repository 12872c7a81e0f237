package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"pkt.systems/capturebadge/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	Engine        EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Store         StoreConfig     `mapstructure:"store" yaml:"store"`
	Indicator     IndicatorConfig `mapstructure:"indicator" yaml:"indicator"`
	Messages      MessagesConfig  `mapstructure:"messages" yaml:"messages"`
	Host          HostConfig      `mapstructure:"host" yaml:"host"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EngineConfig controls the button appearance and auto-save policy.
type EngineConfig struct {
	DefaultIconPath    string       `mapstructure:"default_icon_path" yaml:"default_icon_path"`
	WaitIconPathPrefix string       `mapstructure:"wait_icon_path_prefix" yaml:"wait_icon_path_prefix"`
	AutoSaveAll        bool         `mapstructure:"auto_save_all" yaml:"auto_save_all"`
	AutoSaveUnpinned   bool         `mapstructure:"auto_save_unpinned" yaml:"auto_save_unpinned"`
	AllowedSchemes     []string     `mapstructure:"allowed_schemes" yaml:"allowed_schemes"`
	Colors             ColorsConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorsConfig holds RGBA badge colors as four element lists.
type ColorsConfig struct {
	Default      []int `mapstructure:"default" yaml:"default,flow"`
	Accent       []int `mapstructure:"accent" yaml:"accent,flow"`
	Error        []int `mapstructure:"error" yaml:"error,flow"`
	Auto         []int `mapstructure:"auto" yaml:"auto,flow"`
	ProgressAuto []int `mapstructure:"progress_auto" yaml:"progress_auto,flow"`
}

// StoreConfig selects the ephemeral tab store.
type StoreConfig struct {
	Kind         string `mapstructure:"kind" yaml:"kind"`
	Dir          string `mapstructure:"dir" yaml:"dir"`
	ResetOnStart bool   `mapstructure:"reset_on_start" yaml:"reset_on_start"`
}

// IndicatorConfig selects where indicator calls are sent.
type IndicatorConfig struct {
	Kind string    `mapstructure:"kind" yaml:"kind"`
	CDP  CDPConfig `mapstructure:"cdp" yaml:"cdp"`
}

// CDPConfig configures the DevTools protocol indicator.
type CDPConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	ExtensionID    string `mapstructure:"extension_id" yaml:"extension_id"`
	Namespace      string `mapstructure:"namespace" yaml:"namespace"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// MessagesConfig selects the message catalog.
type MessagesConfig struct {
	Locale string `mapstructure:"locale" yaml:"locale"`
	File   string `mapstructure:"file" yaml:"file"`
}

// HostConfig controls the native messaging host.
type HostConfig struct {
	MaxMessageBytes        int `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RefreshConcurrency     int `mapstructure:"refresh_concurrency" yaml:"refresh_concurrency"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

const (
	// StoreMemory keeps tab records in memory.
	StoreMemory = "memory"
	// StoreFile keeps tab records in the state directory.
	StoreFile = "file"
	// IndicatorNativeMessaging answers the extension over native messaging.
	IndicatorNativeMessaging = "nativemsg"
	// IndicatorCDP drives the extension through the DevTools protocol.
	IndicatorCDP = "cdp"
	// IndicatorLog only logs indicator calls.
	IndicatorLog = "log"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	stateDir := filepath.Join(home, ".capturebadge", "state")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      stateDir,
		Engine: EngineConfig{
			DefaultIconPath:    schema.DefaultIconPath,
			WaitIconPathPrefix: schema.DefaultWaitIconPathPrefix,
			AllowedSchemes:     []string{"http", "https", "file"},
			Colors: ColorsConfig{
				Default:      colorList(schema.DefaultColor),
				Accent:       colorList(schema.AccentColor),
				Error:        colorList(schema.ErrorColor),
				Auto:         colorList(schema.AutoColor),
				ProgressAuto: colorList(schema.ProgressAutoColor),
			},
		},
		Store: StoreConfig{
			Kind:         StoreMemory,
			Dir:          filepath.Join(stateDir, "tabs"),
			ResetOnStart: true,
		},
		Indicator: IndicatorConfig{
			Kind: IndicatorNativeMessaging,
			CDP: CDPConfig{
				URL:            "ws://127.0.0.1:9222",
				Namespace:      "chrome.browserAction",
				TimeoutSeconds: 5,
			},
		},
		Messages: MessagesConfig{
			Locale: "",
			File:   "",
		},
		Host: HostConfig{
			MaxMessageBytes:        64 << 20,
			RefreshConcurrency:     16,
			ShutdownTimeoutSeconds: 5,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".capturebadge", "config.yaml"), nil
}

// ToEngineConfig converts the engine section into the engine's config.
func (c Config) ToEngineConfig() (schema.EngineConfig, error) {
	out := schema.EngineConfig{
		DefaultIconPath:    c.Engine.DefaultIconPath,
		WaitIconPathPrefix: c.Engine.WaitIconPathPrefix,
		AutoSaveAll:        c.Engine.AutoSaveAll,
		AutoSaveUnpinned:   c.Engine.AutoSaveUnpinned,
		AllowedSchemes:     c.Engine.AllowedSchemes,
	}
	colors := []struct {
		name string
		src  []int
		dst  *schema.Color
	}{
		{"default", c.Engine.Colors.Default, &out.DefaultColor},
		{"accent", c.Engine.Colors.Accent, &out.AccentColor},
		{"error", c.Engine.Colors.Error, &out.ErrorColor},
		{"auto", c.Engine.Colors.Auto, &out.AutoColor},
		{"progress_auto", c.Engine.Colors.ProgressAuto, &out.ProgressAutoColor},
	}
	for _, color := range colors {
		if len(color.src) == 0 {
			continue
		}
		parsed, err := toColor(color.src)
		if err != nil {
			return schema.EngineConfig{}, fmt.Errorf("engine.colors.%s: %w", color.name, err)
		}
		*color.dst = parsed
	}
	return schema.NormalizeEngineConfig(out)
}

func colorList(c schema.Color) []int {
	return []int{int(c[0]), int(c[1]), int(c[2]), int(c[3])}
}

func toColor(values []int) (schema.Color, error) {
	var c schema.Color
	if len(values) != 4 {
		return c, fmt.Errorf("expected 4 channels, got %d", len(values))
	}
	for i, v := range values {
		if v < 0 || v > 255 {
			return c, fmt.Errorf("channel %d out of range: %d", i, v)
		}
		c[i] = uint8(v)
	}
	return c, nil
}
