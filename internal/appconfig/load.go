package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
// A missing config file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CAPTUREBADGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("engine.default_icon_path", cfg.Engine.DefaultIconPath)
	v.SetDefault("engine.wait_icon_path_prefix", cfg.Engine.WaitIconPathPrefix)
	v.SetDefault("engine.auto_save_all", cfg.Engine.AutoSaveAll)
	v.SetDefault("engine.auto_save_unpinned", cfg.Engine.AutoSaveUnpinned)
	v.SetDefault("engine.allowed_schemes", cfg.Engine.AllowedSchemes)
	v.SetDefault("engine.colors.default", cfg.Engine.Colors.Default)
	v.SetDefault("engine.colors.accent", cfg.Engine.Colors.Accent)
	v.SetDefault("engine.colors.error", cfg.Engine.Colors.Error)
	v.SetDefault("engine.colors.auto", cfg.Engine.Colors.Auto)
	v.SetDefault("engine.colors.progress_auto", cfg.Engine.Colors.ProgressAuto)
	v.SetDefault("store.kind", cfg.Store.Kind)
	v.SetDefault("store.dir", cfg.Store.Dir)
	v.SetDefault("store.reset_on_start", cfg.Store.ResetOnStart)
	v.SetDefault("indicator.kind", cfg.Indicator.Kind)
	v.SetDefault("indicator.cdp.url", cfg.Indicator.CDP.URL)
	v.SetDefault("indicator.cdp.extension_id", cfg.Indicator.CDP.ExtensionID)
	v.SetDefault("indicator.cdp.namespace", cfg.Indicator.CDP.Namespace)
	v.SetDefault("indicator.cdp.timeout_seconds", cfg.Indicator.CDP.TimeoutSeconds)
	v.SetDefault("messages.locale", cfg.Messages.Locale)
	v.SetDefault("messages.file", cfg.Messages.File)
	v.SetDefault("host.max_message_bytes", cfg.Host.MaxMessageBytes)
	v.SetDefault("host.refresh_concurrency", cfg.Host.RefreshConcurrency)
	v.SetDefault("host.shutdown_timeout_seconds", cfg.Host.ShutdownTimeoutSeconds)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Store.Kind {
	case StoreMemory:
	case StoreFile:
		if strings.TrimSpace(cfg.Store.Dir) == "" {
			return fmt.Errorf("store.dir is required for store.kind %q", StoreFile)
		}
	default:
		return fmt.Errorf("unsupported store.kind %q", cfg.Store.Kind)
	}
	switch cfg.Indicator.Kind {
	case IndicatorNativeMessaging, IndicatorLog:
	case IndicatorCDP:
		if err := validateCDPConfig(cfg.Indicator.CDP); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported indicator.kind %q", cfg.Indicator.Kind)
	}
	if cfg.Host.MaxMessageBytes <= 0 {
		return fmt.Errorf("host.max_message_bytes must be positive")
	}
	if _, err := cfg.ToEngineConfig(); err != nil {
		return err
	}
	return nil
}

func validateCDPConfig(cfg CDPConfig) error {
	raw := strings.TrimSpace(cfg.URL)
	parsed, err := url.Parse(raw)
	if raw == "" || err != nil || parsed.Host == "" {
		return fmt.Errorf("indicator.cdp.url must include scheme and host (e.g. ws://127.0.0.1:9222)")
	}
	switch parsed.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("indicator.cdp.url scheme %q is not supported", parsed.Scheme)
	}
	if strings.TrimSpace(cfg.ExtensionID) == "" {
		return fmt.Errorf("indicator.cdp.extension_id is required for indicator.kind %q", IndicatorCDP)
	}
	if strings.TrimSpace(cfg.Namespace) == "" {
		return fmt.Errorf("indicator.cdp.namespace must not be empty")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Store.Dir = expandEnv(cfg.Store.Dir)
	cfg.Messages.File = expandEnv(cfg.Messages.File)
	cfg.Indicator.CDP.URL = expandEnv(cfg.Indicator.CDP.URL)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
