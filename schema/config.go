package schema

import (
	"errors"
	"strconv"
	"strings"
)

// EngineConfig defines the appearance constants and auto-save policy.
type EngineConfig struct {
	DefaultIconPath    string
	WaitIconPathPrefix string
	DefaultColor       Color
	AccentColor        Color
	ErrorColor         Color
	AutoColor          Color
	ProgressAutoColor  Color
	// AutoSaveAll enables auto-save on every tab.
	AutoSaveAll bool
	// AutoSaveUnpinned enables auto-save on tabs that are not pinned.
	AutoSaveUnpinned bool
	AllowedSchemes   []string
}

const (
	// DefaultIconPath is the static toolbar icon.
	DefaultIconPath = "/extension/ui/resources/icon_16.png"
	// DefaultWaitIconPathPrefix prefixes the animated frame icons.
	DefaultWaitIconPathPrefix = "/extension/ui/resources/icon_16_wait"
	// ProgressSteps is the number of 5% steps in the text read-out.
	ProgressSteps = 20
	// BarFrames is the index of the last animated icon frame.
	BarFrames = 8
)

var (
	// DefaultColor is the default badge background.
	DefaultColor = Color{2, 147, 20, 255}
	// AccentColor is the badge background for progress and success.
	AccentColor = Color{4, 229, 36, 255}
	// ErrorColor is the badge background for failures.
	ErrorColor = Color{229, 4, 12, 255}
	// AutoColor is the badge background while auto-save is active.
	AutoColor = Color{208, 208, 208, 255}
	// ProgressAutoColor is the auto-save badge background during progress.
	ProgressAutoColor = Color{128, 128, 128, 255}
)

var zeroColor Color

// NormalizeEngineConfig applies defaults and validates the config.
func NormalizeEngineConfig(cfg EngineConfig) (EngineConfig, error) {
	if cfg.DefaultIconPath == "" {
		cfg.DefaultIconPath = DefaultIconPath
	}
	if cfg.WaitIconPathPrefix == "" {
		cfg.WaitIconPathPrefix = DefaultWaitIconPathPrefix
	}
	if cfg.DefaultColor == zeroColor {
		cfg.DefaultColor = DefaultColor
	}
	if cfg.AccentColor == zeroColor {
		cfg.AccentColor = AccentColor
	}
	if cfg.ErrorColor == zeroColor {
		cfg.ErrorColor = ErrorColor
	}
	if cfg.AutoColor == zeroColor {
		cfg.AutoColor = AutoColor
	}
	if cfg.ProgressAutoColor == zeroColor {
		cfg.ProgressAutoColor = ProgressAutoColor
	}
	if len(cfg.AllowedSchemes) == 0 {
		cfg.AllowedSchemes = []string{"http", "https", "file"}
	}
	schemes := make([]string, 0, len(cfg.AllowedSchemes))
	for _, scheme := range cfg.AllowedSchemes {
		scheme = strings.ToLower(strings.TrimSpace(scheme))
		scheme = strings.TrimSuffix(scheme, ":")
		if scheme == "" {
			return EngineConfig{}, errors.New("allowed scheme must not be empty")
		}
		schemes = append(schemes, scheme)
	}
	cfg.AllowedSchemes = schemes
	return cfg, nil
}

// WaitIconPath returns the animated icon path for a frame.
func (cfg EngineConfig) WaitIconPath(frame int) string {
	return cfg.WaitIconPathPrefix + strconv.Itoa(frame) + ".png"
}
