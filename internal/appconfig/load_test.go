package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/capturebadge/schema"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Kind != StoreMemory || cfg.Indicator.Kind != IndicatorNativeMessaging {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	engine, err := cfg.ToEngineConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if engine.DefaultColor != schema.DefaultColor || engine.ProgressAutoColor != schema.ProgressAutoColor {
		t.Fatalf("unexpected engine colors: %+v", engine)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 7
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
store:
  kind: memory
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedStore(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
store:
  kind: redis
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported store.kind") {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestLoadRejectsInvalidCDPConfig(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
indicator:
  kind: cdp
  cdp:
    url: 127.0.0.1
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "indicator.cdp.url") {
		t.Fatalf("expected cdp url error, got %v", err)
	}
	path = writeConfig(t, `
config_version: 1
indicator:
  kind: cdp
  cdp:
    url: ws://127.0.0.1:9222
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "extension_id") {
		t.Fatalf("expected extension_id error, got %v", err)
	}
}

func TestLoadRejectsInvalidColor(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
engine:
  colors:
    error: [255, 0, 0]
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "engine.colors.error") {
		t.Fatalf("expected color error, got %v", err)
	}
}

func TestLoadEngineSection(t *testing.T) {
	t.Setenv("BADGE_STATE", "/tmp/badge")
	path := writeConfig(t, `
config_version: 1
state_dir: $BADGE_STATE
engine:
  auto_save_unpinned: true
  allowed_schemes: [https]
  colors:
    accent: [1, 2, 3, 255]
store:
  kind: file
  dir: $BADGE_STATE/tabs
messages:
  locale: fr
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/tmp/badge" || cfg.Store.Dir != "/tmp/badge/tabs" {
		t.Fatalf("expected env expansion, got %q %q", cfg.StateDir, cfg.Store.Dir)
	}
	engine, err := cfg.ToEngineConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if !engine.AutoSaveUnpinned || engine.AccentColor != (schema.Color{1, 2, 3, 255}) {
		t.Fatalf("unexpected engine config: %+v", engine)
	}
	if len(engine.AllowedSchemes) != 1 || engine.AllowedSchemes[0] != "https" {
		t.Fatalf("unexpected schemes: %v", engine.AllowedSchemes)
	}
	if engine.DefaultColor != schema.DefaultColor {
		t.Fatalf("expected default color to survive partial override, got %v", engine.DefaultColor)
	}
	if cfg.Messages.Locale != "fr" {
		t.Fatalf("unexpected locale %q", cfg.Messages.Locale)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load written default: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("unexpected config version %d", cfg.ConfigVersion)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
