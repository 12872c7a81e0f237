// Package bootstrap writes the files a browser needs to launch the native
// messaging host: a config file, a launcher script and the host manifest.
package bootstrap

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"text/template"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"pkt.systems/capturebadge/internal/appconfig"
)

// DefaultHostName is the native messaging host name registered with browsers.
const DefaultHostName = "systems.pkt.capturebadge"

// Browser selects the manifest flavor and install location.
type Browser string

const (
	BrowserChrome   Browser = "chrome"
	BrowserChromium Browser = "chromium"
	BrowserFirefox  Browser = "firefox"
)

var hostNamePattern = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)

// Options controls what bootstrap writes.
type Options struct {
	HostName string
	Browser  Browser
	// Binary is the capturebadge executable the launcher runs.
	Binary string
	// Allowed lists chrome-extension:// origins, or extension ids for Firefox.
	Allowed []string
	// ManifestDir overrides the browser's NativeMessagingHosts directory.
	ManifestDir string
	Overrides   []ConfigOverride
}

// Paths reports where bootstrap wrote its outputs.
type Paths struct {
	ConfigPath   string
	LauncherPath string
	ManifestPath string
}

// ConfigOverride sets a dotted config path in the generated config.
type ConfigOverride struct {
	Path  string
	Value any
}

// Manifest is the native messaging host manifest.
type Manifest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Path              string   `json:"path"`
	Type              string   `json:"type"`
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
}

type templateData struct {
	HostName   string
	Binary     string
	ConfigPath string
}

// ParseOverride parses path=value. The value is decoded as YAML so numbers,
// booleans and lists keep their type.
func ParseOverride(raw string) (ConfigOverride, error) {
	path, value, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(path) == "" {
		return ConfigOverride{}, fmt.Errorf("invalid override %q: expected path=value", raw)
	}
	var decoded any
	if err := yaml.Unmarshal([]byte(value), &decoded); err != nil {
		return ConfigOverride{}, fmt.Errorf("invalid override %q: %w", raw, err)
	}
	return ConfigOverride{Path: strings.TrimSpace(path), Value: decoded}, nil
}

// Write renders and writes the bootstrap files. The config and launcher go
// to outputDir, the manifest to the browser's host directory.
func Write(outputDir string, overwrite bool, opts Options) (Paths, error) {
	if strings.TrimSpace(outputDir) == "" {
		return Paths{}, errors.New("output directory is required")
	}
	opts, err := normalizeOptions(opts)
	if err != nil {
		return Paths{}, err
	}
	manifestDir := opts.ManifestDir
	if manifestDir == "" {
		manifestDir, err = ManifestDir(opts.Browser)
		if err != nil {
			return Paths{}, err
		}
	}
	paths := Paths{
		ConfigPath:   filepath.Join(outputDir, "config.yaml"),
		LauncherPath: filepath.Join(outputDir, opts.HostName+".sh"),
		ManifestPath: filepath.Join(manifestDir, opts.HostName+".json"),
	}

	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		return Paths{}, err
	}
	configYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return Paths{}, err
	}
	configYAML, err = applyOverridesToYAML(configYAML, opts.Overrides)
	if err != nil {
		return Paths{}, err
	}
	launcher, err := renderTemplate("templates/launcher.sh.tmpl", templateData{
		HostName:   opts.HostName,
		Binary:     opts.Binary,
		ConfigPath: paths.ConfigPath,
	})
	if err != nil {
		return Paths{}, err
	}
	manifest, err := RenderManifest(opts, paths.LauncherPath)
	if err != nil {
		return Paths{}, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Paths{}, err
	}
	if err := os.MkdirAll(manifestDir, 0o755); err != nil {
		return Paths{}, err
	}
	files := []struct {
		path string
		data []byte
		mode os.FileMode
	}{
		{paths.ConfigPath, configYAML, 0o600},
		{paths.LauncherPath, launcher, 0o755},
		{paths.ManifestPath, manifest, 0o644},
	}
	for _, file := range files {
		if err := writeFile(file.path, file.data, file.mode, overwrite); err != nil {
			return Paths{}, err
		}
	}
	return paths, nil
}

// RenderManifest renders the host manifest pointing at launcher.
func RenderManifest(opts Options, launcher string) ([]byte, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	manifest := Manifest{
		Name:        opts.HostName,
		Description: "capturebadge toolbar indicator host",
		Path:        launcher,
		Type:        "stdio",
	}
	if opts.Browser == BrowserFirefox {
		manifest.AllowedExtensions = opts.Allowed
	} else {
		manifest.AllowedOrigins = opts.Allowed
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ManifestDir returns the per-user NativeMessagingHosts directory.
func ManifestDir(browser Browser) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	darwin := runtime.GOOS == "darwin"
	switch browser {
	case BrowserChrome:
		if darwin {
			return filepath.Join(home, "Library", "Application Support", "Google", "Chrome", "NativeMessagingHosts"), nil
		}
		return filepath.Join(home, ".config", "google-chrome", "NativeMessagingHosts"), nil
	case BrowserChromium:
		if darwin {
			return filepath.Join(home, "Library", "Application Support", "Chromium", "NativeMessagingHosts"), nil
		}
		return filepath.Join(home, ".config", "chromium", "NativeMessagingHosts"), nil
	case BrowserFirefox:
		if darwin {
			return filepath.Join(home, "Library", "Application Support", "Mozilla", "NativeMessagingHosts"), nil
		}
		return filepath.Join(home, ".mozilla", "native-messaging-hosts"), nil
	default:
		return "", fmt.Errorf("unsupported browser %q", browser)
	}
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.HostName == "" {
		opts.HostName = DefaultHostName
	}
	if !hostNamePattern.MatchString(opts.HostName) {
		return opts, fmt.Errorf("invalid host name %q", opts.HostName)
	}
	if opts.Browser == "" {
		opts.Browser = BrowserChrome
	}
	if strings.TrimSpace(opts.Binary) == "" {
		return opts, errors.New("binary path is required")
	}
	if len(opts.Allowed) == 0 {
		return opts, errors.New("at least one allowed extension is required")
	}
	allowed := make([]string, 0, len(opts.Allowed))
	for _, value := range opts.Allowed {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if opts.Browser != BrowserFirefox {
			if !strings.HasPrefix(value, "chrome-extension://") {
				value = "chrome-extension://" + value
			}
			if !strings.HasSuffix(value, "/") {
				value += "/"
			}
		}
		allowed = append(allowed, value)
	}
	opts.Allowed = allowed
	return opts, nil
}

func writeFile(path string, data []byte, mode os.FileMode, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}

func renderTemplate(name string, data templateData) ([]byte, error) {
	raw, err := readEmbeddedFile(name)
	if err != nil {
		return nil, err
	}
	tpl, err := template.New(filepath.Base(name)).Funcs(template.FuncMap{"shquote": shellQuote}).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

func applyOverridesToYAML(configYAML []byte, overrides []ConfigOverride) ([]byte, error) {
	if len(overrides) == 0 {
		return configYAML, nil
	}
	var data map[string]any
	if err := yaml.Unmarshal(configYAML, &data); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		if err := setOverrideValue(data, override.Path, override.Value); err != nil {
			return nil, err
		}
	}
	return yaml.Marshal(data)
}

func setOverrideValue(root map[string]any, path string, value any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("config override path is required")
	}
	parts := strings.Split(path, ".")
	node := root
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return fmt.Errorf("invalid config override path %q", path)
		}
		if i == len(parts)-1 {
			node[part] = value
			return nil
		}
		next, ok := node[part]
		if !ok || next == nil {
			child := map[string]any{}
			node[part] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("config override %q: %q is not a map", path, part)
		}
		node = child
	}
	return nil
}
