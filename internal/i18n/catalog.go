// Package i18n provides the localized strings shown on the toolbar button.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLocale is the locale every catalog falls back to.
const DefaultLocale = "en"

//go:embed locales/*.yaml
var locales embed.FS

// Catalog resolves message keys for one locale with an English fallback.
type Catalog struct {
	locale   string
	messages map[string]string
	fallback map[string]string
}

// Load returns the embedded catalog for locale, overlaid with the messages
// from overridePath when it is set.
func Load(locale, overridePath string) (*Catalog, error) {
	fallback, err := embedded(DefaultLocale)
	if err != nil {
		return nil, err
	}
	locale = normalizeLocale(locale)
	messages := map[string]string{}
	if locale != DefaultLocale {
		messages, err = embedded(locale)
		if err != nil && !errors.Is(err, errUnknownLocale) {
			return nil, err
		}
		if messages == nil {
			messages = map[string]string{}
		}
	}
	if strings.TrimSpace(overridePath) != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, err
		}
		overrides, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("messages %s: %w", overridePath, err)
		}
		for key, value := range overrides {
			messages[key] = value
		}
	}
	return &Catalog{locale: locale, messages: messages, fallback: fallback}, nil
}

// Locale returns the catalog's locale.
func (c *Catalog) Locale() string {
	return c.locale
}

// Message returns the string for key, or key itself when unknown.
func (c *Catalog) Message(key string) string {
	if value, ok := c.messages[key]; ok {
		return value
	}
	if value, ok := c.fallback[key]; ok {
		return value
	}
	return key
}

var errUnknownLocale = errors.New("unknown locale")

func embedded(locale string) (map[string]string, error) {
	data, err := locales.ReadFile(path.Join("locales", locale+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errUnknownLocale, locale)
	}
	return parse(data)
}

func parse(data []byte) (map[string]string, error) {
	messages := map[string]string{}
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// normalizeLocale maps "fr_FR" or "fr-FR" to "fr".
func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(locale, "_-."); idx > 0 {
		locale = locale[:idx]
	}
	if locale == "" || locale == "c" || locale == "posix" {
		return DefaultLocale
	}
	return locale
}
