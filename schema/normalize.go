package schema

import (
	"net/url"
	"slices"
	"strings"
)

// ValidateTabID rejects tab ids the browser never assigns to real tabs.
func ValidateTabID(id TabID) error {
	if id < 0 {
		return ErrInvalidTab
	}
	return nil
}

// AllowedURL reports whether pages at rawURL can be captured.
func AllowedURL(rawURL string, schemes []string) bool {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" {
		return false
	}
	return slices.Contains(schemes, strings.ToLower(parsed.Scheme))
}
