package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAPIBase           = "http://media.plusp.lu"
	defaultListenAddr        = "127.0.0.1:8080"
	defaultRefreshDebounceMS = 500
	defaultSiteTitle         = "Team++"
	defaultLanguage          = "de-DE"
	defaultTimezone          = "Europe/Berlin"
)

// APIBase returns the media API base URL.
func APIBase() string {
	if value := strings.TrimSpace(os.Getenv("EPISODES_API_BASE")); value != "" {
		return value
	}
	return defaultAPIBase
}

// ResolveCacheDir returns the directory holding the episode snapshot.
// The directory is created when it does not yet exist.
func ResolveCacheDir() (string, error) {
	dir := strings.TrimSpace(os.Getenv("EPISODES_CACHE_DIR"))
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(cwd, "cache")
	}

	abs, err := expandPath(dir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

// CacheWrite reports whether fetched snapshots should be written to disk.
func CacheWrite() bool {
	value := strings.TrimSpace(os.Getenv("EPISODES_CACHE_WRITE"))
	if value == "" {
		return true
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return true
	}
	return enabled
}

// ResolveMediaDir returns the optional local mirror of episode audio. The
// second return value is false when none is configured.
func ResolveMediaDir() (string, bool, error) {
	dir := strings.TrimSpace(os.Getenv("EPISODES_MEDIA_DIR"))
	if dir == "" {
		return "", false, nil
	}

	abs, err := expandPath(dir)
	if err != nil {
		return "", false, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", false, err
	}
	if !info.IsDir() {
		return "", false, fmt.Errorf("media dir %s is not a directory", abs)
	}
	return abs, true, nil
}

// ListenAddr returns the TCP address the HTTP server should bind to.
func ListenAddr() string {
	addr := strings.TrimSpace(os.Getenv("EPISODES_LISTEN_ADDR"))
	if addr == "" {
		return defaultListenAddr
	}
	return addr
}

// RefreshDebounce returns how long to wait after a file change before
// reloading the episode cache or token file.
func RefreshDebounce() time.Duration {
	value := strings.TrimSpace(os.Getenv("EPISODES_REFRESH_DEBOUNCE_MS"))
	if value == "" {
		return time.Duration(defaultRefreshDebounceMS) * time.Millisecond
	}

	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return time.Duration(defaultRefreshDebounceMS) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

// ValidateListenAddr ensures the configured listen address is restricted to localhost.
func ValidateListenAddr(addr string) error {
	addr = strings.TrimSpace(strings.ToLower(addr))
	if strings.HasPrefix(addr, "127.0.0.1:") || strings.HasPrefix(addr, "localhost:") || strings.HasPrefix(addr, "[::1]:") {
		return nil
	}
	return errors.New("listen address must bind to localhost for security")
}

// ResolveTokenFile returns the absolute path to the API token file when configured.
// The file is created if it does not already exist. When no file is configured the
// second return value will be false.
func ResolveTokenFile() (string, bool, error) {
	path := strings.TrimSpace(os.Getenv("EPISODES_TOKEN_FILE"))
	if path == "" {
		return "", false, nil
	}

	abs, err := expandPath(path)
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", false, err
	}

	if _, err := os.Stat(abs); err != nil {
		if !os.IsNotExist(err) {
			return "", false, err
		}
		file, err := os.OpenFile(abs, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return "", false, err
		}
		if err := file.Close(); err != nil {
			return "", false, err
		}
	}

	return abs, true, nil
}

// Site describes the site the episodes are published on.
type Site struct {
	Title     string
	Subdomain string
	Language  string
	Timezone  string
}

// Location loads the site's display time zone.
func (s Site) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

type siteYAML struct {
	Title     string `yaml:"title"`
	Subdomain string `yaml:"subdomain"`
	Language  string `yaml:"language"`
	Timezone  string `yaml:"timezone"`
}

// ResolveSite returns the site settings after applying defaults, the YAML
// file named by EPISODES_SITE_CONFIG (when set), and environment overrides.
// A subdomain is required.
func ResolveSite() (Site, error) {
	site := Site{
		Title:    defaultSiteTitle,
		Language: defaultLanguage,
		Timezone: defaultTimezone,
	}

	if configPath := strings.TrimSpace(os.Getenv("EPISODES_SITE_CONFIG")); configPath != "" {
		resolved, err := expandPath(configPath)
		if err != nil {
			return Site{}, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return Site{}, err
		}
		var fromFile siteYAML
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return Site{}, fmt.Errorf("parse %s: %w", resolved, err)
		}
		override(&site.Title, fromFile.Title)
		override(&site.Subdomain, fromFile.Subdomain)
		override(&site.Language, fromFile.Language)
		override(&site.Timezone, fromFile.Timezone)
	}

	override(&site.Title, os.Getenv("EPISODES_SITE_TITLE"))
	override(&site.Subdomain, os.Getenv("EPISODES_SUBDOMAIN"))
	override(&site.Language, os.Getenv("EPISODES_LANGUAGE"))
	override(&site.Timezone, os.Getenv("EPISODES_TIMEZONE"))

	if site.Subdomain == "" {
		return Site{}, errors.New("site subdomain is not configured (set EPISODES_SUBDOMAIN or subdomain in the site config)")
	}
	return site, nil
}

func override(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Abs(path)
}
