// Package config loads vellum's static TOML configuration file (spec.md
// §6): state_dir, cache_dir, hostname, and the sync sub-table. Defaults
// are applied first, then overridden field-by-field by whatever the file
// sets, mirroring the teacher's config.Bootstrap/DefaultConfig
// defaults-then-override shape (the teacher's version bootstraps a
// CRUD store; vellum's is a single static file, so the "override" step
// is a TOML decode rather than a sequence of Put calls).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vellum/internal/layout"
)

// Sync holds the sync.* sub-table.
type Sync struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	SSHKey   string `toml:"ssh_key"`
	Interval string `toml:"interval"`
	Path     string `toml:"path"`
}

// Config is vellum's static configuration.
type Config struct {
	StateDir string `toml:"state_dir"`
	CacheDir string `toml:"cache_dir"`
	Hostname string `toml:"hostname"`
	Sync     Sync   `toml:"sync"`
}

// EnvPath names the environment variable that overrides the default
// config file path.
const EnvPath = "VELLUM_CONFIG"

// Default returns the built-in defaults: sync disabled, a local state
// directory, the machine's hostname, and a 15-minute sync interval (used
// only once sync is enabled).
func Default() Config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	stateDir := ""
	if dir, err := layout.Default(); err == nil {
		stateDir = dir.Root()
	}

	cacheDir := ""
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "vellum")
	}

	return Config{
		StateDir: stateDir,
		CacheDir: cacheDir,
		Hostname: hostname,
		Sync: Sync{
			Enabled:  false,
			Interval: "15m",
			Path:     "sync",
		},
	}
}

// DefaultPath returns the config file location used when VELLUM_CONFIG
// is unset: $XDG_CONFIG_HOME/vellum/config.toml, falling back to
// os.UserConfigDir().
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vellum", "config.toml"), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine config directory: %w", err)
	}
	return filepath.Join(base, "vellum", "config.toml"), nil
}

// Resolve decides which path to load: VELLUM_CONFIG if set, else
// DefaultPath().
func Resolve() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	return DefaultPath()
}

// Load reads and decodes the TOML file at path over top of Default(). A
// missing file is not an error: it yields the defaults unchanged, since a
// fresh install has no config file yet.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SyncInterval parses Sync.Interval as a duration. An empty string or a
// non-positive duration both mean "no background sync loop".
func (c Config) SyncInterval() (time.Duration, error) {
	if c.Sync.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Sync.Interval)
	if err != nil {
		return 0, fmt.Errorf("parse sync.interval %q: %w", c.Sync.Interval, err)
	}
	return d, nil
}

// SyncRoot returns the absolute directory the sync backend operates on:
// Sync.Path resolved relative to StateDir, per spec.md §6.
func (c Config) SyncRoot() string {
	if filepath.IsAbs(c.Sync.Path) {
		return c.Sync.Path
	}
	return filepath.Join(c.StateDir, c.Sync.Path)
}
