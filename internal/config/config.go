package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"

	"github.com/cwygoda/feedgrab/internal/domain"
)

//go:embed default_config.toml
var defaultConfig []byte

// CategoryConfig selects one feed category and how many posts to fetch.
type CategoryConfig struct {
	Name  string `toml:"name"`
	Limit int    `toml:"limit"`
}

// Config holds application configuration.
type Config struct {
	BaseURL      string           `toml:"base_url"`
	AppToken     string           `toml:"app_token"`
	AccessToken  string           `toml:"access_token"`
	UserAgent    string           `toml:"user_agent"`
	Dir          string           `toml:"dir"`
	DBPath       string           `toml:"db_path"`
	PageLimit    int              `toml:"page_limit"`
	MaxRedirects int              `toml:"max_redirects"`
	Workers      int              `toml:"workers"`
	Timeout      time.Duration    `toml:"timeout"`
	Interval     time.Duration    `toml:"interval"`
	LogLevel     string           `toml:"log_level"`
	Categories   []CategoryConfig `toml:"category"`
}

// DefaultConfigPath returns the config file location under XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "feedgrab", "config.toml")
}

// DefaultDBPath returns the default run history path under XDG_CACHE_HOME.
func DefaultDBPath() string {
	return filepath.Join(xdg.CacheHome, "feedgrab", "runs.db")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if _, err := toml.Decode(string(defaultConfig), cfg); err != nil {
		panic(fmt.Sprintf("embedded config: %v", err))
	}
	cfg.DBPath = DefaultDBPath()
	return cfg
}

// Load reads the TOML file at path over the defaults and applies
// environment overrides. An empty path means DefaultConfigPath; a missing
// file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	cfg := Default()
	// A [[category]] list in the file replaces the defaults wholesale.
	defaultCategories := cfg.Categories
	cfg.Categories = nil
	md, err := toml.DecodeFile(path, cfg)
	if !md.IsDefined("category") {
		cfg.Categories = defaultCategories
	}
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
		}
	}

	cfg.DBPath = ExpandPath(cfg.DBPath)
	cfg.Dir = ExpandPath(cfg.Dir)
	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyEnv overrides cfg from FEEDGRAB_* environment variables.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("FEEDGRAB_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("FEEDGRAB_APP_TOKEN"); v != "" {
		cfg.AppToken = v
	}
	if v := os.Getenv("FEEDGRAB_ACCESS_TOKEN"); v != "" {
		cfg.AccessToken = v
	}
	if v := os.Getenv("FEEDGRAB_DIR"); v != "" {
		cfg.Dir = ExpandPath(v)
	}
	if v := os.Getenv("FEEDGRAB_DB"); v != "" {
		cfg.DBPath = ExpandPath(v)
	}
	if v := os.Getenv("FEEDGRAB_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("FEEDGRAB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// WriteDefault writes the built-in configuration file to path. It refuses
// to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, defaultConfig, 0o600)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// Validate checks that cfg is usable for a sync.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url: scheme must be http or https, got %q", u.Scheme)
	}
	if c.AppToken == "" {
		return errors.New("app_token is required")
	}
	if c.AccessToken == "" {
		return errors.New("access_token is required")
	}
	if c.Dir == "" {
		return errors.New("dir is required")
	}
	if c.PageLimit < 1 {
		return fmt.Errorf("page_limit must be at least 1, got %d", c.PageLimit)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("max_redirects must not be negative, got %d", c.MaxRedirects)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if len(c.Categories) == 0 {
		return domain.ErrNoCategories
	}

	seen := make(map[string]bool)
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category %d: name is required", i)
		}
		if strings.ContainsAny(cat.Name, `/\`) {
			return fmt.Errorf("category %q: name must not contain a path separator", cat.Name)
		}
		if cat.Limit < 1 {
			return fmt.Errorf("category %q: limit must be at least 1", cat.Name)
		}
		if seen[cat.Name] {
			return fmt.Errorf("category %q: listed twice", cat.Name)
		}
		seen[cat.Name] = true
	}
	return nil
}

// DomainCategories converts the configured categories.
func (c *Config) DomainCategories() []domain.Category {
	out := make([]domain.Category, len(c.Categories))
	for i, cat := range c.Categories {
		out[i] = domain.Category{Name: cat.Name, Limit: cat.Limit}
	}
	return out
}
