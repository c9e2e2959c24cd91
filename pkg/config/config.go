// Package config loads the sitemap service configuration from an optional
// YAML file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/catalog-sitemap/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvBackendURL = "SITEMAP_BACKEND_URL"
	EnvBaseURL    = "SITEMAP_BASE_URL"
	EnvPort       = "PORT"
	EnvRedisURL   = "REDIS_URL"
	EnvLogLevel   = "LOG_LEVEL"
	EnvLogPretty  = "LOG_PRETTY"
)

// Config is the complete service configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Sitemap SitemapConfig `yaml:"sitemap"`
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig configures the catalog backend client.
type BackendConfig struct {
	// URL of the catalog backend, e.g. "https://api.example.com/v1"
	URL string `yaml:"url"`

	UserAgent string `yaml:"user_agent"`

	// Timeout bounds each count or listing call
	Timeout time.Duration `yaml:"timeout"`
}

// SitemapConfig configures document generation.
type SitemapConfig struct {
	// BaseURL is the public site URL documents point to
	BaseURL string `yaml:"base_url"`

	ChunkSize     int `yaml:"chunk_size"`
	PageLimit     int `yaml:"page_limit"`
	FallbackCount int `yaml:"fallback_count"`

	// MaxIterations caps full listing walks
	MaxIterations int `yaml:"max_iterations"`

	ItemPathPrefix string   `yaml:"item_path_prefix"`
	StaticRoutes   []string `yaml:"static_routes"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CacheConfig configures the rendered-document cache and cooldown gate.
// Both are disabled when RedisURL is empty.
type CacheConfig struct {
	RedisURL             string        `yaml:"redis_url"`
	MaxAge               time.Duration `yaml:"max_age"`
	StaleWhileRevalidate time.Duration `yaml:"stale_while_revalidate"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the default configuration. Backend and base URLs have no
// default and must be provided.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			UserAgent: "catalog-sitemap/1.0",
			Timeout:   8 * time.Second,
		},
		Sitemap: SitemapConfig{
			ChunkSize:      500,
			PageLimit:      100,
			FallbackCount:  10000,
			MaxIterations:  1000,
			ItemPathPrefix: "/games",
			StaticRoutes:   []string{"/", "/games", "/about"},
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			MaxAge:               time.Hour,
			StaleWhileRevalidate: 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path or a missing file yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvBackendURL); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Sitemap.BaseURL = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Cache.RedisURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvPort, err)
		}
		c.Server.Port = port
	}

	if v := os.Getenv(EnvLogPretty); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvLogPretty, err)
		}
		c.Log.Pretty = pretty
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.ValidateBackend(); err != nil {
		return err
	}
	if err := validateHTTPURL("sitemap base url", c.Sitemap.BaseURL); err != nil {
		return fmt.Errorf("%w (set %s)", err, EnvBaseURL)
	}

	if c.Sitemap.ChunkSize <= 0 {
		return fmt.Errorf("sitemap chunk size must be > 0 (got %d)", c.Sitemap.ChunkSize)
	}
	if c.Sitemap.PageLimit <= 0 {
		return fmt.Errorf("sitemap page limit must be > 0 (got %d)", c.Sitemap.PageLimit)
	}
	if c.Sitemap.FallbackCount < 0 {
		return fmt.Errorf("sitemap fallback count must be >= 0 (got %d)", c.Sitemap.FallbackCount)
	}
	if c.Sitemap.MaxIterations <= 0 {
		return fmt.Errorf("sitemap max iterations must be > 0 (got %d)", c.Sitemap.MaxIterations)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range (got %d)", c.Server.Port)
	}

	if c.Cache.RedisURL != "" {
		if _, err := url.Parse(c.Cache.RedisURL); err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
	}
	if c.Cache.MaxAge < 0 || c.Cache.StaleWhileRevalidate < 0 {
		return fmt.Errorf("cache durations must be >= 0")
	}

	if err := logging.ValidateLevel(logging.LogLevel(c.Log.Level)); err != nil {
		return err
	}

	return nil
}

// ValidateBackend validates only what a backend client needs.
func (c *Config) ValidateBackend() error {
	if err := validateHTTPURL("backend url", c.Backend.URL); err != nil {
		return fmt.Errorf("%w (set %s)", err, EnvBackendURL)
	}
	if c.Backend.UserAgent == "" {
		return fmt.Errorf("backend user agent is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be > 0 (got %s)", c.Backend.Timeout)
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// CacheEnabled reports whether Redis-backed features are configured.
func (c *Config) CacheEnabled() bool {
	return c.Cache.RedisURL != ""
}

func validateHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) url (got %q)", name, raw)
	}
	if u.RawQuery != "" {
		return fmt.Errorf("%s must not carry a query (got %q)", name, raw)
	}
	return nil
}
