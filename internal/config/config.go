// Package config loads the service configuration from layered sources:
// built-in defaults, an optional YAML file, then environment variables.
// Cache and limit tunables can be hot-reloaded in development.
package config

import (
	"fmt"
	"time"
)

// Environment is the deployment environment name.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete service configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Server   Server   `yaml:"server"`
	Supabase Supabase `yaml:"supabase"`
	Cache    Cache    `yaml:"cache"`
	Limits   Limits   `yaml:"limits"`
	Audit    Audit    `yaml:"audit"`
	Logging  Logging  `yaml:"logging"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Supabase holds the PostgREST connection settings. When URL is empty the
// service falls back to the in-memory data client (development mode).
type Supabase struct {
	URL            string `yaml:"url"`
	ServiceRoleKey string `yaml:"service_role_key"`
	Schema         string `yaml:"schema"`
}

// Cache holds the per-family TTLs and the store's sweep tuning.
type Cache struct {
	ListTTL          time.Duration `yaml:"list_ttl"`
	DetailTTL        time.Duration `yaml:"detail_ttl"`
	FilterOptionsTTL time.Duration `yaml:"filter_options_ttl"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	MaxEntries       int           `yaml:"max_entries"`
}

// Limits bounds client-controlled batch sizes.
type Limits struct {
	MaxBatch int `yaml:"max_batch"`
}

// Audit tunes the fire-and-forget audit writer.
type Audit struct {
	QueueSize int           `yaml:"queue_size"`
	Retention time.Duration `yaml:"retention"`
}

// Logging selects the zap preset.
type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration, the lowest layer of the
// loading hierarchy.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 20 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Supabase: Supabase{
			Schema: "public",
		},
		Cache: Cache{
			ListTTL:          5 * time.Minute,
			DetailTTL:        2 * time.Minute,
			FilterOptionsTTL: 5 * time.Minute,
			CleanupInterval:  time.Minute,
			MaxEntries:       10000,
		},
		Limits: Limits{
			MaxBatch: 100,
		},
		Audit: Audit{
			QueueSize: 256,
			Retention: 90 * 24 * time.Hour,
		},
		Logging: Logging{
			Level:       "info",
			Development: true,
		},
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Cache.ListTTL <= 0 || c.Cache.DetailTTL <= 0 || c.Cache.FilterOptionsTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Cache.CleanupInterval <= 0 {
		return fmt.Errorf("cache.cleanup_interval must be positive")
	}
	if c.Limits.MaxBatch <= 0 {
		return fmt.Errorf("limits.max_batch must be positive")
	}
	if c.Audit.QueueSize <= 0 {
		return fmt.Errorf("audit.queue_size must be positive")
	}
	if c.Environment == Production {
		if c.Supabase.URL == "" {
			return fmt.Errorf("supabase.url is required in production")
		}
		if c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("supabase.service_role_key is required in production")
		}
	}
	return nil
}
