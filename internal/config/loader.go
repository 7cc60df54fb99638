package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when the file does not exist), then environment variables. The
// file path itself can come from CONFIG_FILE when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// applyEnv overlays environment variables, the highest-priority layer.
func applyEnv(cfg *Config) {
	setString((*string)(&cfg.Environment), "APP_ENV")

	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setDuration(&cfg.Server.RequestTimeout, "SERVER_REQUEST_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitTrim(v)
	}

	setString(&cfg.Supabase.URL, "SUPABASE_URL")
	setString(&cfg.Supabase.ServiceRoleKey, "SUPABASE_SERVICE_ROLE_KEY")
	setString(&cfg.Supabase.Schema, "SUPABASE_SCHEMA")

	setDuration(&cfg.Cache.ListTTL, "CACHE_LIST_TTL")
	setDuration(&cfg.Cache.DetailTTL, "CACHE_DETAIL_TTL")
	setDuration(&cfg.Cache.FilterOptionsTTL, "CACHE_FILTER_OPTIONS_TTL")
	setDuration(&cfg.Cache.CleanupInterval, "CACHE_CLEANUP_INTERVAL")
	setInt(&cfg.Cache.MaxEntries, "CACHE_MAX_ENTRIES")

	setInt(&cfg.Limits.MaxBatch, "MAX_BATCH")

	setInt(&cfg.Audit.QueueSize, "AUDIT_QUEUE_SIZE")
	setDuration(&cfg.Audit.Retention, "AUDIT_RETENTION")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		cfg.Logging.Development = v == "true"
	}
}

func setString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func setDuration(target *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

func splitTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
