// Package config provides configuration management for the fact resolver.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the fact resolver configuration.
type Config struct {
	Server       ServerConfig    `yaml:"server"`
	Engine       EngineConfig    `yaml:"engine"`
	Cache        CacheConfig     `yaml:"cache"`
	Logging      LoggingConfig   `yaml:"logging"`
	Audit        AuditConfig     `yaml:"audit"`
	RateLimiting RateLimitConfig `yaml:"rate_limiting"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
}

// EngineConfig represents resolution engine configuration.
type EngineConfig struct {
	// Demos pre-registers the bundled demonstration schemas and resolvers
	// at startup.
	Demos bool `yaml:"demos"`
}

// CacheConfig represents resolver cache configuration.
type CacheConfig struct {
	Type   string            `yaml:"type"` // none, memory, sql, file
	Memory MemoryCacheConfig `yaml:"memory"`
	SQL    SQLCacheConfig    `yaml:"sql"`
	File   FileCacheConfig   `yaml:"file"`
}

// MemoryCacheConfig represents the in-memory cache backend.
type MemoryCacheConfig struct {
	Capacity   int `yaml:"capacity"`
	TTLSeconds int `yaml:"ttl_seconds"`
}

// SQLCacheConfig represents the SQL cache backend.
type SQLCacheConfig struct {
	Driver          string `yaml:"driver"` // sqlite, postgres, mysql
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// FileCacheConfig represents the file cache backend.
type FileCacheConfig struct {
	Dir           string `yaml:"dir"`
	Extension     string `yaml:"extension"`
	MaxTotalBytes int64  `yaml:"max_total_bytes"`
	// Watch enforces the size limit whenever new cache files appear.
	Watch bool `yaml:"watch"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string        `yaml:"level"`
	Format string        `yaml:"format"` // json, text
	File   LogFileConfig `yaml:"file"`
}

// LogFileConfig represents an optional rotating log file sink.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AuditConfig represents audit logging configuration.
type AuditConfig struct {
	Enabled bool         `yaml:"enabled"`
	LogFile string       `yaml:"log_file"`
	Events  []string     `yaml:"events"`
	Syslog  SyslogConfig `yaml:"syslog"`
}

// SyslogConfig represents an optional syslog audit sink.
type SyslogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Network string `yaml:"network"` // udp, tcp; empty for the local socket
	Address string `yaml:"address"`
	Tag     string `yaml:"tag"`
}

// RateLimitConfig represents rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	PerClient         bool `yaml:"per_client"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8085,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Cache: CacheConfig{
			Type: "none",
			Memory: MemoryCacheConfig{
				Capacity:   1024,
				TTLSeconds: 300,
			},
			SQL: SQLCacheConfig{
				Driver: "sqlite",
				DSN:    "file:resolver-cache.db",
			},
			File: FileCacheConfig{
				Dir:           "resolver-cache",
				Extension:     ".json",
				MaxTotalBytes: 10_000_000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimiting: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			PerClient:         true,
		},
	}
}

// Load loads configuration from a YAML file and environment variables.
// Environment variables override file configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file if provided
	if path != "" {
		// #nosec G304 -- path is from command-line argument, user-controlled input is expected
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the config file
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FACT_RESOLVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("FACT_RESOLVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("FACT_RESOLVER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FACT_RESOLVER_DEMOS"); v != "" {
		c.Engine.Demos = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("FACT_RESOLVER_CACHE_TYPE"); v != "" {
		c.Cache.Type = v
	}
	if v := os.Getenv("FACT_RESOLVER_CACHE_SQL_DRIVER"); v != "" {
		c.Cache.SQL.Driver = v
	}
	if v := os.Getenv("FACT_RESOLVER_CACHE_SQL_DSN"); v != "" {
		c.Cache.SQL.DSN = v
	}
	if v := os.Getenv("FACT_RESOLVER_CACHE_FILE_DIR"); v != "" {
		c.Cache.File.Dir = v
	}
	if v := os.Getenv("FACT_RESOLVER_RATE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			c.RateLimiting.RequestsPerMinute = limit
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validCacheTypes := map[string]bool{
		"none":   true,
		"memory": true,
		"sql":    true,
		"file":   true,
	}
	if !validCacheTypes[c.Cache.Type] {
		return fmt.Errorf("invalid cache type: %s", c.Cache.Type)
	}

	if c.Cache.Type == "sql" {
		validDrivers := map[string]bool{
			"sqlite":   true,
			"postgres": true,
			"mysql":    true,
		}
		if !validDrivers[c.Cache.SQL.Driver] {
			return fmt.Errorf("invalid sql cache driver: %s", c.Cache.SQL.Driver)
		}
		if c.Cache.SQL.DSN == "" {
			return fmt.Errorf("sql cache requires a dsn")
		}
	}

	if c.Cache.Type == "file" && c.Cache.File.Dir == "" {
		return fmt.Errorf("file cache requires a directory")
	}

	if c.RateLimiting.Enabled && c.RateLimiting.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", c.RateLimiting.RequestsPerMinute)
	}

	return nil
}

// Address returns the server address string.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
