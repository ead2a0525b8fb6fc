package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8085 {
		t.Errorf("expected default port 8085, got %d", cfg.Server.Port)
	}
	if cfg.Cache.Type != "none" {
		t.Errorf("expected no cache by default, got %s", cfg.Cache.Type)
	}
	if cfg.RateLimiting.RequestsPerMinute != 60 {
		t.Errorf("expected 60 requests per minute, got %d", cfg.RateLimiting.RequestsPerMinute)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
engine:
  demos: true
cache:
  type: sql
  sql:
    driver: sqlite
    dsn: "file:test.db"
rate_limiting:
  enabled: true
  requests_per_minute: 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Engine.Demos {
		t.Error("expected demos enabled")
	}
	if cfg.Cache.Type != "sql" || cfg.Cache.SQL.DSN != "file:test.db" {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.RateLimiting.RequestsPerMinute != 10 {
		t.Errorf("expected limit 10, got %d", cfg.RateLimiting.RequestsPerMinute)
	}
}

func TestLoad_EnvExpansionAndOverrides(t *testing.T) {
	t.Setenv("TEST_CACHE_DIR", "/tmp/expanded")
	t.Setenv("FACT_RESOLVER_PORT", "7070")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
cache:
  type: file
  file:
    dir: "${TEST_CACHE_DIR}"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Cache.File.Dir != "/tmp/expanded" {
		t.Errorf("expected env expansion, got %q", cfg.Cache.File.Dir)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected env override port 7070, got %d", cfg.Server.Port)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad cache type", func(c *Config) { c.Cache.Type = "redis" }},
		{"bad sql driver", func(c *Config) { c.Cache.Type = "sql"; c.Cache.SQL.Driver = "oracle" }},
		{"sql without dsn", func(c *Config) { c.Cache.Type = "sql"; c.Cache.SQL.DSN = "" }},
		{"file without dir", func(c *Config) { c.Cache.Type = "file"; c.Cache.File.Dir = "" }},
		{"bad rate limit", func(c *Config) { c.RateLimiting.Enabled = true; c.RateLimiting.RequestsPerMinute = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8085
	if got := cfg.Address(); got != "127.0.0.1:8085" {
		t.Errorf("unexpected address %q", got)
	}
}
