package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Catalog.Timeout != 5*time.Second {
		t.Fatalf("expected 5s catalog timeout, got %v", cfg.Catalog.Timeout)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Fatalf("expected 5m cache TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.Key != "products_cache" {
		t.Fatalf("unexpected cache key %q", cfg.Cache.Key)
	}
	if cfg.Page.EagerImages != 3 {
		t.Fatalf("expected 3 eager images, got %d", cfg.Page.EagerImages)
	}
	if cfg.Page.Gap != 24 {
		t.Fatalf("expected 24px grid gap, got %d", cfg.Page.Gap)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	data := []byte(`
catalog:
  endpoint: http://catalog.internal/products
  timeout: 2s
cache:
  backend: redis
notice:
  country: Germany
  vat: 19
page:
  gap: 12
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Catalog.Endpoint != "http://catalog.internal/products" || cfg.Catalog.Timeout != 2*time.Second {
		t.Fatalf("unexpected catalog config: %+v", cfg.Catalog)
	}
	if cfg.Cache.Backend != "redis" {
		t.Fatalf("unexpected backend %q", cfg.Cache.Backend)
	}
	// Untouched sections keep their defaults.
	if cfg.Cache.TTL != 5*time.Minute {
		t.Fatalf("expected default TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Page.Gap != 12 || cfg.Page.CardHeight != 420 {
		t.Fatalf("unexpected page config: %+v", cfg.Page)
	}
	if cfg.Notice.Country != "Germany" || cfg.Notice.VAT != 19 {
		t.Fatalf("unexpected notice config: %+v", cfg.Notice)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STOREFRONT_CATALOG_ENDPOINT", "http://localhost:9999/products")
	t.Setenv("STOREFRONT_CATALOG_TIMEOUT", "750ms")
	t.Setenv("STOREFRONT_CACHE_BACKEND", "tiered-redis")
	t.Setenv("STOREFRONT_NOTICE_VAT", "21")
	t.Setenv("STOREFRONT_CACHE_TTL", "not-a-duration")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Catalog.Endpoint != "http://localhost:9999/products" {
		t.Fatalf("endpoint override not applied: %q", cfg.Catalog.Endpoint)
	}
	if cfg.Catalog.Timeout != 750*time.Millisecond {
		t.Fatalf("timeout override not applied: %v", cfg.Catalog.Timeout)
	}
	if cfg.Cache.Backend != "tiered-redis" {
		t.Fatalf("backend override not applied: %q", cfg.Cache.Backend)
	}
	if cfg.Notice.VAT != 21 {
		t.Fatalf("vat override not applied: %d", cfg.Notice.VAT)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Fatalf("invalid TTL override should be ignored, got %v", cfg.Cache.TTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty endpoint", func(c *Config) { c.Catalog.Endpoint = "" }},
		{"zero timeout", func(c *Config) { c.Catalog.Timeout = 0 }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"postgres without dsn", func(c *Config) { c.Cache.Backend = "postgres" }},
		{"zero columns", func(c *Config) { c.Page.Columns = 0 }},
		{"negative gap", func(c *Config) { c.Page.Gap = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
