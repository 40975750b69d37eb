package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CatalogConfig holds the remote catalog endpoint settings.
type CatalogConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CacheConfig selects and tunes the product cache backend.
type CacheConfig struct {
	Backend string        `yaml:"backend"` // memory, redis, postgres, tiered-redis, tiered-postgres
	TTL     time.Duration `yaml:"ttl"`
	L1TTL   time.Duration `yaml:"l1_ttl"`
	Key     string        `yaml:"key"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// PageConfig tunes product rendering and the lazy image layout.
type PageConfig struct {
	EagerImages    int `yaml:"eager_images"`
	Columns        int `yaml:"columns"`
	CardHeight     int `yaml:"card_height"`
	Gap            int `yaml:"gap"`
	GridTop        int `yaml:"grid_top"`
	ViewportHeight int `yaml:"viewport_height"`
}

// NoticeConfig holds the notice bar content.
type NoticeConfig struct {
	Country string `yaml:"country"`
	VAT     int    `yaml:"vat"`
}

// DaemonConfig holds daemon-specific settings.
type DaemonConfig struct {
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	PageLog   string `yaml:"page_log"`
}

// ObservabilityConfig configures tracing.
type ObservabilityConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Config is the central configuration struct embedding all component configs.
type Config struct {
	Catalog       CatalogConfig       `yaml:"catalog"`
	Cache         CacheConfig         `yaml:"cache"`
	Redis         RedisConfig         `yaml:"redis"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Page          PageConfig          `yaml:"page"`
	Notice        NoticeConfig        `yaml:"notice"`
	Daemon        DaemonConfig        `yaml:"daemon"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Endpoint: "https://fakestoreapi.com/products",
			Timeout:  5 * time.Second,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     5 * time.Minute,
			L1TTL:   10 * time.Second,
			Key:     "products_cache",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Page: PageConfig{
			EagerImages:    3,
			Columns:        3,
			CardHeight:     420,
			Gap:            24,
			GridTop:        160,
			ViewportHeight: 900,
		},
		Notice: NoticeConfig{
			Country: "France",
			VAT:     20,
		},
		Daemon: DaemonConfig{
			HTTPAddr:  ":8080",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Observability: ObservabilityConfig{
			Enabled:     false,
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			ServiceName: "storefront",
			SampleRate:  1.0,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies STOREFRONT_* environment overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STOREFRONT_CATALOG_ENDPOINT"); v != "" {
		cfg.Catalog.Endpoint = v
	}
	if v := os.Getenv("STOREFRONT_CATALOG_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Catalog.Timeout = d
		}
	}
	if v := os.Getenv("STOREFRONT_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("STOREFRONT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("STOREFRONT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("STOREFRONT_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("STOREFRONT_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("STOREFRONT_NOTICE_COUNTRY"); v != "" {
		cfg.Notice.Country = v
	}
	if v := os.Getenv("STOREFRONT_NOTICE_VAT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Notice.VAT = n
		}
	}
	if v := os.Getenv("STOREFRONT_HTTP_ADDR"); v != "" {
		cfg.Daemon.HTTPAddr = v
	}
	if v := os.Getenv("STOREFRONT_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}
	if v := os.Getenv("STOREFRONT_LOG_FORMAT"); v != "" {
		cfg.Daemon.LogFormat = v
	}
	if v := os.Getenv("STOREFRONT_OTEL_ENDPOINT"); v != "" {
		cfg.Observability.Enabled = true
		cfg.Observability.Endpoint = v
	}
}

// Validate reports configuration values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Catalog.Endpoint == "" {
		return fmt.Errorf("catalog endpoint is required")
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if c.Page.EagerImages < 0 {
		return fmt.Errorf("page eager_images must not be negative")
	}
	if c.Page.Gap < 0 {
		return fmt.Errorf("page gap must not be negative")
	}
	if c.Page.Columns <= 0 {
		return fmt.Errorf("page columns must be positive")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "tiered-redis":
	case "postgres", "tiered-postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("cache backend %s requires postgres dsn", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}
	return nil
}
