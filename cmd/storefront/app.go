package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/oriys/storefront/internal/cache"
	"github.com/oriys/storefront/internal/catalog"
	"github.com/oriys/storefront/internal/config"
	"github.com/oriys/storefront/internal/lazyload"
	"github.com/oriys/storefront/internal/logging"
	"github.com/oriys/storefront/internal/metrics"
	"github.com/oriys/storefront/internal/noticebar"
	"github.com/oriys/storefront/internal/productcache"
	"github.com/oriys/storefront/internal/storefront"
	"github.com/oriys/storefront/internal/web"
)

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app holds everything a page load needs, built from config.
type app struct {
	cfg         *config.Config
	metrics     *metrics.Metrics
	backend     cache.Cache
	store       *productcache.Store
	invalidator *cache.Invalidator    // tiered-redis only
	postgres    *cache.PostgresCache // postgres backends only
	pageLog     *logging.PageLogger
	bootstrap   *storefront.Bootstrap
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	pageLog, err := logging.Setup(logging.Options{
		Format:      cfg.Daemon.LogFormat,
		Level:       cfg.Daemon.LogLevel,
		Service:     cfg.Observability.ServiceName,
		PageConsole: os.Stderr,
		PageFile:    cfg.Daemon.PageLog,
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	a := &app{
		cfg:     cfg,
		metrics: metrics.New("storefront", nil),
		pageLog: pageLog,
	}

	if err := a.buildBackend(ctx); err != nil {
		a.Close()
		return nil, err
	}

	opts := productcache.Options{
		Key:     cfg.Cache.Key,
		TTL:     cfg.Cache.TTL,
		Metrics: a.metrics,
	}
	if a.invalidator != nil {
		opts.Publisher = a.invalidator
	}
	a.store = productcache.New(a.backend, opts)

	client, err := catalog.New(catalog.Config{
		Endpoint: cfg.Catalog.Endpoint,
		Timeout:  cfg.Catalog.Timeout,
		Metrics:  a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.bootstrap, err = storefront.New(storefront.Options{
		Cache:       a.store,
		Fetcher:     catalog.NewSharedFetcher(client),
		EagerImages: cfg.Page.EagerImages,
		Layout:      gridLayout(cfg),
		Notice:      noticebar.Notice{Country: cfg.Notice.Country, VAT: cfg.Notice.VAT},
		Metrics:     a.metrics,
		PageLog:     a.pageLog,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// gridLayout is the card geometry shared by the lazy loader and the page CSS.
func gridLayout(cfg *config.Config) lazyload.GridLayout {
	return lazyload.GridLayout{
		Top:        cfg.Page.GridTop,
		Columns:    cfg.Page.Columns,
		CardHeight: cfg.Page.CardHeight,
		Gap:        cfg.Page.Gap,
	}
}

func shellData(cfg *config.Config) web.ShellData {
	return web.NewShellData("Storefront", gridLayout(cfg))
}

func (a *app) buildBackend(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.Cache.Backend {
	case "", "memory":
		a.backend = cache.NewInMemoryCache(cache.DefaultSweepInterval)

	case "redis", "tiered-redis":
		rc := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			rc.Close()
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		if cfg.Cache.Backend == "redis" {
			a.backend = rc
			break
		}
		l1 := cache.NewInMemoryCache(cache.DefaultSweepInterval)
		a.backend = cache.NewTieredCache(l1, rc, cfg.Cache.L1TTL)
		a.invalidator = cache.NewInvalidator(l1, rc.Client())

	case "postgres", "tiered-postgres":
		pg, err := cache.NewPostgresCache(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		a.postgres = pg
		if cfg.Cache.Backend == "postgres" {
			a.backend = pg
			break
		}
		a.backend = cache.NewTieredCache(cache.NewInMemoryCache(cache.DefaultSweepInterval), pg, cfg.Cache.L1TTL)

	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	logging.Op().Info("product cache ready", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL)
	return nil
}

func (a *app) Close() {
	if a.invalidator != nil {
		a.invalidator.Close()
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			logging.Op().Warn("close cache backend", "error", err)
		}
	}
	a.pageLog.Close()
}
