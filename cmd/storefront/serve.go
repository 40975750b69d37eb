package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oriys/storefront/internal/lazyload"
	"github.com/oriys/storefront/internal/logging"
	"github.com/oriys/storefront/internal/observability"
	"github.com/oriys/storefront/internal/web"
)

const purgeInterval = time.Minute

func serveCmd() *cobra.Command {
	var (
		listenAddr string
		logLevel   string
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP server",
		Long:  "Serve the storefront page, the products API, health and Prometheus metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Daemon.HTTPAddr = listenAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Daemon.LogFormat = logFormat
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Observability.Enabled,
				Exporter:    cfg.Observability.Exporter,
				Endpoint:    cfg.Observability.Endpoint,
				ServiceName: cfg.Observability.ServiceName,
				SampleRate:  cfg.Observability.SampleRate,
			}); err != nil {
				logging.Op().Warn("failed to initialize tracing", "error", err)
			}

			handler := &web.Handler{
				Bootstrap:   a.bootstrap,
				Invalidator: a.store,
				Cache:       a.backend,
				Metrics:     a.metrics,
				Shell:       shellData(cfg),
				Viewport:    lazyload.Viewport{Top: 0, Height: cfg.Page.ViewportHeight},
			}
			server := web.NewServer(cfg.Daemon.HTTPAddr, handler.Router())

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logging.Op().Info("storefront started",
					"addr", cfg.Daemon.HTTPAddr,
					"catalog", cfg.Catalog.Endpoint,
					"cache", cfg.Cache.Backend)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("storefront server error: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logging.Op().Info("shutting down storefront")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown storefront: %w", err)
				}
				if err := observability.Shutdown(shutdownCtx); err != nil {
					logging.Op().Warn("tracing shutdown", "error", err)
				}
				return nil
			})
			if a.invalidator != nil {
				g.Go(func() error {
					return a.invalidator.Start(gctx)
				})
			}
			if a.postgres != nil {
				g.Go(func() error {
					purgeLoop(gctx, a)
					return nil
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	return cmd
}

// purgeLoop removes expired rows from the Postgres cache table.
func purgeLoop(ctx context.Context, a *app) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.postgres.PurgeExpired(ctx)
			if err != nil {
				logging.Op().Warn("purge expired cache rows", "error", err)
				continue
			}
			if n > 0 {
				logging.Op().Debug("purged expired cache rows", "count", n)
			}
		}
	}
}
