package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheetshare/internal/config"
	"github.com/JonMunkholm/sheetshare/internal/core"
	"github.com/JonMunkholm/sheetshare/internal/logging"
	"github.com/JonMunkholm/sheetshare/internal/store/memstore"
	"github.com/JonMunkholm/sheetshare/internal/store/pgstore"
	"github.com/JonMunkholm/sheetshare/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	keys, err := cfg.Security.ParseAPIKeys()
	if err != nil {
		slog.Error("invalid API keys", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_driver", cfg.Store.Driver,
		"commit_limit", cfg.Publish.CommitLimit,
		"publish_max_concurrent", cfg.Publish.MaxConcurrent,
		"require_api_key", cfg.Security.RequireAPIKey,
		"api_keys", len(keys),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	service := core.NewService(store, core.ServiceOptions{
		CommitLimit:            cfg.Publish.CommitLimit,
		MaxFileSize:            cfg.Upload.MaxFileSize,
		MaxConcurrentPublishes: cfg.Publish.MaxConcurrent,
		MaxWaitTime:            cfg.Publish.MaxWaitTime,
		ViewPageSize:           cfg.View.PageSize,
		PreviewPageSize:        cfg.View.PreviewPageSize,
	})

	server := web.NewServer(service, cfg, keys)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Publishes run detached from requests; let them finish.
		status := service.Limiter().Status()
		if status.Active > 0 {
			slog.Info("waiting for publishes to complete", "active", status.Active)
			if err := service.WaitForPublishes(shutdownCtx); err != nil {
				slog.Warn("publishes did not complete in time", "error", err)
			} else {
				slog.Info("all publishes completed")
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "error", err)
		closeStore()
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore connects the configured document store. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	if cfg.Store.Driver == config.DriverMemory {
		slog.Warn("using in-memory store; published datasets are lost on restart")
		return memstore.New(cfg.Store.MaxBatchSize), func() {}, nil
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if cfg.Store.Migrate {
		if err := pgstore.Migrate(pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("migrations applied")
	}

	return pgstore.New(pool, cfg.Store.MaxBatchSize), pool.Close, nil
}
