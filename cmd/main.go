package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tiertrack/tiertrack/internal/cache"
	"github.com/tiertrack/tiertrack/internal/config"
	"github.com/tiertrack/tiertrack/internal/engine"
	"github.com/tiertrack/tiertrack/internal/history"
	"github.com/tiertrack/tiertrack/internal/logging"
	"github.com/tiertrack/tiertrack/internal/metrics"
	"github.com/tiertrack/tiertrack/internal/server"
	"github.com/tiertrack/tiertrack/internal/tier"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "TIERTRACK", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	registry := buildRegistry(logger.With(slog.String("agent", "cache_factory")), cfg.Server.Cache)

	table, err := tier.LoadTable(cfg.Server.Tiers.TableFile)
	if err != nil {
		logger.Error("tier table load failed", slog.Any("error", err))
		os.Exit(1)
	}

	persister, err := history.NewFilePersister(cfg.Server.History.File, logger)
	if err != nil {
		logger.Error("history persister setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := history.NewStore(history.StoreOptions{
		Table:        table,
		Persister:    persister,
		MaxSnapshots: cfg.Server.History.MaxSnapshots,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("history store setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	eng, err := engine.New(logger, engine.Options{
		Registry: registry,
		Store:    store,
		Metrics:  metricsRecorder,
	})
	if err != nil {
		logger.Error("engine setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := eng.Close(shutdownCtx); err != nil {
			logger.Error("engine shutdown failed", slog.Any("error", err))
		}
	}()

	var tableWatcher *config.TableWatcher
	if cfg.Server.Tiers.Watch && cfg.Server.Tiers.TableFile != "" {
		watcher, err := config.WatchTierTable(ctx, cfg.Server.Tiers, func(table *tier.Table) {
			eng.Reload(table)
		}, func(err error) {
			if err != nil {
				logger.Error("tier table watcher error", slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Error("tier table watcher setup failed", slog.Any("error", err))
		} else {
			tableWatcher = watcher
			defer tableWatcher.Stop()
		}
	}

	handler, err := server.NewHandler(eng, logger)
	if err != nil {
		logger.Error("unable to construct api handler", slog.Any("error", err))
		os.Exit(1)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsRecorder.Handler())
	mux.Handle("/", handler)

	srv, err := server.New(cfg, logger, mux)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// buildRegistry selects the cache backend per configuration, falling back to
// memory when the shared backend is unreachable so the overlay keeps working
// without a cache server.
func buildRegistry(logger *slog.Logger, cfg config.CacheConfig) *cache.Registry {
	identityTTL, profileTTL, listingTTL, err := cfg.TTLs()
	if err != nil {
		// Load already validated the TTLs; this is unreachable in practice.
		log.Fatalf("invalid cache ttls: %v", err)
	}

	opts := cache.RegistryOptions{
		Backend:     cfg.Backend,
		IdentityTTL: identityTTL,
		ProfileTTL:  profileTTL,
		ListingTTL:  listingTTL,
		Valkey: cache.ValkeyConfig{
			Address:  cfg.Valkey.Address,
			Username: cfg.Valkey.Username,
			Password: cfg.Valkey.Password,
			DB:       cfg.Valkey.DB,
			TLS: cache.ValkeyTLSConfig{
				Enabled: cfg.Valkey.TLS.Enabled,
				CAFile:  cfg.Valkey.TLS.CAFile,
			},
		},
	}

	registry, err := cache.NewRegistry(opts)
	if err != nil {
		logger.Error("cache backend initialization failed", slog.Any("error", err))
		logger.Info("falling back to memory cache backend")
		opts.Backend = "memory"
		registry, err = cache.NewRegistry(opts)
		if err != nil {
			log.Fatalf("memory cache fallback failed: %v", err)
		}
		return registry
	}

	if opts.Backend == "valkey" {
		logger.Info("using valkey cache backend", slog.String("address", cfg.Valkey.Address))
	} else {
		logger.Info("using memory cache backend",
			slog.Duration("identity_ttl", identityTTL),
			slog.Duration("profile_ttl", profileTTL),
			slog.Duration("listing_ttl", listingTTL))
	}
	return registry
}
