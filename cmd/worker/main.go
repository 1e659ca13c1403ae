package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/storefront-analytics/internal/adapter/metrics"
	badgerrepo "github.com/user/storefront-analytics/internal/adapter/repository/badger"
	"github.com/user/storefront-analytics/internal/adapter/repository/memory"
	"github.com/user/storefront-analytics/internal/adapter/repository/postgres"
	redisrepo "github.com/user/storefront-analytics/internal/adapter/repository/redis"
	"github.com/user/storefront-analytics/internal/domain"
	"github.com/user/storefront-analytics/internal/pkg/config"
	"github.com/user/storefront-analytics/internal/pkg/logger"
	"github.com/user/storefront-analytics/internal/usecase"
	"github.com/user/storefront-analytics/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting analytics worker")

	m := metrics.New()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: metricsMux,
	}
	go func() {
		log.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()
	defer metricsServer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Hot Store ---
	hot, cleanup, err := newHotStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize hot store", "backend", cfg.HotStoreBackend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// --- Archive Store ---
	archive, err := badgerrepo.NewArchiveStore(cfg.ArchivePath, log)
	if err != nil {
		log.Error("failed to initialize archive store", "path", cfg.ArchivePath, "error", err)
		os.Exit(1)
	}
	defer archive.Close()

	// --- Use Cases ---
	tracker := usecase.NewTrackEventUseCase(hot, log, cfg.StoreTimeout)
	flusher := usecase.NewFlushEventsUseCase(hot, archive, log, cfg.StoreTimeout)
	scorer := usecase.NewLeadScoreUseCase(hot, log, cfg.StoreTimeout, m)

	runner := worker.NewRunner(log)
	runner.Add("flush", cfg.FlushInterval, func(ctx context.Context) {
		if n := flusher.FlushAll(ctx); n > 0 {
			log.Info("flushed events to archive", "count", n)
		}
	})
	runner.Add("lead_scoring", cfg.ScoreInterval, func(ctx context.Context) {
		if n := scorer.ScoreAll(ctx); n > 0 {
			log.Info("recomputed lead scores", "sessions", n)
		}
	})

	// The abandoned-cart scan needs the storefront's cart database;
	// without POSTGRES_URL the worker runs flush and scoring only.
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("failed to open postgres connection", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		log.Info("connected to postgres, abandoned-cart scan enabled")

		cartRepo := postgres.NewCartRepository(db, log)
		carts := usecase.NewAbandonedCartsUseCase(cartRepo, tracker, log, cfg.CartAbandonThreshold, m)

		runner.Add("abandoned_carts", cfg.CartScanInterval, func(ctx context.Context) {
			storeIDs, err := hot.StoreIDs(ctx)
			if err != nil {
				log.Error("failed to list stores for cart scan", "error", err)
				return
			}
			if n := carts.RunAll(ctx, storeIDs); n > 0 {
				log.Info("emitted abandoned-cart events", "count", n)
			}
		})
	} else {
		log.Info("POSTGRES_URL not set, abandoned-cart scan disabled")
	}

	runner.Run(ctx)
	log.Info("worker shut down gracefully")
}

func newHotStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.AggregateStore, func(), error) {
	switch cfg.HotStoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		store, err := redisrepo.NewStore(client, cfg.HotRetention, redisrepo.VisitorCountMode(cfg.VisitorCountMode), log)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, func() { client.Close() }, nil
	default:
		store := memory.NewStore(cfg.HotRetention, cfg.HotMaxEntries, log)
		return store, func() { store.Close() }, nil
	}
}
