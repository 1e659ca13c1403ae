package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/storefront-analytics/internal/adapter/api"
	"github.com/user/storefront-analytics/internal/adapter/api/middleware"
	"github.com/user/storefront-analytics/internal/adapter/metrics"
	badgerrepo "github.com/user/storefront-analytics/internal/adapter/repository/badger"
	"github.com/user/storefront-analytics/internal/adapter/repository/memory"
	redisrepo "github.com/user/storefront-analytics/internal/adapter/repository/redis"
	"github.com/user/storefront-analytics/internal/domain"
	"github.com/user/storefront-analytics/internal/pkg/config"
	"github.com/user/storefront-analytics/internal/pkg/logger"
	"github.com/user/storefront-analytics/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.New()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize Storage Tiers ---
	hot, cleanup, err := newHotStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize hot store", "backend", cfg.HotStoreBackend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	archive, err := badgerrepo.NewArchiveStore(cfg.ArchivePath, logger)
	if err != nil {
		logger.Error("failed to initialize archive store", "path", cfg.ArchivePath, "error", err)
		os.Exit(1)
	}
	defer archive.Close()

	// --- Initialize Use Cases ---
	tracker := usecase.NewTrackEventUseCase(hot, logger, cfg.StoreTimeout)
	scorer := usecase.NewLeadScoreUseCase(hot, logger, cfg.StoreTimeout, m)
	flusher := usecase.NewFlushEventsUseCase(hot, archive, logger, cfg.StoreTimeout)

	// --- Start Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.Handle("/", api.NewAdminRouter(flusher, m, logger))

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminMux,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Initialize Tracking Server ---
	router := api.NewRouter(cfg, logger, tracker, scorer, m)
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      middleware.Logging(logger)(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting tracking server", "addr", server.Addr, "backend", cfg.HotStoreBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("tracking server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracking server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}

// newHotStore builds the configured hot-tier backend. The returned
// cleanup func releases whatever the backend holds open.
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
