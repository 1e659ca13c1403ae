package api

import (
	"log/slog"
	"net/http"

	"github.com/user/storefront-analytics/internal/adapter/api/handler"
	"github.com/user/storefront-analytics/internal/adapter/api/middleware"
	"github.com/user/storefront-analytics/internal/adapter/metrics"
	"github.com/user/storefront-analytics/internal/pkg/config"
	"github.com/user/storefront-analytics/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the
// tracking and query API.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	tracker *usecase.TrackEventUseCase,
	scorer *usecase.LeadScoreUseCase,
	m *metrics.Metrics,
) http.Handler {
	mux := http.NewServeMux()

	trackHandler := handler.NewTrackHandler(tracker, logger, m, cfg.MaxEventSize)
	statsHandler := handler.NewStatsHandler(tracker, scorer, logger)

	rateLimit := middleware.RateLimit(cfg.IngestRateLimit, cfg.IngestRateBurst, m)

	mux.Handle("POST /events", rateLimit(trackHandler))

	mux.HandleFunc("GET /stores/{storeID}/products/{productID}/views", statsHandler.ProductViews)
	mux.HandleFunc("GET /stores/{storeID}/products/{productID}/visitors", statsHandler.ProductUniqueVisitors)
	mux.HandleFunc("GET /stores/{storeID}/sessions/{sessionID}/visited/{productID}", statsHandler.HasVisited)
	mux.HandleFunc("GET /stores/{storeID}/sessions/{sessionID}/score", statsHandler.LeadScore)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}

// NewAdminRouter creates and configures the HTTP router for
// operational endpoints, mounted on the admin/metrics server.
func NewAdminRouter(flusher *usecase.FlushEventsUseCase, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	adminHandler := handler.NewAdminHandler(flusher, m, logger)

	mux.HandleFunc("GET /health", adminHandler.HealthCheck)
	mux.HandleFunc("POST /admin/stores/{storeID}/flush", adminHandler.FlushStore)
	mux.HandleFunc("GET /admin/stores/{storeID}/batches", adminHandler.ArchivedBatches)

	return mux
}
