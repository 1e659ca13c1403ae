package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/storefront-analytics/internal/adapter/metrics"
	"github.com/user/storefront-analytics/internal/usecase"
)

// AdminHandler handles operational HTTP requests: on-demand flushes and
// archive exports.
type AdminHandler struct {
	flusher *usecase.FlushEventsUseCase
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(flusher *usecase.FlushEventsUseCase, m *metrics.Metrics, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{flusher: flusher, metrics: m, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// FlushStore triggers an on-demand flush of one store's hot log.
// POST /admin/stores/{storeID}/flush
func (h *AdminHandler) FlushStore(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("storeID")
	if storeID == "" {
		http.Error(w, "storeID is required", http.StatusBadRequest)
		return
	}

	count, err := h.flusher.Flush(r.Context(), storeID)
	if err != nil {
		if errors.Is(err, usecase.ErrFlushInFlight) {
			http.Error(w, "Flush already in flight", http.StatusConflict)
			return
		}
		h.logger.Error("on-demand flush failed", "error", err, "store_id", storeID)
		h.metrics.HotLogDrainFailures.Inc()
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if count > 0 {
		h.metrics.FlushedEventsTotal.Add(float64(count))
		h.metrics.FlushBatchesTotal.Inc()
	}

	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"store_id": storeID,
		"flushed":  count,
	})
}

// ArchivedBatches exports every archived batch for a store, for
// offline analysis or replay.
// GET /admin/stores/{storeID}/batches
func (h *AdminHandler) ArchivedBatches(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("storeID")
	if storeID == "" {
		http.Error(w, "storeID is required", http.StatusBadRequest)
		return
	}

	batches, err := h.flusher.Archived(r.Context(), storeID)
	if err != nil {
		h.logger.Error("failed to read archived batches", "error", err, "store_id", storeID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"store_id": storeID,
		"batches":  batches,
	})
}

func (h *AdminHandler) respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
