package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/storefront-analytics/internal/usecase"
)

// StatsHandler handles HTTP requests for aggregate queries.
type StatsHandler struct {
	tracker *usecase.TrackEventUseCase
	scorer  *usecase.LeadScoreUseCase
	logger  *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(tracker *usecase.TrackEventUseCase, scorer *usecase.LeadScoreUseCase, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{tracker: tracker, scorer: scorer, logger: logger}
}

// ProductViews handles requests for a product's view counter.
// GET /stores/{storeID}/products/{productID}/views
func (h *StatsHandler) ProductViews(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("storeID")
	productID := r.PathValue("productID")

	views, err := h.tracker.ProductViews(r.Context(), storeID, productID)
	if err != nil {
		h.logger.Error("failed to read product views", "error", err, "product_id", productID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"store_id":   storeID,
		"product_id": productID,
		"views":      views,
	})
}

// ProductUniqueVisitors handles requests for a product's distinct
// visitor count.
// GET /stores/{storeID}/products/{productID}/visitors
func (h *StatsHandler) ProductUniqueVisitors(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("storeID")
	productID := r.PathValue("productID")

	visitors, err := h.tracker.ProductUniqueVisitors(r.Context(), storeID, productID)
	if err != nil {
		h.logger.Error("failed to read unique visitors", "error", err, "product_id", productID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"store_id":        storeID,
		"product_id":      productID,
		"unique_visitors": visitors,
	})
}

// HasVisited handles revisit-detection queries.
// GET /stores/{storeID}/sessions/{sessionID}/visited/{productID}
func (h *StatsHandler) HasVisited(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("storeID")
	sessionID := r.PathValue("sessionID")
	productID := r.PathValue("productID")

	visited, err := h.tracker.HasVisitedProduct(r.Context(), storeID, sessionID, productID)
	if err != nil {
		h.logger.Error("failed to check visited-set", "error", err, "session_id", sessionID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"store_id":   storeID,
		"session_id": sessionID,
		"product_id": productID,
		"visited":    visited,
	})
}

// LeadScore handles lead-score lookups, recomputing when no persisted
// score is retained.
// GET /stores/{storeID}/sessions/{sessionID}/score
func (h *StatsHandler) LeadScore(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("storeID")
	sessionID := r.PathValue("sessionID")

	score, classification, err := h.scorer.Score(r.Context(), storeID, sessionID)
	if err != nil {
		h.logger.Error("failed to compute lead score", "error", err, "session_id", sessionID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"store_id":       storeID,
		"session_id":     sessionID,
		"score":          score,
		"classification": classification,
	})
}

func (h *StatsHandler) respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
