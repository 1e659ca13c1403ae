package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/user/storefront-analytics/internal/adapter/metrics"
	"github.com/user/storefront-analytics/internal/domain"
)

// AbandonedCartsUseCase turns cart-inactivity records from the order
// subsystem into cart_abandon events. It is read-only with respect to
// cart state.
type AbandonedCartsUseCase struct {
	carts     domain.CartRepository
	tracker   *TrackEventUseCase
	logger    *slog.Logger
	threshold time.Duration
	metrics   *metrics.Metrics
}

// NewAbandonedCartsUseCase creates a new AbandonedCartsUseCase with the
// given inactivity threshold.
func NewAbandonedCartsUseCase(carts domain.CartRepository, tracker *TrackEventUseCase, logger *slog.Logger, threshold time.Duration, m *metrics.Metrics) *AbandonedCartsUseCase {
	return &AbandonedCartsUseCase{
		carts:     carts,
		tracker:   tracker,
		logger:    logger,
		threshold: threshold,
		metrics:   m,
	}
}

type cartAbandonMetadata struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
	Email    string `json:"email"`
}

// Run scans one store for abandoned carts and ingests one cart_abandon
// event per cart, carrying the cart's total, currency, and contact
// email as metadata. A single cart's failure never aborts the rest; it
// returns the number of events tracked.
func (uc *AbandonedCartsUseCase) Run(ctx context.Context, storeID string) (int, error) {
	carts, err := uc.carts.FindAbandoned(ctx, storeID, uc.threshold)
	if err != nil {
		return 0, err
	}

	tracked := 0
	for _, cart := range carts {
		metadata, err := json.Marshal(cartAbandonMetadata{
			Total:    cart.TotalCents,
			Currency: cart.Currency,
			Email:    cart.Email,
		})
		if err != nil {
			uc.logger.Warn("failed to marshal cart metadata", "error", err, "cart_pid", cart.PID)
			continue
		}

		event := domain.Event{
			StoreID:    cart.StoreID,
			SessionID:  cart.SessionID,
			CustomerID: cart.CustomerID,
			EventType:  domain.EventCartAbandon,
			EntityType: "cart",
			EntityID:   cart.PID,
			Metadata:   metadata,
			Timestamp:  time.Now().UTC(),
		}

		if err := uc.tracker.Track(ctx, &event); err != nil {
			uc.logger.Warn("failed to track cart_abandon event", "error", err, "cart_pid", cart.PID, "session_id", cart.SessionID)
			continue
		}

		uc.metrics.AbandonedCartsTotal.Inc()
		uc.logger.Info("abandoned cart detected",
			"cart_pid", cart.PID,
			"store_id", cart.StoreID,
			"session_id", cart.SessionID,
			"total_cents", cart.TotalCents,
		)
		tracked++
	}

	uc.logger.Info("abandoned cart scan completed", "store_id", storeID, "found", len(carts), "tracked", tracked)
	return tracked, nil
}

// RunAll scans every store that currently retains hot-tier data. One
// store's failure never aborts the remaining stores.
func (uc *AbandonedCartsUseCase) RunAll(ctx context.Context, storeIDs []string) int {
	total := 0
	for _, storeID := range storeIDs {
		tracked, err := uc.Run(ctx, storeID)
		if err != nil {
			uc.logger.Error("abandoned cart scan failed for store", "error", err, "store_id", storeID)
			continue
		}
		total += tracked
	}
	return total
}
