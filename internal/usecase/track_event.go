package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/user/storefront-analytics/internal/domain"
)

// ErrInvalidEvent is returned when a tracked event is missing its
// required store or session identifier.
var ErrInvalidEvent = errors.New("event requires store_id and session_id")

// TrackEventUseCase is the synchronous ingest entry point. Recording
// the raw event and updating its derived aggregates are best-effort and
// not atomic as a unit: the append must succeed, aggregate updates that
// fail afterwards are logged and dropped (degraded analytics, never a
// failed request).
type TrackEventUseCase struct {
	store   domain.AggregateStore
	logger  *slog.Logger
	timeout time.Duration
}

// NewTrackEventUseCase creates a new TrackEventUseCase. Every call
// against the hot tier is bounded by timeout.
func NewTrackEventUseCase(store domain.AggregateStore, logger *slog.Logger, timeout time.Duration) *TrackEventUseCase {
	return &TrackEventUseCase{
		store:   store,
		logger:  logger,
		timeout: timeout,
	}
}

// Track validates, enriches, and records an event, then applies its
// aggregate side effects. It returns an error only when the event
// could not reach the hot tier; callers should treat that as transient.
// Unknown event types are recorded in the raw log with no aggregate
// effect.
func (uc *TrackEventUseCase) Track(ctx context.Context, event *domain.Event) error {
	if event.StoreID == "" || event.SessionID == "" {
		return ErrInvalidEvent
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	if err := uc.store.AppendEvent(ctx, *event); err != nil {
		uc.logger.Error("failed to append event to hot log", "error", err, "event_id", event.ID, "store_id", event.StoreID)
		return err
	}

	switch event.EventType {
	case domain.EventProductView:
		if event.EntityID != "" {
			uc.trackProductView(ctx, event)
		}
	case domain.EventProductRevisit:
		if event.EntityID != "" {
			uc.trackProductRevisit(ctx, event)
		}
	}

	return nil
}

func (uc *TrackEventUseCase) trackProductView(ctx context.Context, event *domain.Event) {
	if err := uc.store.IncrementViews(ctx, event.StoreID, event.EntityID); err != nil {
		uc.logger.Warn("failed to increment view counter", "error", err, "event_id", event.ID, "product_id", event.EntityID)
	}
	if err := uc.store.MarkVisited(ctx, event.StoreID, event.SessionID, event.EntityID); err != nil {
		uc.logger.Warn("failed to mark product visited", "error", err, "event_id", event.ID, "product_id", event.EntityID)
	}
	if err := uc.store.AddVisitor(ctx, event.StoreID, event.EntityID, event.SessionID); err != nil {
		uc.logger.Warn("failed to add product visitor", "error", err, "event_id", event.ID, "product_id", event.EntityID)
	}
}

func (uc *TrackEventUseCase) trackProductRevisit(ctx context.Context, event *domain.Event) {
	if err := uc.store.IncrementRevisits(ctx, event.StoreID, event.EntityID); err != nil {
		uc.logger.Warn("failed to increment revisit counter", "error", err, "event_id", event.ID, "product_id", event.EntityID)
	}
	if err := uc.store.AddQualifiedSession(ctx, event.StoreID, event.EntityID, event.SessionID); err != nil {
		uc.logger.Warn("failed to add qualified session", "error", err, "event_id", event.ID, "product_id", event.EntityID)
	}
}

// HasVisitedProduct reports whether the session has already viewed the
// product. Callers use this before Track to decide between emitting
// product_view and product_revisit; the check is not atomic with the
// subsequent Track call.
func (uc *TrackEventUseCase) HasVisitedProduct(ctx context.Context, storeID, sessionID, productID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	return uc.store.HasVisited(ctx, storeID, sessionID, productID)
}

// ProductViews returns the current view counter, zero if never set.
func (uc *TrackEventUseCase) ProductViews(ctx context.Context, storeID, productID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	return uc.store.ProductViews(ctx, storeID, productID)
}

// ProductUniqueVisitors returns the distinct-visitor count for a
// product: exact set cardinality or a probabilistic estimate, depending
// on the configured hot-tier backend.
func (uc *TrackEventUseCase) ProductUniqueVisitors(ctx context.Context, storeID, productID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	return uc.store.UniqueVisitors(ctx, storeID, productID)
}
