package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/user/storefront-analytics/internal/adapter/metrics"
	"github.com/user/storefront-analytics/internal/domain"
	"github.com/user/storefront-analytics/internal/domain/mocks"
)

// promauto registers on the default registry; one set of collectors
// for the whole test binary.
var testMetrics = metrics.New()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrackEventUseCase_Track(t *testing.T) {
	logger := testLogger()

	t.Run("Product View", func(t *testing.T) {
		store := mocks.NewMockAggregateStore()
		uc := NewTrackEventUseCase(store, logger, time.Second)

		event := &domain.Event{
			StoreID:   "s1",
			SessionID: "sess1",
			EventType: domain.EventProductView,
			EntityID:  "p1",
		}
		if err := uc.Track(context.Background(), event); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if event.ID == "" {
			t.Error("expected event ID to be generated")
		}
		if event.Timestamp.IsZero() {
			t.Error("expected timestamp to be set")
		}
		if len(store.Events["s1"]) != 1 {
			t.Fatalf("expected 1 event in hot log, got %d", len(store.Events["s1"]))
		}

		views, _ := store.ProductViews(context.Background(), "s1", "p1")
		if views != 1 {
			t.Errorf("expected view counter 1, got %d", views)
		}
		visited, _ := store.HasVisited(context.Background(), "s1", "sess1", "p1")
		if !visited {
			t.Error("expected product to be marked visited")
		}
		visitors, _ := store.UniqueVisitors(context.Background(), "s1", "p1")
		if visitors != 1 {
			t.Errorf("expected 1 unique visitor, got %d", visitors)
		}
	})

	t.Run("Product Revisit", func(t *testing.T) {
		store := mocks.NewMockAggregateStore()
		uc := NewTrackEventUseCase(store, logger, time.Second)

		event := &domain.Event{
			StoreID:   "s1",
			SessionID: "sess1",
			EventType: domain.EventProductRevisit,
			EntityID:  "p1",
		}
		if err := uc.Track(context.Background(), event); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if revisits := store.Counters["s1/p1/revisits"]; revisits != 1 {
			t.Errorf("expected revisit counter 1, got %d", revisits)
		}
		if views, _ := store.ProductViews(context.Background(), "s1", "p1"); views != 0 {
			t.Errorf("expected view counter untouched, got %d", views)
		}
		if _, ok := store.Sets["s1/qualified/p1"]["sess1"]; !ok {
			t.Error("expected session in qualified set")
		}
	})

	t.Run("Unknown Event Type Archived Only", func(t *testing.T) {
		store := mocks.NewMockAggregateStore()
		uc := NewTrackEventUseCase(store, logger, time.Second)

		event := &domain.Event{
			StoreID:   "s1",
			SessionID: "sess1",
			EventType: "newsletter_signup",
		}
		if err := uc.Track(context.Background(), event); err != nil {
			t.Fatalf("expected no error for unknown event type, got %v", err)
		}

		if len(store.Events["s1"]) != 1 {
			t.Errorf("expected unknown event in hot log, got %d", len(store.Events["s1"]))
		}
		if len(store.Counters) != 0 {
			t.Errorf("expected no counters for unknown event type, got %d", len(store.Counters))
		}
	})

	t.Run("View Without Entity Has No Counter Effect", func(t *testing.T) {
		store := mocks.NewMockAggregateStore()
		uc := NewTrackEventUseCase(store, logger, time.Second)

		event := &domain.Event{
			StoreID:   "s1",
			SessionID: "sess1",
			EventType: domain.EventProductView,
		}
		if err := uc.Track(context.Background(), event); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(store.Counters) != 0 {
			t.Errorf("expected no counters without entity_id, got %d", len(store.Counters))
		}
	})

	t.Run("Missing Required Fields", func(t *testing.T) {
		store := mocks.NewMockAggregateStore()
		uc := NewTrackEventUseCase(store, logger, time.Second)

		err := uc.Track(context.Background(), &domain.Event{StoreID: "s1", EventType: domain.EventSearch})
		if !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("expected ErrInvalidEvent, got %v", err)
		}
		if len(store.Events) != 0 {
			t.Error("invalid event must not reach the hot log")
		}
	})

	t.Run("Append Error Is Returned", func(t *testing.T) {
		store := mocks.NewMockAggregateStore()
		store.AppendErr = errors.New("hot store unreachable")
		uc := NewTrackEventUseCase(store, logger, time.Second)

		event := &domain.Event{StoreID: "s1", SessionID: "sess1", EventType: domain.EventSearch}
		if err := uc.Track(context.Background(), event); err == nil {
			t.Fatal("expected an error, got nil")
		}
	})

	t.Run("Aggregate Failure Is Best Effort", func(t *testing.T) {
		store := mocks.NewMockAggregateStore()
		store.CountErr = errors.New("counter unavailable")
		uc := NewTrackEventUseCase(store, logger, time.Second)

		event := &domain.Event{
			StoreID:   "s1",
			SessionID: "sess1",
			EventType: domain.EventProductView,
			EntityID:  "p1",
		}
		if err := uc.Track(context.Background(), event); err != nil {
			t.Fatalf("aggregate failure must not fail the track call, got %v", err)
		}
		if len(store.Events["s1"]) != 1 {
			t.Error("expected event in hot log despite counter failure")
		}
	})
}

func TestTrackEventUseCase_Queries(t *testing.T) {
	logger := testLogger()
	store := mocks.NewMockAggregateStore()
	uc := NewTrackEventUseCase(store, logger, time.Second)
	ctx := context.Background()

	visited, err := uc.HasVisitedProduct(ctx, "s1", "sess1", "p1")
	if err != nil {
		t.Fatalf("HasVisitedProduct failed: %v", err)
	}
	if visited {
		t.Error("expected false before any product_view")
	}

	event := &domain.Event{StoreID: "s1", SessionID: "sess1", EventType: domain.EventProductView, EntityID: "p1"}
	if err := uc.Track(ctx, event); err != nil {
		t.Fatalf("Track failed: %v", err)
	}

	visited, _ = uc.HasVisitedProduct(ctx, "s1", "sess1", "p1")
	if !visited {
		t.Error("expected true immediately after a product_view")
	}

	views, _ := uc.ProductViews(ctx, "s1", "p1")
	if views != 1 {
		t.Errorf("expected 1 view, got %d", views)
	}
	// Reads are idempotent with no intervening tracks.
	again, _ := uc.ProductViews(ctx, "s1", "p1")
	if again != views {
		t.Errorf("expected idempotent read, got %d then %d", views, again)
	}

	unique, _ := uc.ProductUniqueVisitors(ctx, "s1", "p1")
	if unique != 1 {
		t.Errorf("expected 1 unique visitor, got %d", unique)
	}
}
