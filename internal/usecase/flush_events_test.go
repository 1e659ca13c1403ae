package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/storefront-analytics/internal/domain"
	"github.com/user/storefront-analytics/internal/domain/mocks"
)

func seedEvents(t *testing.T, store *mocks.MockAggregateStore, storeID string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		event := domain.Event{StoreID: storeID, SessionID: "sess1", EventType: domain.EventSearch}
		if err := store.AppendEvent(context.Background(), event); err != nil {
			t.Fatalf("failed to seed event: %v", err)
		}
	}
}

func TestFlushEventsUseCase_Flush(t *testing.T) {
	logger := testLogger()

	t.Run("Drains And Archives", func(t *testing.T) {
		hot := mocks.NewMockAggregateStore()
		archive := mocks.NewMockArchiveStore()
		uc := NewFlushEventsUseCase(hot, archive, logger, time.Second)
		seedEvents(t, hot, "s1", 3)

		count, err := uc.Flush(context.Background(), "s1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 events flushed, got %d", count)
		}
		if len(archive.Batches["s1"]) != 1 {
			t.Fatalf("expected 1 archived batch, got %d", len(archive.Batches["s1"]))
		}
		if got := len(archive.Batches["s1"][0].Events); got != 3 {
			t.Errorf("expected 3 events in archived batch, got %d", got)
		}
		if remaining, _ := hot.ReadEvents(context.Background(), "s1"); len(remaining) != 0 {
			t.Errorf("expected hot log cleared, got %d events", len(remaining))
		}
	})

	t.Run("Empty Log Returns Zero", func(t *testing.T) {
		hot := mocks.NewMockAggregateStore()
		archive := mocks.NewMockArchiveStore()
		uc := NewFlushEventsUseCase(hot, archive, logger, time.Second)

		count, err := uc.Flush(context.Background(), "s1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0, got %d", count)
		}
		if len(archive.Batches) != 0 {
			t.Error("empty flush must not touch the archive")
		}
	})

	t.Run("Second Flush Returns Zero", func(t *testing.T) {
		hot := mocks.NewMockAggregateStore()
		archive := mocks.NewMockArchiveStore()
		uc := NewFlushEventsUseCase(hot, archive, logger, time.Second)
		seedEvents(t, hot, "s1", 2)

		if _, err := uc.Flush(context.Background(), "s1"); err != nil {
			t.Fatalf("first flush failed: %v", err)
		}
		count, err := uc.Flush(context.Background(), "s1")
		if err != nil {
			t.Fatalf("second flush failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected second flush to return 0, got %d", count)
		}
		if len(archive.Batches["s1"]) != 1 {
			t.Errorf("expected exactly 1 archived batch, got %d", len(archive.Batches["s1"]))
		}
	})

	t.Run("Archive Error Is Returned", func(t *testing.T) {
		hot := mocks.NewMockAggregateStore()
		archive := mocks.NewMockArchiveStore()
		archive.WriteErr = errors.New("disk full")
		uc := NewFlushEventsUseCase(hot, archive, logger, time.Second)
		seedEvents(t, hot, "s1", 2)

		if _, err := uc.Flush(context.Background(), "s1"); err == nil {
			t.Fatal("expected an error, got nil")
		}
	})

	t.Run("Drain Error Is Returned", func(t *testing.T) {
		hot := mocks.NewMockAggregateStore()
		hot.DrainErr = errors.New("hot store unreachable")
		uc := NewFlushEventsUseCase(hot, mocks.NewMockArchiveStore(), logger, time.Second)

		if _, err := uc.Flush(context.Background(), "s1"); err == nil {
			t.Fatal("expected an error, got nil")
		}
	})
}

// blockingArchive parks WriteBatch until released, to hold a flush
// in-flight during the test.
type blockingArchive struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingArchive) WriteBatch(ctx context.Context, storeID string, flushedAt time.Time, events []domain.Event) error {
	close(b.entered)
	<-b.release
	return nil
}

func (b *blockingArchive) ReadBatches(ctx context.Context, storeID string) ([]domain.EventBatch, error) {
	return nil, nil
}

func (b *blockingArchive) Close() error { return nil }

func TestFlushEventsUseCase_SingleFlightPerStore(t *testing.T) {
	logger := testLogger()
	hot := mocks.NewMockAggregateStore()
	archive := &blockingArchive{entered: make(chan struct{}), release: make(chan struct{})}
	uc := NewFlushEventsUseCase(hot, archive, logger, time.Minute)
	seedEvents(t, hot, "s1", 1)
	seedEvents(t, hot, "s2", 1)

	firstDone := make(chan error, 1)
	go func() {
		_, err := uc.Flush(context.Background(), "s1")
		firstDone <- err
	}()

	<-archive.entered

	// Same store while in flight is rejected.
	if _, err := uc.Flush(context.Background(), "s1"); !errors.Is(err, ErrFlushInFlight) {
		t.Errorf("expected ErrFlushInFlight, got %v", err)
	}

	close(archive.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("in-flight flush failed: %v", err)
	}

	// Once released, the store can be flushed again.
	if _, err := uc.Flush(context.Background(), "s1"); err != nil {
		t.Errorf("expected flush after release to succeed, got %v", err)
	}
}

func TestFlushEventsUseCase_FlushAll(t *testing.T) {
	logger := testLogger()
	hot := mocks.NewMockAggregateStore()
	archive := mocks.NewMockArchiveStore()
	uc := NewFlushEventsUseCase(hot, archive, logger, time.Second)
	seedEvents(t, hot, "s1", 2)
	seedEvents(t, hot, "s2", 3)

	total := uc.FlushAll(context.Background())
	if total != 5 {
		t.Errorf("expected 5 events flushed across stores, got %d", total)
	}
	if len(archive.Batches["s1"]) != 1 || len(archive.Batches["s2"]) != 1 {
		t.Error("expected one archived batch per store")
	}
}

func TestFlushEventsUseCase_Archived(t *testing.T) {
	logger := testLogger()
	hot := mocks.NewMockAggregateStore()
	archive := mocks.NewMockArchiveStore()
	uc := NewFlushEventsUseCase(hot, archive, logger, time.Second)
	seedEvents(t, hot, "s1", 2)

	if _, err := uc.Flush(context.Background(), "s1"); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	batches, err := uc.Archived(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Archived failed: %v", err)
	}
	if len(batches) != 1 || len(batches[0].Events) != 2 {
		t.Errorf("expected every tracked event in the archive, got %+v", batches)
	}
}
