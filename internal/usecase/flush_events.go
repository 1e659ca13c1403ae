package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/user/storefront-analytics/internal/domain"
)

// ErrFlushInFlight is returned when a flush is requested for a store
// that already has one running.
var ErrFlushInFlight = errors.New("flush already in flight for this store")

// FlushEventsUseCase drains a store's hot raw log into the durable
// archive. Flushes are single-flight per store; flushes for different
// stores may run concurrently. Counters and sets are never touched by a
// flush, only the raw log moves.
//
// A crash between the drain and the archive write loses that one
// batch; no transaction spans the two tiers.
type FlushEventsUseCase struct {
	hot     domain.AggregateStore
	archive domain.ArchiveStore
	logger  *slog.Logger
	timeout time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewFlushEventsUseCase creates a new FlushEventsUseCase.
func NewFlushEventsUseCase(hot domain.AggregateStore, archive domain.ArchiveStore, logger *slog.Logger, timeout time.Duration) *FlushEventsUseCase {
	return &FlushEventsUseCase{
		hot:      hot,
		archive:  archive,
		logger:   logger,
		timeout:  timeout,
		inFlight: make(map[string]struct{}),
	}
}

// Flush drains and archives one store's raw log, returning the number
// of events archived. An empty log returns 0 without touching the
// archive.
func (uc *FlushEventsUseCase) Flush(ctx context.Context, storeID string) (int, error) {
	uc.mu.Lock()
	if _, running := uc.inFlight[storeID]; running {
		uc.mu.Unlock()
		return 0, ErrFlushInFlight
	}
	uc.inFlight[storeID] = struct{}{}
	uc.mu.Unlock()

	defer func() {
		uc.mu.Lock()
		delete(uc.inFlight, storeID)
		uc.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	events, err := uc.hot.DrainEvents(ctx, storeID)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	flushedAt := time.Now().UTC()
	if err := uc.archive.WriteBatch(ctx, storeID, flushedAt, events); err != nil {
		// The batch is already out of the hot log; it is lost.
		uc.logger.Error("failed to archive drained batch, events lost", "error", err, "store_id", storeID, "count", len(events))
		return 0, err
	}

	uc.logger.Info("flushed hot log to archive", "store_id", storeID, "count", len(events))
	return len(events), nil
}

// FlushAll flushes every store that currently retains hot-tier data.
// One store's failure never aborts the remaining stores; it returns
// the total events archived across all stores.
func (uc *FlushEventsUseCase) FlushAll(ctx context.Context) int {
	storeIDs, err := uc.hot.StoreIDs(ctx)
	if err != nil {
		uc.logger.Error("failed to list stores for flush", "error", err)
		return 0
	}

	total := 0
	for _, storeID := range storeIDs {
		count, err := uc.Flush(ctx, storeID)
		if err != nil {
			if errors.Is(err, ErrFlushInFlight) {
				uc.logger.Debug("skipping store with flush in flight", "store_id", storeID)
				continue
			}
			uc.logger.Error("flush failed for store", "error", err, "store_id", storeID)
			continue
		}
		total += count
	}
	return total
}

// Archived returns every archived batch for a store, for offline
// export or replay.
func (uc *FlushEventsUseCase) Archived(ctx context.Context, storeID string) ([]domain.EventBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	return uc.archive.ReadBatches(ctx, storeID)
}
