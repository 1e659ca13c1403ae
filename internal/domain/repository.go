package domain

import (
	"context"
	"time"
)

// AggregateStore is the hot tier: raw per-store event logs, counters,
// and visitor/visited sets. Entries are bounded by a retention window
// (and, for in-process backends, by capacity) and are not durable
// across restarts. Per-key operations must be atomic under concurrent
// writers; no ordering is guaranteed across keys.
type AggregateStore interface {
	// AppendEvent adds a serialized event to the store's raw log.
	AppendEvent(ctx context.Context, event Event) error

	// ReadEvents returns the currently retained raw log for a store
	// without consuming it.
	ReadEvents(ctx context.Context, storeID string) ([]Event, error)

	// DrainEvents atomically reads and clears the store's raw log.
	// A concurrent append lands either in the drained batch or in the
	// fresh log, never both and never neither.
	DrainEvents(ctx context.Context, storeID string) ([]Event, error)

	// StoreIDs lists stores that currently retain hot-tier data,
	// for worker fan-out.
	StoreIDs(ctx context.Context) ([]string, error)

	IncrementViews(ctx context.Context, storeID, productID string) error
	IncrementRevisits(ctx context.Context, storeID, productID string) error
	ProductViews(ctx context.Context, storeID, productID string) (int64, error)

	// MarkVisited records a product in the session's visited-set.
	MarkVisited(ctx context.Context, storeID, sessionID, productID string) error
	HasVisited(ctx context.Context, storeID, sessionID, productID string) (bool, error)
	// VisitedCount returns the number of distinct products the session
	// has viewed.
	VisitedCount(ctx context.Context, storeID, sessionID string) (int64, error)

	// AddVisitor records a session in the product's visitor-set.
	// Depending on the backend's configured mode the set is exact or a
	// probabilistic distinct counter; UniqueVisitors reports the
	// cardinality (or its estimate) either way.
	AddVisitor(ctx context.Context, storeID, productID, sessionID string) error
	UniqueVisitors(ctx context.Context, storeID, productID string) (int64, error)

	// AddQualifiedSession records a revisiting session in the product's
	// qualified-session set.
	AddQualifiedSession(ctx context.Context, storeID, productID, sessionID string) error

	// SetLeadScore persists a computed lead score under the session's
	// score key, subject to the same retention window as other
	// aggregates.
	SetLeadScore(ctx context.Context, storeID, sessionID string, score float64) error
	// LeadScore returns the persisted score and whether one is present.
	LeadScore(ctx context.Context, storeID, sessionID string) (float64, bool, error)
}

// ArchiveStore is the cold tier: an embedded, append-only persistent
// store of flushed event batches keyed by store and flush time.
type ArchiveStore interface {
	// WriteBatch persists one drained batch and forces it to stable
	// storage before returning.
	WriteBatch(ctx context.Context, storeID string, flushedAt time.Time, events []Event) error

	// ReadBatches returns every archived batch for a store in flush
	// order. Batches that fail to deserialize are skipped with a
	// warning, not fatal to the read.
	ReadBatches(ctx context.Context, storeID string) ([]EventBatch, error)

	Close() error
}

// CartRepository is the boundary to the order/cart subsystem. Read-only
// with respect to cart state.
type CartRepository interface {
	// FindAbandoned returns active carts with a known contact email and
	// no activity for longer than the threshold.
	FindAbandoned(ctx context.Context, storeID string, inactiveFor time.Duration) ([]AbandonedCart, error)
}
