package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/user/storefront-analytics/internal/domain"
)

const batchKeyPrefix = "batch:"

// ArchiveStore is the embedded durable tier. Each flushed batch is one
// record keyed by store ID and flush time; keys order chronologically
// so iteration returns batches in flush order. The database is opened
// with synchronous writes, so a batch that WriteBatch has accepted
// survives a crash.
type ArchiveStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewArchiveStore opens (or creates) the archive database at path.
func NewArchiveStore(path string, logger *slog.Logger) (*ArchiveStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database at %s: %w", path, err)
	}

	return &ArchiveStore{
		db:     db,
		logger: logger.With("component", "badger_archive_store"),
	}, nil
}

// WriteBatch persists one drained batch under (storeID, flushedAt).
func (a *ArchiveStore) WriteBatch(ctx context.Context, storeID string, flushedAt time.Time, events []domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := domain.EventBatch{
		StoreID:   storeID,
		FlushedAt: flushedAt,
		Events:    events,
	}
	value, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal event batch: %w", err)
	}

	key := batchKey(storeID, flushedAt)
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to write event batch: %w", err)
	}
	return nil
}

// ReadBatches returns every archived batch for a store in flush order.
// A batch value that fails to deserialize is skipped with a warning.
func (a *ArchiveStore) ReadBatches(ctx context.Context, storeID string) ([]domain.EventBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(batchKeyPrefix + storeID + ":")
	var batches []domain.EventBatch

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				var batch domain.EventBatch
				if err := json.Unmarshal(val, &batch); err != nil {
					a.logger.Warn("skipping malformed archived batch", "key", key, "error", err)
					return nil
				}
				batches = append(batches, batch)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read archived batch %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// Close closes the underlying database.
func (a *ArchiveStore) Close() error {
	return a.db.Close()
}

// batchKey builds a chronologically sortable key from the flush time.
func batchKey(storeID string, flushedAt time.Time) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", batchKeyPrefix, storeID, flushedAt.UnixNano()))
}
