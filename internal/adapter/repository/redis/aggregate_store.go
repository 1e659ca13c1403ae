package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/user/storefront-analytics/internal/domain"
)

const storeRegistryKey = "analytics:stores"

// VisitorCountMode selects the representation of product visitor-sets.
type VisitorCountMode string

const (
	// ModeExact stores full session membership (SADD/SCARD).
	ModeExact VisitorCountMode = "exact"
	// ModeApproximate uses a HyperLogLog distinct counter
	// (PFADD/PFCOUNT). Standard Redis HLL error bound is ~0.81%.
	ModeApproximate VisitorCountMode = "approximate"
)

// Store is the Redis-backed hot tier for multi-instance deployments.
// Redis provides the atomic increment and set-insert primitives and
// native key expiry; every write refreshes the key's TTL to the
// retention window.
type Store struct {
	client    *redis.Client
	logger    *slog.Logger
	retention time.Duration
	mode      VisitorCountMode
}

// NewStore creates a Redis-backed aggregate store.
func NewStore(client *redis.Client, retention time.Duration, mode VisitorCountMode, logger *slog.Logger) (*Store, error) {
	if mode != ModeExact && mode != ModeApproximate {
		return nil, fmt.Errorf("unknown visitor count mode %q", mode)
	}
	return &Store{
		client:    client,
		logger:    logger.With("component", "redis_aggregate_store"),
		retention: retention,
		mode:      mode,
	}, nil
}

func (s *Store) AppendEvent(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := eventLogKey(event.StoreID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, s.retention)
	pipe.SAdd(ctx, storeRegistryKey, event.StoreID)
	pipe.Expire(ctx, storeRegistryKey, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append event to redis log: %w", err)
	}
	return nil
}

func (s *Store) ReadEvents(ctx context.Context, storeID string) ([]domain.Event, error) {
	payloads, err := s.client.LRange(ctx, eventLogKey(storeID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read redis event log: %w", err)
	}
	return s.decodeEvents(storeID, payloads), nil
}

// DrainEvents atomically hands the log off by renaming it to a scratch
// key: RENAME is atomic with respect to concurrent RPUSH, so an append
// racing the drain lands either in the drained scratch list or in the
// fresh log that forms under the original key.
//
// A read failure after the rename discards the scratch list; those
// events fall inside the same accepted loss window as a crash between
// a drain and the archive write.
func (s *Store) DrainEvents(ctx context.Context, storeID string) ([]domain.Event, error) {
	key := eventLogKey(storeID)
	scratch := key + ":draining:" + uuid.NewString()

	if err := s.client.Rename(ctx, key, scratch).Err(); err != nil {
		if isNoSuchKeyError(err) {
			// Nothing retained; drop the store from worker fan-out
			// until its next append re-registers it.
			if err := s.client.SRem(ctx, storeRegistryKey, storeID).Err(); err != nil {
				s.logger.Warn("failed to deregister idle store", "store_id", storeID, "error", err)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to rename redis event log for drain: %w", err)
	}

	payloads, err := s.client.LRange(ctx, scratch, 0, -1).Result()
	if err != nil {
		if delErr := s.client.Del(ctx, scratch).Err(); delErr != nil {
			s.logger.Warn("failed to delete stranded scratch key", "key", scratch, "error", delErr)
		}
		return nil, fmt.Errorf("failed to read drained redis event log: %w", err)
	}
	if err := s.client.Del(ctx, scratch).Err(); err != nil {
		s.logger.Warn("failed to delete drained scratch key", "key", scratch, "error", err)
	}

	return s.decodeEvents(storeID, payloads), nil
}

func (s *Store) StoreIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, storeRegistryKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read store registry: %w", err)
	}
	return ids, nil
}

func (s *Store) IncrementViews(ctx context.Context, storeID, productID string) error {
	return s.incr(ctx, counterKey(storeID, productID, "views"))
}

func (s *Store) IncrementRevisits(ctx context.Context, storeID, productID string) error {
	return s.incr(ctx, counterKey(storeID, productID, "revisits"))
}

func (s *Store) ProductViews(ctx context.Context, storeID, productID string) (int64, error) {
	val, err := s.client.Get(ctx, counterKey(storeID, productID, "views")).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read view counter: %w", err)
	}
	views, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed view counter value %q: %w", val, err)
	}
	return views, nil
}

func (s *Store) MarkVisited(ctx context.Context, storeID, sessionID, productID string) error {
	return s.sadd(ctx, sessionProductsKey(storeID, sessionID), productID)
}

func (s *Store) HasVisited(ctx context.Context, storeID, sessionID, productID string) (bool, error) {
	member, err := s.client.SIsMember(ctx, sessionProductsKey(storeID, sessionID), productID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session visited-set: %w", err)
	}
	return member, nil
}

func (s *Store) VisitedCount(ctx context.Context, storeID, sessionID string) (int64, error) {
	count, err := s.client.SCard(ctx, sessionProductsKey(storeID, sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read session visited-set cardinality: %w", err)
	}
	return count, nil
}

func (s *Store) AddVisitor(ctx context.Context, storeID, productID, sessionID string) error {
	key := productSetKey(storeID, productID, "visitors")
	pipe := s.client.Pipeline()
	if s.mode == ModeApproximate {
		pipe.PFAdd(ctx, key, sessionID)
	} else {
		pipe.SAdd(ctx, key, sessionID)
	}
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add product visitor: %w", err)
	}
	return nil
}

func (s *Store) UniqueVisitors(ctx context.Context, storeID, productID string) (int64, error) {
	key := productSetKey(storeID, productID, "visitors")
	var (
		count int64
		err   error
	)
	if s.mode == ModeApproximate {
		count, err = s.client.PFCount(ctx, key).Result()
	} else {
		count, err = s.client.SCard(ctx, key).Result()
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count product visitors: %w", err)
	}
	return count, nil
}

func (s *Store) AddQualifiedSession(ctx context.Context, storeID, productID, sessionID string) error {
	return s.sadd(ctx, productSetKey(storeID, productID, "qualified"), sessionID)
}

func (s *Store) SetLeadScore(ctx context.Context, storeID, sessionID string, score float64) error {
	key := leadScoreKey(storeID, sessionID)
	if err := s.client.Set(ctx, key, score, s.retention).Err(); err != nil {
		return fmt.Errorf("failed to persist lead score: %w", err)
	}
	return nil
}

func (s *Store) LeadScore(ctx context.Context, storeID, sessionID string) (float64, bool, error) {
	val, err := s.client.Get(ctx, leadScoreKey(storeID, sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read lead score: %w", err)
	}
	score, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed lead score value %q: %w", val, err)
	}
	return score, true, nil
}

func (s *Store) incr(ctx context.Context, key string) error {
	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment counter: %w", err)
	}
	return nil
}

func (s *Store) sadd(ctx context.Context, key, member string) error {
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, key, member)
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add set member: %w", err)
	}
	return nil
}

func (s *Store) decodeEvents(storeID string, payloads []string) []domain.Event {
	events := make([]domain.Event, 0, len(payloads))
	for _, payload := range payloads {
		var event domain.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			s.logger.Warn("failed to unmarshal event from hot log, skipping", "store_id", storeID, "error", err)
			continue
		}
		events = append(events, event)
	}
	return events
}

func isNoSuchKeyError(err error) bool {
	return err != nil && err.Error() == "ERR no such key"
}

// Key helpers join IDs with ":" unescaped. Store, product, and session
// IDs are platform-issued and never contain ":"; an ID that did could
// collide with another key.
func counterKey(storeID, productID, metric string) string {
	return "analytics:store:" + storeID + ":product:" + productID + ":" + metric
}

func productSetKey(storeID, productID, set string) string {
	return "analytics:store:" + storeID + ":product:" + productID + ":" + set
}

func sessionProductsKey(storeID, sessionID string) string {
	return "analytics:store:" + storeID + ":session:" + sessionID + ":products"
}

func leadScoreKey(storeID, sessionID string) string {
	return "analytics:store:" + storeID + ":session:" + sessionID + ":lead_score"
}

func eventLogKey(storeID string) string {
	return "analytics:store:" + storeID + ":events"
}
