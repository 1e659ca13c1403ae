package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/user/storefront-analytics/internal/domain"
)

// Store is the in-process hot tier for single-instance deployments.
// Unlike the Redis backend it has no native expiry, so every entry
// carries its own deadline, refreshed on write, and a janitor goroutine
// sweeps expired entries. A capacity bound evicts the
// soonest-expiring entries when exceeded.
//
// Visitor-sets are always exact in this backend; UniqueVisitors returns
// true set cardinality with no error bound.
type Store struct {
	logger     *slog.Logger
	retention  time.Duration
	maxEntries int

	mu       sync.RWMutex
	logs     map[string]*logEntry // keyed by store ID
	counters map[string]*counterEntry
	sets     map[string]*setEntry
	scores   map[string]*scoreEntry

	done      chan struct{}
	closeOnce sync.Once
}

type logEntry struct {
	events    []domain.Event
	expiresAt time.Time
}

type counterEntry struct {
	value     int64
	expiresAt time.Time
}

type setEntry struct {
	members   map[string]struct{}
	expiresAt time.Time
}

type scoreEntry struct {
	score     float64
	expiresAt time.Time
}

// NewStore creates an in-process aggregate store with the given
// retention window and entry capacity, and starts its janitor.
func NewStore(retention time.Duration, maxEntries int, logger *slog.Logger) *Store {
	s := &Store{
		logger:     logger.With("component", "memory_aggregate_store"),
		retention:  retention,
		maxEntries: maxEntries,
		logs:       make(map[string]*logEntry),
		counters:   make(map[string]*counterEntry),
		sets:       make(map[string]*setEntry),
		scores:     make(map[string]*scoreEntry),
		done:       make(chan struct{}),
	}

	go s.janitor(janitorInterval(retention))
	return s
}

func janitorInterval(retention time.Duration) time.Duration {
	interval := retention / 10
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return interval
}

// Close stops the janitor. The store remains usable but no longer
// sweeps expired entries in the background.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			removed := s.sweepLocked(time.Now())
			s.mu.Unlock()
			if removed > 0 {
				s.logger.Debug("swept expired hot-tier entries", "removed", removed)
			}
		}
	}
}

// sweepLocked removes expired entries. Caller holds the write lock.
func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range s.logs {
		if now.After(e.expiresAt) {
			delete(s.logs, k)
			removed++
		}
	}
	for k, e := range s.counters {
		if now.After(e.expiresAt) {
			delete(s.counters, k)
			removed++
		}
	}
	for k, e := range s.sets {
		if now.After(e.expiresAt) {
			delete(s.sets, k)
			removed++
		}
	}
	for k, e := range s.scores {
		if now.After(e.expiresAt) {
			delete(s.scores, k)
			removed++
		}
	}
	return removed
}

// enforceCapacityLocked evicts entries until the store is within its
// capacity bound: expired entries first, then the soonest-expiring.
// Caller holds the write lock.
func (s *Store) enforceCapacityLocked(now time.Time) {
	total := len(s.logs) + len(s.counters) + len(s.sets) + len(s.scores)
	if total <= s.maxEntries {
		return
	}
	s.sweepLocked(now)

	total = len(s.logs) + len(s.counters) + len(s.sets) + len(s.scores)
	if total <= s.maxEntries {
		return
	}

	type victim struct {
		kind      int // 0=counter 1=set 2=score 3=log
		key       string
		expiresAt time.Time
	}
	victims := make([]victim, 0, total)
	for k, e := range s.counters {
		victims = append(victims, victim{0, k, e.expiresAt})
	}
	for k, e := range s.sets {
		victims = append(victims, victim{1, k, e.expiresAt})
	}
	for k, e := range s.scores {
		victims = append(victims, victim{2, k, e.expiresAt})
	}
	for k, e := range s.logs {
		victims = append(victims, victim{3, k, e.expiresAt})
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i].expiresAt.Before(victims[j].expiresAt) })

	evicted := 0
	for _, v := range victims {
		if total-evicted <= s.maxEntries {
			break
		}
		switch v.kind {
		case 0:
			delete(s.counters, v.key)
		case 1:
			delete(s.sets, v.key)
		case 2:
			delete(s.scores, v.key)
		case 3:
			delete(s.logs, v.key)
		}
		evicted++
	}
	if evicted > 0 {
		s.logger.Warn("hot tier over capacity, evicted entries", "evicted", evicted, "max_entries", s.maxEntries)
	}
}

func (s *Store) AppendEvent(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.logs[event.StoreID]
	if !ok || now.After(entry.expiresAt) {
		entry = &logEntry{}
		s.logs[event.StoreID] = entry
	}
	entry.events = append(entry.events, event)
	entry.expiresAt = now.Add(s.retention)
	s.enforceCapacityLocked(now)
	return nil
}

func (s *Store) ReadEvents(ctx context.Context, storeID string) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.logs[storeID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	return append([]domain.Event(nil), entry.events...), nil
}

func (s *Store) DrainEvents(ctx context.Context, storeID string) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.logs[storeID]
	delete(s.logs, storeID)
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	return entry.events, nil
}

func (s *Store) StoreIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	ids := make([]string, 0, len(s.logs))
	for id, entry := range s.logs {
		if now.After(entry.expiresAt) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) IncrementViews(ctx context.Context, storeID, productID string) error {
	return s.incr(ctx, counterKey(storeID, productID, "views"))
}

func (s *Store) IncrementRevisits(ctx context.Context, storeID, productID string) error {
	return s.incr(ctx, counterKey(storeID, productID, "revisits"))
}

func (s *Store) ProductViews(ctx context.Context, storeID, productID string) (int64, error) {
	return s.counterValue(ctx, counterKey(storeID, productID, "views"))
}

func (s *Store) MarkVisited(ctx context.Context, storeID, sessionID, productID string) error {
	return s.sadd(ctx, sessionProductsKey(storeID, sessionID), productID)
}

func (s *Store) HasVisited(ctx context.Context, storeID, sessionID, productID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sets[sessionProductsKey(storeID, sessionID)]
	if !ok || time.Now().After(entry.expiresAt) {
		return false, nil
	}
	_, member := entry.members[productID]
	return member, nil
}

func (s *Store) VisitedCount(ctx context.Context, storeID, sessionID string) (int64, error) {
	return s.scard(ctx, sessionProductsKey(storeID, sessionID))
}

func (s *Store) AddVisitor(ctx context.Context, storeID, productID, sessionID string) error {
	return s.sadd(ctx, productSetKey(storeID, productID, "visitors"), sessionID)
}

func (s *Store) UniqueVisitors(ctx context.Context, storeID, productID string) (int64, error) {
	return s.scard(ctx, productSetKey(storeID, productID, "visitors"))
}

func (s *Store) AddQualifiedSession(ctx context.Context, storeID, productID, sessionID string) error {
	return s.sadd(ctx, productSetKey(storeID, productID, "qualified"), sessionID)
}

func (s *Store) SetLeadScore(ctx context.Context, storeID, sessionID string, score float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.scores[leadScoreKey(storeID, sessionID)] = &scoreEntry{score: score, expiresAt: now.Add(s.retention)}
	s.enforceCapacityLocked(now)
	return nil
}

func (s *Store) LeadScore(ctx context.Context, storeID, sessionID string) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.scores[leadScoreKey(storeID, sessionID)]
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, false, nil
	}
	return entry.score, true, nil
}

func (s *Store) incr(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.counters[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &counterEntry{}
		s.counters[key] = entry
	}
	entry.value++
	entry.expiresAt = now.Add(s.retention)
	s.enforceCapacityLocked(now)
	return nil
}

func (s *Store) counterValue(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.counters[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.value, nil
}

func (s *Store) sadd(ctx context.Context, key, member string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.sets[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &setEntry{members: make(map[string]struct{})}
		s.sets[key] = entry
	}
	entry.members[member] = struct{}{}
	entry.expiresAt = now.Add(s.retention)
	s.enforceCapacityLocked(now)
	return nil
}

func (s *Store) scard(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sets[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, nil
	}
	return int64(len(entry.members)), nil
}

// Key helpers join IDs with ":" unescaped, matching the Redis backend.
// IDs are platform-issued and never contain ":".
func counterKey(storeID, productID, metric string) string {
	return "store:" + storeID + ":product:" + productID + ":" + metric
}

func productSetKey(storeID, productID, set string) string {
	return "store:" + storeID + ":product:" + productID + ":" + set
}

func sessionProductsKey(storeID, sessionID string) string {
	return "store:" + storeID + ":session:" + sessionID + ":products"
}

func leadScoreKey(storeID, sessionID string) string {
	return "store:" + storeID + ":session:" + sessionID + ":lead_score"
}
