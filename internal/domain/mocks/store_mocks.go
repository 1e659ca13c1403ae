package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/user/storefront-analytics/internal/domain"
)

// MockAggregateStore is an in-memory implementation of
// domain.AggregateStore for testing, with per-operation error
// injection.
type MockAggregateStore struct {
	mu        sync.Mutex
	Events    map[string][]domain.Event
	Counters  map[string]int64
	Sets      map[string]map[string]struct{}
	Scores    map[string]float64
	AppendErr error
	ReadErr   error
	DrainErr  error
	CountErr  error
	SetErr    error
	ScoreErr  error
}

func NewMockAggregateStore() *MockAggregateStore {
	return &MockAggregateStore{
		Events:   make(map[string][]domain.Event),
		Counters: make(map[string]int64),
		Sets:     make(map[string]map[string]struct{}),
		Scores:   make(map[string]float64),
	}
}

func (m *MockAggregateStore) AppendEvent(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Events[event.StoreID] = append(m.Events[event.StoreID], event)
	return nil
}

func (m *MockAggregateStore) ReadEvents(ctx context.Context, storeID string) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]domain.Event(nil), m.Events[storeID]...), nil
}

func (m *MockAggregateStore) DrainEvents(ctx context.Context, storeID string) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DrainErr != nil {
		return nil, m.DrainErr
	}
	drained := m.Events[storeID]
	delete(m.Events, storeID)
	return drained, nil
}

func (m *MockAggregateStore) StoreIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.Events))
	for id := range m.Events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockAggregateStore) IncrementViews(ctx context.Context, storeID, productID string) error {
	return m.incr(storeID + "/" + productID + "/views")
}

func (m *MockAggregateStore) IncrementRevisits(ctx context.Context, storeID, productID string) error {
	return m.incr(storeID + "/" + productID + "/revisits")
}

func (m *MockAggregateStore) ProductViews(ctx context.Context, storeID, productID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	return m.Counters[storeID+"/"+productID+"/views"], nil
}

func (m *MockAggregateStore) MarkVisited(ctx context.Context, storeID, sessionID, productID string) error {
	return m.sadd(storeID+"/session/"+sessionID, productID)
}

func (m *MockAggregateStore) HasVisited(ctx context.Context, storeID, sessionID, productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return false, m.SetErr
	}
	_, ok := m.Sets[storeID+"/session/"+sessionID][productID]
	return ok, nil
}

func (m *MockAggregateStore) VisitedCount(ctx context.Context, storeID, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return 0, m.SetErr
	}
	return int64(len(m.Sets[storeID+"/session/"+sessionID])), nil
}

func (m *MockAggregateStore) AddVisitor(ctx context.Context, storeID, productID, sessionID string) error {
	return m.sadd(storeID+"/visitors/"+productID, sessionID)
}

func (m *MockAggregateStore) UniqueVisitors(ctx context.Context, storeID, productID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return 0, m.SetErr
	}
	return int64(len(m.Sets[storeID+"/visitors/"+productID])), nil
}

func (m *MockAggregateStore) AddQualifiedSession(ctx context.Context, storeID, productID, sessionID string) error {
	return m.sadd(storeID+"/qualified/"+productID, sessionID)
}

func (m *MockAggregateStore) SetLeadScore(ctx context.Context, storeID, sessionID string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ScoreErr != nil {
		return m.ScoreErr
	}
	m.Scores[storeID+"/"+sessionID] = score
	return nil
}

func (m *MockAggregateStore) LeadScore(ctx context.Context, storeID, sessionID string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ScoreErr != nil {
		return 0, false, m.ScoreErr
	}
	score, ok := m.Scores[storeID+"/"+sessionID]
	return score, ok, nil
}

func (m *MockAggregateStore) incr(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return m.CountErr
	}
	m.Counters[key]++
	return nil
}

func (m *MockAggregateStore) sadd(key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	set, ok := m.Sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.Sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

// MockArchiveStore is an in-memory implementation of
// domain.ArchiveStore for testing.
type MockArchiveStore struct {
	mu       sync.Mutex
	Batches  map[string][]domain.EventBatch
	WriteErr error
	ReadErr  error
}

func NewMockArchiveStore() *MockArchiveStore {
	return &MockArchiveStore{Batches: make(map[string][]domain.EventBatch)}
}

func (m *MockArchiveStore) WriteBatch(ctx context.Context, storeID string, flushedAt time.Time, events []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Batches[storeID] = append(m.Batches[storeID], domain.EventBatch{
		StoreID:   storeID,
		FlushedAt: flushedAt,
		Events:    events,
	})
	return nil
}

func (m *MockArchiveStore) ReadBatches(ctx context.Context, storeID string) ([]domain.EventBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]domain.EventBatch(nil), m.Batches[storeID]...), nil
}

func (m *MockArchiveStore) Close() error { return nil }

// MockCartRepository is a canned implementation of
// domain.CartRepository for testing.
type MockCartRepository struct {
	Carts   []domain.AbandonedCart
	FindErr error
}

func (m *MockCartRepository) FindAbandoned(ctx context.Context, storeID string, inactiveFor time.Duration) ([]domain.AbandonedCart, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	var carts []domain.AbandonedCart
	for _, cart := range m.Carts {
		if cart.StoreID == storeID {
			carts = append(carts, cart)
		}
	}
	return carts, nil
}
