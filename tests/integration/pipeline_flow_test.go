package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/storefront-analytics/internal/adapter/api"
	"github.com/user/storefront-analytics/internal/adapter/metrics"
	badgerrepo "github.com/user/storefront-analytics/internal/adapter/repository/badger"
	"github.com/user/storefront-analytics/internal/adapter/repository/memory"
	"github.com/user/storefront-analytics/internal/pkg/config"
	"github.com/user/storefront-analytics/internal/usecase"
)

// promauto registers on the default registry; one set of collectors
// for the whole test binary.
var testMetrics = metrics.New()

type testEnv struct {
	tracking *httptest.Server
	admin    *httptest.Server
}

// newTestEnv wires the full pipeline in-process: in-memory hot store,
// Badger archive in a temp dir, and both HTTP surfaces.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		MaxEventSize:    64 * 1024,
		IngestRateLimit: 1000,
		IngestRateBurst: 1000,
	}

	hot := memory.NewStore(time.Hour, 10000, logger)
	t.Cleanup(hot.Close)

	archive, err := badgerrepo.NewArchiveStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("Failed to open archive store: %v", err)
	}
	t.Cleanup(func() { archive.Close() })

	tracker := usecase.NewTrackEventUseCase(hot, logger, 5*time.Second)
	scorer := usecase.NewLeadScoreUseCase(hot, logger, 5*time.Second, testMetrics)
	flusher := usecase.NewFlushEventsUseCase(hot, archive, logger, 5*time.Second)

	tracking := httptest.NewServer(api.NewRouter(cfg, logger, tracker, scorer, testMetrics))
	t.Cleanup(tracking.Close)

	admin := httptest.NewServer(api.NewAdminRouter(flusher, testMetrics, logger))
	t.Cleanup(admin.Close)

	return &testEnv{tracking: tracking, admin: admin}
}

func (e *testEnv) postNDJSON(t *testing.T, body string) {
	t.Helper()
	resp, err := http.Post(e.tracking.URL+"/events", "application/x-ndjson", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("Failed to send track request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 202 Accepted, got %d: %s", resp.StatusCode, payload)
	}
}

func (e *testEnv) getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to send query request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 OK for %s, got %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestPipelineFlow(t *testing.T) {
	env := newTestEnv(t)

	// 1. Track a browsing session plus one view from a second session.
	// The second product_view from sess1 must be rewritten to a revisit
	// by the tracking handler.
	events := []string{
		`{"store_id": "s1", "session_id": "sess1", "event_type": "product_view", "entity_type": "product", "entity_id": "p1"}`,
		`{"store_id": "s1", "session_id": "sess1", "event_type": "product_view", "entity_type": "product", "entity_id": "p1"}`,
		`{"store_id": "s1", "session_id": "sess1", "event_type": "product_detail_expand", "entity_type": "product", "entity_id": "p1"}`,
		`{"store_id": "s1", "session_id": "sess1", "event_type": "product_detail_expand", "entity_type": "product", "entity_id": "p1"}`,
		`{"store_id": "s1", "session_id": "sess1", "event_type": "checkout_start"}`,
		`{"store_id": "s1", "session_id": "sess2", "event_type": "product_view", "entity_type": "product", "entity_id": "p1"}`,
	}
	var body bytes.Buffer
	for _, ev := range events {
		body.WriteString(ev + "\n")
	}
	env.postNDJSON(t, body.String())

	// 2. Aggregate queries reflect the rewrite: one raw view per
	// session, two distinct visitors.
	var views struct {
		Views int64 `json:"views"`
	}
	env.getJSON(t, env.tracking.URL+"/stores/s1/products/p1/views", &views)
	if views.Views != 2 {
		t.Fatalf("Expected 2 views for p1, got %d", views.Views)
	}

	var visitors struct {
		UniqueVisitors int64 `json:"unique_visitors"`
	}
	env.getJSON(t, env.tracking.URL+"/stores/s1/products/p1/visitors", &visitors)
	if visitors.UniqueVisitors != 2 {
		t.Fatalf("Expected 2 unique visitors for p1, got %d", visitors.UniqueVisitors)
	}

	var visited struct {
		Visited bool `json:"visited"`
	}
	env.getJSON(t, env.tracking.URL+"/stores/s1/sessions/sess1/visited/p1", &visited)
	if !visited.Visited {
		t.Fatal("Expected sess1 to have visited p1")
	}

	// 3. Lead score for sess1: one visited product (1) + revisit (5) +
	// two detail expands (4) + checkout start (20) = 30, hot.
	var score struct {
		Score          float64 `json:"score"`
		Classification string  `json:"classification"`
	}
	env.getJSON(t, env.tracking.URL+"/stores/s1/sessions/sess1/score", &score)
	if score.Score != 30 {
		t.Fatalf("Expected lead score 30 for sess1, got %v", score.Score)
	}
	if score.Classification != "hot" {
		t.Fatalf("Expected classification hot, got %q", score.Classification)
	}

	// 4. On-demand flush drains every buffered event into the archive.
	resp, err := http.Post(env.admin.URL+"/admin/stores/s1/flush", "application/json", nil)
	if err != nil {
		t.Fatalf("Failed to trigger flush: %v", err)
	}
	var flushed struct {
		Flushed int `json:"flushed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&flushed); err != nil {
		t.Fatalf("Failed to decode flush response: %v", err)
	}
	resp.Body.Close()
	if flushed.Flushed != len(events) {
		t.Fatalf("Expected flush of %d events, got %d", len(events), flushed.Flushed)
	}

	// 5. The archive export holds one batch containing them all, with
	// the rewritten revisit preserved.
	var batches struct {
		Batches []struct {
			StoreID string `json:"store_id"`
			Events  []struct {
				EventType string `json:"event_type"`
			} `json:"events"`
		} `json:"batches"`
	}
	env.getJSON(t, env.admin.URL+"/admin/stores/s1/batches", &batches)
	if len(batches.Batches) != 1 {
		t.Fatalf("Expected 1 archived batch, got %d", len(batches.Batches))
	}
	if got := len(batches.Batches[0].Events); got != len(events) {
		t.Fatalf("Expected %d events in batch, got %d", len(events), got)
	}
	revisits := 0
	for _, ev := range batches.Batches[0].Events {
		if ev.EventType == "product_revisit" {
			revisits++
		}
	}
	if revisits != 1 {
		t.Fatalf("Expected exactly 1 product_revisit in archive, got %d", revisits)
	}

	// 6. The hot log is now empty; a second flush is a no-op.
	resp, err = http.Post(env.admin.URL+"/admin/stores/s1/flush", "application/json", nil)
	if err != nil {
		t.Fatalf("Failed to trigger second flush: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&flushed); err != nil {
		t.Fatalf("Failed to decode second flush response: %v", err)
	}
	resp.Body.Close()
	if flushed.Flushed != 0 {
		t.Fatalf("Expected second flush to drain 0 events, got %d", flushed.Flushed)
	}

	// 7. Aggregates survive the flush; only the raw log was drained.
	env.getJSON(t, env.tracking.URL+"/stores/s1/products/p1/views", &views)
	if views.Views != 2 {
		t.Fatalf("Expected view counter to survive flush, got %d", views.Views)
	}
}

func TestPipelineFlow_SessionHeader(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"store_id": "s2", "event_type": "product_view", "entity_type": "product", "entity_id": "p9"}`
	req, _ := http.NewRequest(http.MethodPost, env.tracking.URL+"/events", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", "header-session")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to send track request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected status 202 Accepted, got %d", resp.StatusCode)
	}

	var visited struct {
		Visited bool `json:"visited"`
	}
	env.getJSON(t, fmt.Sprintf("%s/stores/s2/sessions/header-session/visited/p9", env.tracking.URL), &visited)
	if !visited.Visited {
		t.Fatal("Expected session from X-Session-ID header to be attributed")
	}
}
