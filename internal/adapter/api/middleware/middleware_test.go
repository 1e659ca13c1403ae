package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/user/storefront-analytics/internal/adapter/metrics"
)

// promauto registers on the default registry; one set of collectors
// for the whole test binary.
var testMetrics = metrics.New()

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set("X-Session-ID", "sess-log-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected middleware to pass status through, got %d", rec.Code)
	}

	line := buf.String()
	for _, want := range []string{`"status":418`, `"session_id":"sess-log-1"`, `"path":"/events"`, `"bytes":15`} {
		if !strings.Contains(line, want) {
			t.Errorf("expected log line to contain %s, got %s", want, line)
		}
	}
}

func TestLogging_NoSessionHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if strings.Contains(buf.String(), "session_id") {
		t.Errorf("expected no session_id attr without the header, got %s", buf.String())
	}
}

func TestRateLimit(t *testing.T) {
	// Burst of 2 with a negligible refill rate: the third request in a
	// row must be rejected and counted.
	handler := RateLimit(0.001, 2, testMetrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rejected := testutil.ToFloat64(testMetrics.EventsTotal.WithLabelValues("unknown", "error_rate_limited"))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", nil))
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusAccepted || codes[1] != http.StatusAccepted {
		t.Fatalf("expected first two requests within burst to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third request to be rejected with 429, got %v", codes)
	}

	after := testutil.ToFloat64(testMetrics.EventsTotal.WithLabelValues("unknown", "error_rate_limited"))
	if after-rejected != 1 {
		t.Errorf("expected 1 rate-limited rejection counted, got %v", after-rejected)
	}
}
