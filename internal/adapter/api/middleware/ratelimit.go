package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/user/storefront-analytics/internal/adapter/metrics"
)

// RateLimit is a middleware factory that applies a token-bucket rate
// limit. Over-limit requests are rejected with 429, not queued, and
// counted as rate-limited rejections.
func RateLimit(limit float64, burst int, m *metrics.Metrics) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				m.EventsTotal.WithLabelValues("unknown", "error_rate_limited").Inc()
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
