package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration. Backend-specific settings
// (RedisAddr, PostgresURL) are deliberately not marked required: a
// missing value fails only the component that needs it, not the whole
// process.
type Config struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr   string `env:"SERVER_ADDR" envDefault:":8080"`
	AdminAddr    string `env:"ADMIN_ADDR" envDefault:":9091"`
	MaxEventSize int64  `env:"MAX_EVENT_SIZE_BYTES" envDefault:"65536"` // 64KB

	// IngestRateLimit caps accepted events per second on the HTTP
	// ingest path; IngestRateBurst is the token-bucket burst size.
	IngestRateLimit float64 `env:"INGEST_RATE_LIMIT" envDefault:"500"`
	IngestRateBurst int     `env:"INGEST_RATE_BURST" envDefault:"100"`

	// HotStoreBackend selects the hot-tier implementation: "memory"
	// for a single instance, "redis" for multi-instance deployments.
	HotStoreBackend string `env:"HOT_STORE_BACKEND" envDefault:"memory"`
	RedisAddr       string `env:"REDIS_ADDR"`

	// VisitorCountMode selects exact sets or a probabilistic distinct
	// counter for product visitor-sets: "exact" or "approximate".
	// Approximate mode is only available on the redis backend.
	VisitorCountMode string `env:"VISITOR_COUNT_MODE" envDefault:"exact"`

	// HotRetention bounds the lifetime of hot-tier entries;
	// HotMaxEntries additionally bounds the in-process backend.
	HotRetention  time.Duration `env:"HOT_RETENTION" envDefault:"168h"` // 7 days
	HotMaxEntries int           `env:"HOT_MAX_ENTRIES" envDefault:"100000"`

	ArchivePath string `env:"ARCHIVE_PATH" envDefault:"./data/archive"`

	// StoreTimeout bounds every individual call against either storage
	// tier; one event, one store's flush, or one session's score fails
	// in isolation on expiry.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	FlushInterval    time.Duration `env:"FLUSH_INTERVAL" envDefault:"1m"`
	ScoreInterval    time.Duration `env:"SCORE_INTERVAL" envDefault:"5m"`
	CartScanInterval time.Duration `env:"CART_SCAN_INTERVAL" envDefault:"15m"`

	// CartAbandonThreshold is the inactivity window after which an
	// active cart with a known email counts as abandoned.
	CartAbandonThreshold time.Duration `env:"CART_ABANDON_THRESHOLD" envDefault:"60m"`
	PostgresURL          string        `env:"POSTGRES_URL"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
