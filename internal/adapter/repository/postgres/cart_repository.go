package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/storefront-analytics/internal/domain"
)

// CartRepository reads cart-inactivity records from the order/cart
// subsystem's database. It never writes: cart state belongs to the
// order subsystem, the analytics pipeline only observes it.
type CartRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCartRepository creates a PostgreSQL-backed cart repository.
func NewCartRepository(db *sql.DB, logger *slog.Logger) *CartRepository {
	return &CartRepository{db: db, logger: logger.With("component", "postgres_cart_repository")}
}

// FindAbandoned returns active carts with a known contact email whose
// last activity is older than the inactivity threshold.
func (r *CartRepository) FindAbandoned(ctx context.Context, storeID string, inactiveFor time.Duration) ([]domain.AbandonedCart, error) {
	cutoff := time.Now().UTC().Add(-inactiveFor)

	const query = `
		SELECT pid, store_id, session_id, customer_id, email, total, currency, last_activity_at
		FROM carts
		WHERE store_id = $1
		  AND status = 'active'
		  AND email IS NOT NULL
		  AND last_activity_at < $2
		ORDER BY last_activity_at;
	`

	rows, err := r.db.QueryContext(ctx, query, storeID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query abandoned carts: %w", err)
	}
	defer rows.Close()

	var carts []domain.AbandonedCart
	for rows.Next() {
		var (
			cart       domain.AbandonedCart
			customerID sql.NullString
		)
		if err := rows.Scan(&cart.PID, &cart.StoreID, &cart.SessionID, &customerID, &cart.Email, &cart.TotalCents, &cart.Currency, &cart.LastActivityAt); err != nil {
			return nil, fmt.Errorf("failed to scan abandoned cart row: %w", err)
		}
		cart.CustomerID = customerID.String
		carts = append(carts, cart)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate abandoned cart rows: %w", err)
	}

	return carts, nil
}
