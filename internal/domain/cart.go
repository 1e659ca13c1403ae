package domain

import "time"

// AbandonedCart is a cart-inactivity record supplied by the order/cart
// subsystem. The analytics pipeline reads these to emit cart_abandon
// events; it never mutates cart state.
type AbandonedCart struct {
	PID            string
	StoreID        string
	SessionID      string
	CustomerID     string
	Email          string
	TotalCents     int64
	Currency       string
	LastActivityAt time.Time
}
