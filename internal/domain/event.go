package domain

import (
	"encoding/json"
	"time"
)

// Recognized event types. Unknown types are accepted and archived but
// update no aggregates.
const (
	EventProductView         = "product_view"
	EventProductRevisit      = "product_revisit"
	EventProductDetailExpand = "product_detail_expand"
	EventCartAdd             = "cart_add"
	EventCartAbandon         = "cart_abandon"
	EventCheckoutStart       = "checkout_start"
	EventCheckoutComplete    = "checkout_complete"
	EventSearch              = "search"
)

// Event is the atomic unit of the analytics pipeline. It is immutable
// once tracked: its only destinations are the hot raw log and, after a
// flush, an archived batch.
type Event struct {
	ID         string          `json:"event_id"`
	StoreID    string          `json:"store_id"`
	SessionID  string          `json:"session_id"`
	CustomerID string          `json:"customer_id,omitempty"`
	EventType  string          `json:"event_type"`
	EntityType string          `json:"entity_type,omitempty"`
	EntityID   string          `json:"entity_id,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// EventBatch is one archived flush: every raw event drained from a
// store's hot log in a single flush, keyed by store and flush time.
type EventBatch struct {
	StoreID   string    `json:"store_id"`
	FlushedAt time.Time `json:"flushed_at"`
	Events    []Event   `json:"events"`
}
