package domain

import (
	"encoding/json"
	"time"
)

type OrderEventType string

const (
	EventOrderPlaced        OrderEventType = "order_placed"
	EventOrderStatusChanged OrderEventType = "order_status_changed"
)

// OrderEvent is an outbox row written in the same transaction as the order
// mutation it describes. A background poller publishes it and marks it
// processed; delivery is at-least-once, consumers deduplicate by ID.
type OrderEvent struct {
	ID          string
	OrderID     int64
	UserID      int64
	Type        OrderEventType
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
