package domain

import "time"

type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "PLACED"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusReturned   OrderStatus = "RETURNED"
)

// orderTransitions is the full status graph. Terminal states have no entry.
//
//	PLACED     -> CONFIRMED | CANCELLED
//	CONFIRMED  -> PROCESSING | CANCELLED
//	PROCESSING -> SHIPPED            (goods handed off, cannot cancel)
//	SHIPPED    -> DELIVERED | RETURNED
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:     {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusReturned},
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusReturned
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Cancellable reports whether a customer may still cancel: only before the
// warehouse starts processing.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPlaced || s == OrderStatusConfirmed
}

func (s OrderStatus) String() string {
	return string(s)
}

// Order is an immutable-once-created snapshot of a checkout. TotalAmount is
// fixed at creation and never mutated.
type Order struct {
	ID              int64
	UserID          int64
	CartID          int64
	Status          OrderStatus
	Currency        string
	TotalAmount     Cents
	ShippingAddress string
	ShippingPhone   string
	BillingAddress  string
	BillingPhone    string
	PlacedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []OrderItem
}

// OrderItem copies a cart line at checkout. Immutable.
type OrderItem struct {
	ID        int64
	OrderID   int64
	SKUID     int64
	BookID    int64
	Quantity  int
	UnitPrice Cents

	SKU       string
	BookTitle string
}

func (oi *OrderItem) LineTotal() Cents {
	return oi.UnitPrice * Cents(oi.Quantity)
}
