package domain

import "time"

type CartStatus string

const (
	CartStatusActive    CartStatus = "ACTIVE"
	CartStatusCompleted CartStatus = "COMPLETED"
)

const (
	// MaxQuantityPerItem caps a single cart line.
	MaxQuantityPerItem = 99
	// MaxTotalItems caps the sum of quantities across the whole cart.
	MaxTotalItems = 100
)

// Cart is a user's shopping cart. A user has at most one ACTIVE cart;
// COMPLETED carts are retained as order context and never reopen.
type Cart struct {
	ID         int64
	UserID     int64
	Status     CartStatus
	Subtotal   Cents
	TotalItems int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CartItem is one line of a cart. UnitPrice is the snapshot price captured
// when the line was first added; later SKU price changes do not touch it.
// (cart_id, sku_id) is unique: re-adding a SKU increments the existing line.
type CartItem struct {
	ID        int64
	CartID    int64
	SKUID     int64
	Quantity  int
	UnitPrice Cents

	// Denormalized on read for view building.
	SKU          string
	BookID       int64
	BookTitle    string
	CurrentPrice Cents
}

// CartTotals recomputes subtotal and total item count from snapshot prices.
func CartTotals(items []CartItem) (subtotal Cents, totalItems int) {
	for _, it := range items {
		subtotal += it.UnitPrice * Cents(it.Quantity)
		totalItems += it.Quantity
	}
	return subtotal, totalItems
}
