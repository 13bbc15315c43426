package domain

import "time"

// Cents is a money amount in integer cents. All prices and totals are kept in
// cents so arithmetic stays exact.
type Cents int64

type Book struct {
	ID           int64
	Title        string
	BasePrice    Cents
	DefaultSKUID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProductSku is a sellable variant of a book. SKU codes are unique and
// case-sensitive.
type ProductSku struct {
	ID            int64
	BookID        int64
	SKU           string
	Format        string
	PriceOverride *Cents

	// BookTitle and BookBasePrice are denormalized from the owning book on read.
	BookTitle     string
	BookBasePrice Cents
}

// EffectivePrice resolves the current selling price: the override if present,
// otherwise the owning book's base price.
func (s *ProductSku) EffectivePrice() Cents {
	if s.PriceOverride != nil {
		return *s.PriceOverride
	}
	return s.BookBasePrice
}
