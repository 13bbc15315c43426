package domain

import (
	"fmt"
	"time"
)

// LowStockThreshold is the available-unit count at or below which a SKU is
// reported as LOW_STOCK.
const LowStockThreshold = 10

type StockStatus string

const (
	StockStatusOut StockStatus = "OUT_OF_STOCK"
	StockStatusLow StockStatus = "LOW_STOCK"
	StockStatusIn  StockStatus = "IN_STOCK"
)

// Inventory is the per-SKU ledger row: stock counts units physically owned,
// reserved counts units allocated to non-terminal orders.
// Invariant: 0 <= reserved <= stock.
type Inventory struct {
	SKUID       int64
	Stock       int
	Reserved    int
	LastUpdated time.Time
}

// Available returns stock - reserved, the units a new reservation may consume.
func (i *Inventory) Available() int {
	return i.Stock - i.Reserved
}

func (i *Inventory) Status() StockStatus {
	avail := i.Available()
	switch {
	case avail <= 0:
		return StockStatusOut
	case avail <= LowStockThreshold:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

// Reserve allocates n units to an order. The caller must hold the row lock.
func (i *Inventory) Reserve(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: reserve quantity must be positive", ErrValidation)
	}
	if i.Available() < n {
		return &InsufficientStockError{SKUID: i.SKUID, Requested: n, Available: i.Available()}
	}
	i.Reserved += n
	return nil
}

// Release returns n reserved units to the available pool.
func (i *Inventory) Release(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: release quantity must be positive", ErrValidation)
	}
	if i.Reserved < n {
		return fmt.Errorf("%w: cannot release %d, only %d reserved for sku %d",
			ErrConflict, n, i.Reserved, i.SKUID)
	}
	i.Reserved -= n
	return nil
}

// Fulfill removes n units from both stock and reserved upon delivery.
func (i *Inventory) Fulfill(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: fulfill quantity must be positive", ErrValidation)
	}
	if i.Stock < n {
		return fmt.Errorf("%w: cannot fulfill %d, only %d in stock for sku %d",
			ErrConflict, n, i.Stock, i.SKUID)
	}
	if i.Reserved < n {
		return fmt.Errorf("%w: cannot fulfill %d, only %d reserved for sku %d",
			ErrConflict, n, i.Reserved, i.SKUID)
	}
	i.Stock -= n
	i.Reserved -= n
	return nil
}

type AdjustAction string

const (
	AdjustAdd AdjustAction = "ADD"
	AdjustSet AdjustAction = "SET"
)

// Adjust applies an administrative stock/reserved correction. ADD increments
// stock by the delta, SET replaces it. The result must keep stock >= reserved.
func (i *Inventory) Adjust(stock, reserved *int, action AdjustAction) error {
	if stock != nil {
		if *stock < 0 {
			return fmt.Errorf("%w: stock must not be negative", ErrValidation)
		}
		switch action {
		case AdjustAdd:
			i.Stock += *stock
		case AdjustSet, "":
			i.Stock = *stock
		default:
			return fmt.Errorf("%w: unknown action %q", ErrValidation, action)
		}
	}
	if reserved != nil {
		if *reserved < 0 {
			return fmt.Errorf("%w: reserved must not be negative", ErrValidation)
		}
		i.Reserved = *reserved
	}
	if i.Stock < i.Reserved {
		return fmt.Errorf("%w: cannot set stock to %d, reserved stock is %d",
			ErrConflict, i.Stock, i.Reserved)
	}
	return nil
}
