// Package inventory is the per-SKU stock ledger. Every read-then-write goes
// through a row-exclusive lock held until the transaction commits, so two
// concurrent reservations for the same SKU can never both consume the last
// units.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mptx4869/store/internal/domain"
	"github.com/mptx4869/store/internal/repository"
)

// Ledger is the minimal read-modify-write surface for one inventory row. The
// order service composes these calls into its own transactions.
type Ledger interface {
	GetInventoryForUpdate(ctx context.Context, q repository.DBTX, skuID int64) (*domain.Inventory, error)
	SaveInventory(ctx context.Context, q repository.DBTX, inv *domain.Inventory) error
}

// Store is the slice of the persistence gateway the ledger service needs.
type Store interface {
	Ledger
	WithTx(ctx context.Context, fn func(q repository.DBTX) error) error
	DB() repository.DBTX
	GetInventory(ctx context.Context, q repository.DBTX, skuID int64) (*domain.Inventory, error)
	GetSku(ctx context.Context, q repository.DBTX, skuID int64) (*domain.ProductSku, error)
	GetBook(ctx context.Context, q repository.DBTX, bookID int64) (*domain.Book, error)
	GetDefaultSku(ctx context.Context, q repository.DBTX, book *domain.Book) (*domain.ProductSku, error)
	ListInventory(ctx context.Context, q repository.DBTX, limit, offset int) ([]repository.InventoryRow, error)
	ListLowStockInventory(ctx context.Context, q repository.DBTX, threshold int) ([]repository.InventoryRow, error)
}

type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log}
}

// StockView is the availability report for one SKU.
type StockView struct {
	BookID         int64              `json:"bookId"`
	SKUID          int64              `json:"skuId"`
	SKU            string             `json:"sku"`
	TotalStock     int                `json:"totalStock"`
	ReservedStock  int                `json:"reservedStock"`
	AvailableStock int                `json:"availableStock"`
	InStock        bool               `json:"inStock"`
	Status         domain.StockStatus `json:"status"`
}

// Availability reports stock for a SKU. A missing ledger row reads as zero
// stock rather than an error.
func (s *Service) Availability(ctx context.Context, skuID int64) (*StockView, error) {
	sku, err := s.store.GetSku(ctx, s.store.DB(), skuID)
	if errors.Is(err, repository.ErrSkuNotFound) {
		return nil, fmt.Errorf("sku %d: %w", skuID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	inv, err := s.store.GetInventory(ctx, s.store.DB(), skuID)
	if errors.Is(err, repository.ErrInventoryNotFound) {
		inv = &domain.Inventory{SKUID: skuID}
	} else if err != nil {
		return nil, err
	}

	return stockView(sku, inv), nil
}

// AvailabilityByBook reports stock for a book's default SKU.
func (s *Service) AvailabilityByBook(ctx context.Context, bookID int64) (*StockView, error) {
	book, err := s.store.GetBook(ctx, s.store.DB(), bookID)
	if errors.Is(err, repository.ErrBookNotFound) {
		return nil, fmt.Errorf("book %d: %w", bookID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	sku, err := s.store.GetDefaultSku(ctx, s.store.DB(), book)
	if errors.Is(err, repository.ErrSkuNotFound) {
		return nil, fmt.Errorf("no sku for book %d: %w", bookID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.Availability(ctx, sku.ID)
}

func stockView(sku *domain.ProductSku, inv *domain.Inventory) *StockView {
	return &StockView{
		BookID:         sku.BookID,
		SKUID:          sku.ID,
		SKU:            sku.SKU,
		TotalStock:     inv.Stock,
		ReservedStock:  inv.Reserved,
		AvailableStock: inv.Available(),
		InStock:        inv.Available() > 0,
		Status:         inv.Status(),
	}
}

// Reserve allocates n units of a SKU inside its own transaction.
func (s *Service) Reserve(ctx context.Context, skuID int64, n int) error {
	return s.store.WithTx(ctx, func(q repository.DBTX) error {
		return ApplyReserve(ctx, s.store, q, skuID, n)
	})
}

// Release returns n reserved units inside its own transaction.
func (s *Service) Release(ctx context.Context, skuID int64, n int) error {
	return s.store.WithTx(ctx, func(q repository.DBTX) error {
		return ApplyRelease(ctx, s.store, q, skuID, n)
	})
}

// Fulfill consumes n reserved units from stock inside its own transaction.
func (s *Service) Fulfill(ctx context.Context, skuID int64, n int) error {
	return s.store.WithTx(ctx, func(q repository.DBTX) error {
		return ApplyFulfill(ctx, s.store, q, skuID, n)
	})
}

// ApplyReserve runs the reserve ledger operation against the caller's
// transaction. Order creation composes several of these atomically.
func ApplyReserve(ctx context.Context, ledger Ledger, q repository.DBTX, skuID int64, n int) error {
	return applyLedgerOp(ctx, ledger, q, skuID, func(inv *domain.Inventory) error {
		return inv.Reserve(n)
	})
}

func ApplyRelease(ctx context.Context, ledger Ledger, q repository.DBTX, skuID int64, n int) error {
	return applyLedgerOp(ctx, ledger, q, skuID, func(inv *domain.Inventory) error {
		return inv.Release(n)
	})
}

func ApplyFulfill(ctx context.Context, ledger Ledger, q repository.DBTX, skuID int64, n int) error {
	return applyLedgerOp(ctx, ledger, q, skuID, func(inv *domain.Inventory) error {
		return inv.Fulfill(n)
	})
}

func applyLedgerOp(ctx context.Context, ledger Ledger, q repository.DBTX, skuID int64, op func(*domain.Inventory) error) error {
	inv, err := ledger.GetInventoryForUpdate(ctx, q, skuID)
	if errors.Is(err, repository.ErrInventoryNotFound) {
		return fmt.Errorf("inventory for sku %d: %w", skuID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := op(inv); err != nil {
		return err
	}
	return ledger.SaveInventory(ctx, q, inv)
}

// Row is the admin inventory listing entry.
type Row struct {
	SKUID          int64              `json:"skuId"`
	SKU            string             `json:"sku"`
	BookID         int64              `json:"bookId"`
	BookTitle      string             `json:"bookTitle"`
	Format         string             `json:"format"`
	TotalStock     int                `json:"totalStock"`
	ReservedStock  int                `json:"reservedStock"`
	AvailableStock int                `json:"availableStock"`
	Status         domain.StockStatus `json:"status"`
	LastUpdated    time.Time          `json:"lastUpdated"`
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Row, error) {
	rows, err := s.store.ListInventory(ctx, s.store.DB(), limit, offset)
	if err != nil {
		return nil, err
	}
	return toRows(rows), nil
}

// LowStock lists rows with available <= the low-stock threshold, including
// out-of-stock rows.
func (s *Service) LowStock(ctx context.Context) ([]Row, error) {
	rows, err := s.store.ListLowStockInventory(ctx, s.store.DB(), domain.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	return toRows(rows), nil
}

func toRows(rows []repository.InventoryRow) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, Row{
			SKUID:          r.Inventory.SKUID,
			SKU:            r.SKU,
			BookID:         r.BookID,
			BookTitle:      r.BookTitle,
			Format:         r.Format,
			TotalStock:     r.Inventory.Stock,
			ReservedStock:  r.Inventory.Reserved,
			AvailableStock: r.Inventory.Available(),
			Status:         r.Inventory.Status(),
			LastUpdated:    r.Inventory.LastUpdated,
		})
	}
	return out
}

// Adjust applies an administrative stock correction.
func (s *Service) Adjust(ctx context.Context, skuID int64, stock, reserved *int, action domain.AdjustAction) (*StockView, error) {
	var view *StockView
	err := s.store.WithTx(ctx, func(q repository.DBTX) error {
		sku, err := s.store.GetSku(ctx, q, skuID)
		if errors.Is(err, repository.ErrSkuNotFound) {
			return fmt.Errorf("sku %d: %w", skuID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}

		inv, err := s.store.GetInventoryForUpdate(ctx, q, skuID)
		if errors.Is(err, repository.ErrInventoryNotFound) {
			return fmt.Errorf("inventory for sku %d: %w", skuID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}

		if err := inv.Adjust(stock, reserved, action); err != nil {
			return err
		}
		if err := s.store.SaveInventory(ctx, q, inv); err != nil {
			return err
		}
		view = stockView(sku, inv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("sku_id", skuID).Str("action", string(action)).
		Int("stock", view.TotalStock).Int("reserved", view.ReservedStock).
		Msg("inventory adjusted")
	return view, nil
}
