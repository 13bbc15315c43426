package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mptx4869/store/internal/domain"
)

// GetInventoryForUpdate reads an inventory row under a row-exclusive lock.
// The lock is held until the surrounding transaction commits or rolls back,
// which is what makes reserve/release/fulfill atomic under concurrency.
func (r *Repository) GetInventoryForUpdate(ctx context.Context, q DBTX, skuID int64) (*domain.Inventory, error) {
	query := `SELECT sku_id, stock, reserved, last_updated FROM inventory WHERE sku_id = $1 FOR UPDATE`
	return scanInventory(q.QueryRowContext(ctx, query, skuID))
}

// GetInventory reads an inventory row without locking (best-effort snapshot).
func (r *Repository) GetInventory(ctx context.Context, q DBTX, skuID int64) (*domain.Inventory, error) {
	query := `SELECT sku_id, stock, reserved, last_updated FROM inventory WHERE sku_id = $1`
	return scanInventory(q.QueryRowContext(ctx, query, skuID))
}

func scanInventory(row *sql.Row) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := row.Scan(&inv.SKUID, &inv.Stock, &inv.Reserved, &inv.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInventoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return &inv, nil
}

// SaveInventory writes back a row previously read with GetInventoryForUpdate.
func (r *Repository) SaveInventory(ctx context.Context, q DBTX, inv *domain.Inventory) error {
	query := `UPDATE inventory SET stock = $2, reserved = $3, last_updated = NOW() WHERE sku_id = $1`
	res, err := q.ExecContext(ctx, query, inv.SKUID, inv.Stock, inv.Reserved)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInventoryNotFound
	}
	return nil
}

// InventoryRow is an admin listing row: the ledger joined with its SKU and book.
type InventoryRow struct {
	Inventory domain.Inventory
	SKU       string
	Format    string
	BookID    int64
	BookTitle string
}

const inventoryRowQuery = `
SELECT i.sku_id, i.stock, i.reserved, i.last_updated, s.sku_code, s.format, b.id, b.title
FROM inventory i
JOIN product_skus s ON s.id = i.sku_id
JOIN books b ON b.id = s.book_id`

// ListInventory returns a page of inventory rows ordered by SKU id.
func (r *Repository) ListInventory(ctx context.Context, q DBTX, limit, offset int) ([]InventoryRow, error) {
	query := inventoryRowQuery + ` ORDER BY i.sku_id LIMIT $1 OFFSET $2`
	return queryInventoryRows(ctx, q, query, limit, offset)
}

// ListLowStockInventory returns rows with available <= threshold, out-of-stock
// rows included.
func (r *Repository) ListLowStockInventory(ctx context.Context, q DBTX, threshold int) ([]InventoryRow, error) {
	query := inventoryRowQuery + ` WHERE i.stock - i.reserved <= $1 ORDER BY i.sku_id`
	return queryInventoryRows(ctx, q, query, threshold)
}

func queryInventoryRows(ctx context.Context, q DBTX, query string, args ...any) ([]InventoryRow, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inventory rows: %w", err)
	}
	defer rows.Close()

	var out []InventoryRow
	for rows.Next() {
		var row InventoryRow
		if err := rows.Scan(
			&row.Inventory.SKUID,
			&row.Inventory.Stock,
			&row.Inventory.Reserved,
			&row.Inventory.LastUpdated,
			&row.SKU,
			&row.Format,
			&row.BookID,
			&row.BookTitle,
		); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
