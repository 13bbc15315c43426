package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mptx4869/store/internal/domain"
)

func (r *Repository) GetBook(ctx context.Context, q DBTX, bookID int64) (*domain.Book, error) {
	query := `SELECT id, title, base_price, default_sku_id, created_at, updated_at FROM books WHERE id = $1`
	var b domain.Book
	err := q.QueryRowContext(ctx, query, bookID).Scan(
		&b.ID, &b.Title, &b.BasePrice, &b.DefaultSKUID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query book: %w", err)
	}
	return &b, nil
}

func (r *Repository) ListBooks(ctx context.Context, q DBTX, limit, offset int) ([]domain.Book, error) {
	query := `SELECT id, title, base_price, default_sku_id, created_at, updated_at
	          FROM books ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := q.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.BasePrice, &b.DefaultSKUID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return books, nil
}

const skuQuery = `
SELECT s.id, s.book_id, s.sku_code, s.format, s.price_override, b.title, b.base_price
FROM product_skus s
JOIN books b ON b.id = s.book_id`

// GetSku reads a SKU joined with its owning book so the effective price can
// be resolved without a second query.
func (r *Repository) GetSku(ctx context.Context, q DBTX, skuID int64) (*domain.ProductSku, error) {
	return scanSku(q.QueryRowContext(ctx, skuQuery+` WHERE s.id = $1`, skuID))
}

// GetDefaultSku resolves a book's default SKU, falling back to the first SKU
// by id when none is designated.
func (r *Repository) GetDefaultSku(ctx context.Context, q DBTX, book *domain.Book) (*domain.ProductSku, error) {
	if book.DefaultSKUID != nil {
		return r.GetSku(ctx, q, *book.DefaultSKUID)
	}
	return scanSku(q.QueryRowContext(ctx, skuQuery+` WHERE s.book_id = $1 ORDER BY s.id LIMIT 1`, book.ID))
}

func (r *Repository) ListSkusByBook(ctx context.Context, q DBTX, bookID int64) ([]domain.ProductSku, error) {
	rows, err := q.QueryContext(ctx, skuQuery+` WHERE s.book_id = $1 ORDER BY s.id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query skus: %w", err)
	}
	defer rows.Close()

	var skus []domain.ProductSku
	for rows.Next() {
		var s domain.ProductSku
		if err := rows.Scan(&s.ID, &s.BookID, &s.SKU, &s.Format, &s.PriceOverride,
			&s.BookTitle, &s.BookBasePrice); err != nil {
			return nil, fmt.Errorf("scan sku row: %w", err)
		}
		skus = append(skus, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return skus, nil
}

func scanSku(row *sql.Row) (*domain.ProductSku, error) {
	var s domain.ProductSku
	err := row.Scan(&s.ID, &s.BookID, &s.SKU, &s.Format, &s.PriceOverride,
		&s.BookTitle, &s.BookBasePrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSkuNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query sku: %w", err)
	}
	return &s, nil
}
