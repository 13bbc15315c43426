package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mptx4869/store/internal/domain"
)

const activeCartQuery = `
SELECT id, user_id, status, subtotal, total_items, created_at, updated_at
FROM shopping_carts WHERE user_id = $1 AND status = 'ACTIVE'`

func (r *Repository) GetActiveCart(ctx context.Context, q DBTX, userID int64) (*domain.Cart, error) {
	return scanCart(q.QueryRowContext(ctx, activeCartQuery, userID))
}

// GetActiveCartForUpdate locks the cart row, serializing all mutations of a
// user's cart for the duration of the transaction.
func (r *Repository) GetActiveCartForUpdate(ctx context.Context, q DBTX, userID int64) (*domain.Cart, error) {
	return scanCart(q.QueryRowContext(ctx, activeCartQuery+` FOR UPDATE`, userID))
}

func scanCart(row *sql.Row) (*domain.Cart, error) {
	var c domain.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.Status, &c.Subtotal, &c.TotalItems, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	return &c, nil
}

// CreateCart inserts a fresh ACTIVE cart for the user. The partial unique
// index on (user_id) WHERE status = 'ACTIVE' enforces the one-active-cart
// invariant at the schema level.
func (r *Repository) CreateCart(ctx context.Context, q DBTX, userID int64) (*domain.Cart, error) {
	query := `INSERT INTO shopping_carts (user_id, status, subtotal, total_items)
	          VALUES ($1, 'ACTIVE', 0, 0)
	          RETURNING id, user_id, status, subtotal, total_items, created_at, updated_at`
	return scanCart(q.QueryRowContext(ctx, query, userID))
}

func (r *Repository) UpdateCartTotals(ctx context.Context, q DBTX, cartID int64, subtotal domain.Cents, totalItems int) error {
	query := `UPDATE shopping_carts SET subtotal = $2, total_items = $3, updated_at = NOW() WHERE id = $1`
	if _, err := q.ExecContext(ctx, query, cartID, subtotal, totalItems); err != nil {
		return fmt.Errorf("update cart totals: %w", err)
	}
	return nil
}

// CompleteCart marks a cart COMPLETED with zeroed totals; its items are
// deleted separately. Completed carts never reopen.
func (r *Repository) CompleteCart(ctx context.Context, q DBTX, cartID int64) error {
	query := `UPDATE shopping_carts SET status = 'COMPLETED', subtotal = 0, total_items = 0, updated_at = NOW() WHERE id = $1`
	if _, err := q.ExecContext(ctx, query, cartID); err != nil {
		return fmt.Errorf("complete cart: %w", err)
	}
	return nil
}

const cartItemQuery = `
SELECT ci.id, ci.cart_id, ci.sku_id, ci.quantity, ci.unit_price,
       s.sku_code, s.book_id, b.title,
       COALESCE(s.price_override, b.base_price)
FROM cart_items ci
JOIN product_skus s ON s.id = ci.sku_id
JOIN books b ON b.id = s.book_id`

// ListCartItems returns a cart's lines joined with the SKU's current
// effective price so the view layer can report price drift.
func (r *Repository) ListCartItems(ctx context.Context, q DBTX, cartID int64) ([]domain.CartItem, error) {
	rows, err := q.QueryContext(ctx, cartItemQuery+` WHERE ci.cart_id = $1 ORDER BY ci.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.SKUID, &it.Quantity, &it.UnitPrice,
			&it.SKU, &it.BookID, &it.BookTitle, &it.CurrentPrice); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *Repository) GetCartItem(ctx context.Context, q DBTX, itemID int64) (*domain.CartItem, error) {
	return scanCartItem(q.QueryRowContext(ctx, cartItemQuery+` WHERE ci.id = $1`, itemID))
}

// FindCartItemBySku locates an existing line for (cart, sku), if any.
func (r *Repository) FindCartItemBySku(ctx context.Context, q DBTX, cartID, skuID int64) (*domain.CartItem, error) {
	return scanCartItem(q.QueryRowContext(ctx, cartItemQuery+` WHERE ci.cart_id = $1 AND ci.sku_id = $2`, cartID, skuID))
}

func scanCartItem(row *sql.Row) (*domain.CartItem, error) {
	var it domain.CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.SKUID, &it.Quantity, &it.UnitPrice,
		&it.SKU, &it.BookID, &it.BookTitle, &it.CurrentPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart item: %w", err)
	}
	return &it, nil
}

func (r *Repository) InsertCartItem(ctx context.Context, q DBTX, it *domain.CartItem) error {
	query := `INSERT INTO cart_items (cart_id, sku_id, quantity, unit_price)
	          VALUES ($1, $2, $3, $4) RETURNING id`
	err := q.QueryRowContext(ctx, query, it.CartID, it.SKUID, it.Quantity, it.UnitPrice).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	return nil
}

func (r *Repository) UpdateCartItemQuantity(ctx context.Context, q DBTX, itemID int64, quantity int) error {
	query := `UPDATE cart_items SET quantity = $2 WHERE id = $1`
	res, err := q.ExecContext(ctx, query, itemID, quantity)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *Repository) DeleteCartItem(ctx context.Context, q DBTX, itemID int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *Repository) DeleteCartItems(ctx context.Context, q DBTX, cartID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}
	return nil
}
