package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mptx4869/store/internal/domain"
)

const orderColumns = `id, user_id, cart_id, status, currency, total_amount,
       shipping_address, shipping_phone, billing_address, billing_phone,
       placed_at, created_at, updated_at`

// InsertOrder persists the order header and its items, filling in the
// generated IDs.
func (r *Repository) InsertOrder(ctx context.Context, q DBTX, order *domain.Order) error {
	query := `INSERT INTO orders (user_id, cart_id, status, currency, total_amount,
	              shipping_address, shipping_phone, billing_address, billing_phone, placed_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id, created_at, updated_at`
	err := q.QueryRowContext(ctx, query,
		order.UserID,
		order.CartID,
		order.Status,
		order.Currency,
		order.TotalAmount,
		order.ShippingAddress,
		order.ShippingPhone,
		order.BillingAddress,
		order.BillingPhone,
		order.PlacedAt,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, sku_id, book_id, quantity, unit_price)
	              VALUES ($1, $2, $3, $4, $5) RETURNING id`
	for i := range order.Items {
		it := &order.Items[i]
		it.OrderID = order.ID
		if err := q.QueryRowContext(ctx, itemQuery,
			it.OrderID, it.SKUID, it.BookID, it.Quantity, it.UnitPrice).Scan(&it.ID); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, q DBTX, orderID int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.scanOrderWithItems(ctx, q, q.QueryRowContext(ctx, query, orderID))
}

// GetOrderForUpdate locks the order row for a status transition.
func (r *Repository) GetOrderForUpdate(ctx context.Context, q DBTX, orderID int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.scanOrderWithItems(ctx, q, q.QueryRowContext(ctx, query, orderID))
}

func (r *Repository) scanOrderWithItems(ctx context.Context, q DBTX, row *sql.Row) (*domain.Order, error) {
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	items, err := r.listOrderItems(ctx, q, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func scanOrder(row *sql.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.CartID, &o.Status, &o.Currency, &o.TotalAmount,
		&o.ShippingAddress, &o.ShippingPhone, &o.BillingAddress, &o.BillingPhone,
		&o.PlacedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return &o, nil
}

// listOrderItems returns items in ascending sku_id order, the same order in
// which inventory rows are locked during transitions.
func (r *Repository) listOrderItems(ctx context.Context, q DBTX, orderID int64) ([]domain.OrderItem, error) {
	query := `SELECT oi.id, oi.order_id, oi.sku_id, oi.book_id, oi.quantity, oi.unit_price,
	                 s.sku_code, b.title
	          FROM order_items oi
	          JOIN product_skus s ON s.id = oi.sku_id
	          JOIN books b ON b.id = oi.book_id
	          WHERE oi.order_id = $1 ORDER BY oi.sku_id`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.SKUID, &it.BookID, &it.Quantity,
			&it.UnitPrice, &it.SKU, &it.BookTitle); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, q DBTX, userID int64) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryOrders(ctx, q, query, userID)
}

// ListOrders is the admin listing with an optional status filter.
func (r *Repository) ListOrders(ctx context.Context, q DBTX, status domain.OrderStatus, limit, offset int) ([]domain.Order, error) {
	if status != "" {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		return r.queryOrders(ctx, q, query, status, limit, offset)
	}
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.queryOrders(ctx, q, query, limit, offset)
}

func (r *Repository) queryOrders(ctx context.Context, q DBTX, query string, args ...any) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.CartID, &o.Status, &o.Currency, &o.TotalAmount,
			&o.ShippingAddress, &o.ShippingPhone, &o.BillingAddress, &o.BillingPhone,
			&o.PlacedAt, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for i := range orders {
		items, err := r.listOrderItems(ctx, q, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, q DBTX, orderID int64, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := q.ExecContext(ctx, query, orderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
