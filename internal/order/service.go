// Package order turns an active cart into an immutable order snapshot and
// drives it through the status graph, issuing the matching inventory ledger
// operation on each transition.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mptx4869/store/internal/cart"
	"github.com/mptx4869/store/internal/domain"
	"github.com/mptx4869/store/internal/inventory"
	"github.com/mptx4869/store/internal/repository"
)

const defaultCurrency = "USD"

type Store interface {
	inventory.Ledger
	WithTx(ctx context.Context, fn func(q repository.DBTX) error) error
	DB() repository.DBTX
	GetActiveCartForUpdate(ctx context.Context, q repository.DBTX, userID int64) (*domain.Cart, error)
	ListCartItems(ctx context.Context, q repository.DBTX, cartID int64) ([]domain.CartItem, error)
	DeleteCartItems(ctx context.Context, q repository.DBTX, cartID int64) error
	CompleteCart(ctx context.Context, q repository.DBTX, cartID int64) error
	InsertOrder(ctx context.Context, q repository.DBTX, order *domain.Order) error
	GetOrder(ctx context.Context, q repository.DBTX, orderID int64) (*domain.Order, error)
	GetOrderForUpdate(ctx context.Context, q repository.DBTX, orderID int64) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, q repository.DBTX, userID int64) ([]domain.Order, error)
	ListOrders(ctx context.Context, q repository.DBTX, status domain.OrderStatus, limit, offset int) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, q repository.DBTX, orderID int64, status domain.OrderStatus) error
	InsertOrderEvent(ctx context.Context, q repository.DBTX, ev *domain.OrderEvent) error
}

type Service struct {
	store     Store
	cartCache cart.Cache
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(store Store, cartCache cart.Cache, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		cartCache: cartCache,
		log:       log,
		now:       time.Now,
	}
}

type CreateRequest struct {
	ShippingAddress string `json:"shippingAddress"`
	ShippingPhone   string `json:"shippingPhone"`
	BillingAddress  string `json:"billingAddress"`
	BillingPhone    string `json:"billingPhone"`
	Currency        string `json:"currency"`
}

type ItemView struct {
	BookID    int64        `json:"bookId"`
	Title     string       `json:"title"`
	SKU       string       `json:"sku"`
	Quantity  int          `json:"quantity"`
	UnitPrice domain.Cents `json:"unitPrice"`
	LineTotal domain.Cents `json:"lineTotal"`
}

type View struct {
	OrderID         int64              `json:"orderId"`
	Status          domain.OrderStatus `json:"status"`
	Currency        string             `json:"currency"`
	TotalAmount     domain.Cents       `json:"totalAmount"`
	PlacedAt        time.Time          `json:"placedAt"`
	CartID          int64              `json:"cartId"`
	ShippingAddress string             `json:"shippingAddress,omitempty"`
	ShippingPhone   string             `json:"shippingPhone,omitempty"`
	BillingAddress  string             `json:"billingAddress,omitempty"`
	BillingPhone    string             `json:"billingPhone,omitempty"`
	Items           []ItemView         `json:"items"`
}

// Create checks out the user's active cart. Inventory rows are locked in
// ascending SKU id order across all lines, which excludes deadlock between
// concurrent checkouts sharing SKUs; the ordering is load-bearing, keep it.
// If any reservation fails the transaction rolls back and no order persists.
func (s *Service) Create(ctx context.Context, userID int64, req CreateRequest) (*View, error) {
	var view *View
	err := s.store.WithTx(ctx, func(q repository.DBTX) error {
		cartRow, err := s.store.GetActiveCartForUpdate(ctx, q, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return fmt.Errorf("%w: no active cart available for checkout", domain.ErrConflict)
		}
		if err != nil {
			return err
		}

		items, err := s.store.ListCartItems(ctx, q, cartRow.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: cannot create an order from an empty cart", domain.ErrConflict)
		}

		sort.Slice(items, func(i, j int) bool { return items[i].SKUID < items[j].SKUID })
		for _, it := range items {
			if err := inventory.ApplyReserve(ctx, s.store, q, it.SKUID, it.Quantity); err != nil {
				return err
			}
		}

		order := &domain.Order{
			UserID:          userID,
			CartID:          cartRow.ID,
			Status:          domain.OrderStatusPlaced,
			Currency:        resolveCurrency(req.Currency),
			ShippingAddress: req.ShippingAddress,
			ShippingPhone:   req.ShippingPhone,
			BillingAddress:  req.BillingAddress,
			BillingPhone:    req.BillingPhone,
			PlacedAt:        s.now(),
		}
		for _, it := range items {
			order.Items = append(order.Items, domain.OrderItem{
				SKUID:     it.SKUID,
				BookID:    it.BookID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				SKU:       it.SKU,
				BookTitle: it.BookTitle,
			})
			order.TotalAmount += it.UnitPrice * domain.Cents(it.Quantity)
		}

		if err := s.store.InsertOrder(ctx, q, order); err != nil {
			return err
		}
		if err := s.store.DeleteCartItems(ctx, q, cartRow.ID); err != nil {
			return err
		}
		if err := s.store.CompleteCart(ctx, q, cartRow.ID); err != nil {
			return err
		}
		if err := s.insertEvent(ctx, q, order, domain.EventOrderPlaced, nil); err != nil {
			return err
		}

		view = toView(order)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCartCache(userID)
	s.log.Info().Int64("order_id", view.OrderID).Int64("user_id", userID).
		Int64("total_cents", int64(view.TotalAmount)).Msg("order placed")
	return view, nil
}

// Get returns one of the caller's orders; foreign orders read as missing.
func (s *Service) Get(ctx context.Context, userID, orderID int64) (*View, error) {
	order, err := s.store.GetOrder(ctx, s.store.DB(), orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	return toView(order), nil
}

// List returns the caller's orders, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]View, error) {
	orders, err := s.store.ListOrdersByUser(ctx, s.store.DB(), userID)
	if err != nil {
		return nil, err
	}
	return toViews(orders), nil
}

// Cancel lets a customer cancel their own order while it is still PLACED or
// CONFIRMED. The reservation is returned to the available pool.
func (s *Service) Cancel(ctx context.Context, userID, orderID int64) (*View, error) {
	var view *View
	err := s.store.WithTx(ctx, func(q repository.DBTX) error {
		order, err := s.store.GetOrderForUpdate(ctx, q, orderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
		}
		if !order.Status.Cancellable() {
			return fmt.Errorf("%w: order cannot be cancelled, current status: %s",
				domain.ErrConflict, order.Status)
		}
		view, err = s.applyTransition(ctx, q, order, domain.OrderStatusCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("order_id", orderID).Int64("user_id", userID).Msg("order cancelled")
	return view, nil
}

// AdminGet bypasses the ownership check.
func (s *Service) AdminGet(ctx context.Context, orderID int64) (*View, error) {
	order, err := s.store.GetOrder(ctx, s.store.DB(), orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return toView(order), nil
}

// AdminList returns all orders, optionally filtered by status.
func (s *Service) AdminList(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]View, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, status)
	}
	orders, err := s.store.ListOrders(ctx, s.store.DB(), status, limit, offset)
	if err != nil {
		return nil, err
	}
	return toViews(orders), nil
}

// UpdateStatus moves an order along the status graph (admin operation).
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, target domain.OrderStatus) (*View, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrConflict, target)
	}

	var view *View
	err := s.store.WithTx(ctx, func(q repository.DBTX) error {
		order, err := s.store.GetOrderForUpdate(ctx, q, orderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}
		view, err = s.applyTransition(ctx, q, order, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("order_id", orderID).Str("status", target.String()).Msg("order status updated")
	return view, nil
}

// applyTransition validates source -> target, applies the inventory side
// effect, and writes the new status. Side effects per transition:
//
//	-> CANCELLED   release(sku, qty) per line (from PLACED or CONFIRMED)
//	-> DELIVERED   fulfill(sku, qty) per line (from SHIPPED)
//	-> RETURNED    none: stock is not re-added, goods may be damaged and the
//	               admin reconciles via an inventory adjustment
//	all others     none
//
// Order items come back sorted by ascending SKU id, matching the lock order
// used at creation.
func (s *Service) applyTransition(ctx context.Context, q repository.DBTX, order *domain.Order, target domain.OrderStatus) (*View, error) {
	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot change status of an order in final state", domain.ErrConflict)
	}
	if !order.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: cannot transition order from %s to %s",
			domain.ErrConflict, order.Status, target)
	}

	switch target {
	case domain.OrderStatusCancelled:
		for _, it := range order.Items {
			if err := inventory.ApplyRelease(ctx, s.store, q, it.SKUID, it.Quantity); err != nil {
				return nil, err
			}
		}
	case domain.OrderStatusDelivered:
		for _, it := range order.Items {
			if err := inventory.ApplyFulfill(ctx, s.store, q, it.SKUID, it.Quantity); err != nil {
				return nil, err
			}
		}
	}

	if err := s.store.UpdateOrderStatus(ctx, q, order.ID, target); err != nil {
		return nil, err
	}

	payload := map[string]string{"from": order.Status.String(), "to": target.String()}
	prev := order.Status
	order.Status = target
	if err := s.insertEvent(ctx, q, order, domain.EventOrderStatusChanged, payload); err != nil {
		order.Status = prev
		return nil, err
	}
	return toView(order), nil
}

func (s *Service) insertEvent(ctx context.Context, q repository.DBTX, order *domain.Order, typ domain.OrderEventType, extra map[string]string) error {
	body := map[string]any{
		"orderId":     order.ID,
		"userId":      order.UserID,
		"status":      order.Status,
		"totalAmount": order.TotalAmount,
		"currency":    order.Currency,
	}
	for k, v := range extra {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	return s.store.InsertOrderEvent(ctx, q, &domain.OrderEvent{
		ID:      uuid.New().String(),
		OrderID: order.ID,
		UserID:  order.UserID,
		Type:    typ,
		Payload: payload,
	})
}

func (s *Service) invalidateCartCache(userID int64) {
	if s.cartCache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cartCache.Delete(ctx, userID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("cart cache invalidate failed")
	}
}

func resolveCurrency(currency string) string {
	if currency == "" {
		return defaultCurrency
	}
	return currency
}

func toView(order *domain.Order) *View {
	view := &View{
		OrderID:         order.ID,
		Status:          order.Status,
		Currency:        order.Currency,
		TotalAmount:     order.TotalAmount,
		PlacedAt:        order.PlacedAt,
		CartID:          order.CartID,
		ShippingAddress: order.ShippingAddress,
		ShippingPhone:   order.ShippingPhone,
		BillingAddress:  order.BillingAddress,
		BillingPhone:    order.BillingPhone,
		Items:           make([]ItemView, 0, len(order.Items)),
	}
	for i := range order.Items {
		it := &order.Items[i]
		view.Items = append(view.Items, ItemView{
			BookID:    it.BookID,
			Title:     it.BookTitle,
			SKU:       it.SKU,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal(),
		})
	}
	return view
}

func toViews(orders []domain.Order) []View {
	views := make([]View, 0, len(orders))
	for i := range orders {
		views = append(views, *toView(&orders[i]))
	}
	return views
}
