// Package cart maintains a user's single active shopping cart: line
// mutations with quantity and stock precondition checks, snapshot pricing
// with drift reporting, and a cached read path.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mptx4869/store/internal/domain"
	"github.com/mptx4869/store/internal/repository"
)

type Store interface {
	WithTx(ctx context.Context, fn func(q repository.DBTX) error) error
	DB() repository.DBTX
	GetActiveCart(ctx context.Context, q repository.DBTX, userID int64) (*domain.Cart, error)
	GetActiveCartForUpdate(ctx context.Context, q repository.DBTX, userID int64) (*domain.Cart, error)
	CreateCart(ctx context.Context, q repository.DBTX, userID int64) (*domain.Cart, error)
	UpdateCartTotals(ctx context.Context, q repository.DBTX, cartID int64, subtotal domain.Cents, totalItems int) error
	ListCartItems(ctx context.Context, q repository.DBTX, cartID int64) ([]domain.CartItem, error)
	GetCartItem(ctx context.Context, q repository.DBTX, itemID int64) (*domain.CartItem, error)
	FindCartItemBySku(ctx context.Context, q repository.DBTX, cartID, skuID int64) (*domain.CartItem, error)
	InsertCartItem(ctx context.Context, q repository.DBTX, it *domain.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, q repository.DBTX, itemID int64, quantity int) error
	DeleteCartItem(ctx context.Context, q repository.DBTX, itemID int64) error
	DeleteCartItems(ctx context.Context, q repository.DBTX, cartID int64) error
	GetSku(ctx context.Context, q repository.DBTX, skuID int64) (*domain.ProductSku, error)
	GetInventory(ctx context.Context, q repository.DBTX, skuID int64) (*domain.Inventory, error)
}

type Service struct {
	store Store
	cache Cache
	sfg   singleflight.Group // prevents cache stampede on cart reads
	log   zerolog.Logger
}

func NewService(store Store, cache Cache, log zerolog.Logger) *Service {
	return &Service{store: store, cache: cache, log: log}
}

// ItemView is one cart line as the customer sees it: snapshot price, current
// price, and the drift between them.
type ItemView struct {
	ItemID        int64         `json:"itemId"`
	BookID        int64         `json:"bookId"`
	Title         string        `json:"title"`
	SKU           string        `json:"sku"`
	Quantity      int           `json:"quantity"`
	Price         domain.Cents  `json:"price"`
	OriginalPrice domain.Cents  `json:"originalPrice"`
	PriceChanged  bool          `json:"priceChanged"`
	PriceDiff     *domain.Cents `json:"priceDiff,omitempty"`
}

type View struct {
	CartID      int64             `json:"cartId"`
	Status      domain.CartStatus `json:"status"`
	TotalAmount domain.Cents      `json:"totalAmount"`
	TotalItems  int               `json:"totalItems"`
	Items       []ItemView        `json:"items"`
}

// GetCart returns the user's active cart view, serving from cache when it
// can. Fails with NotFound when the user has no active cart.
func (s *Service) GetCart(ctx context.Context, userID int64) (*View, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		view, err := s.cache.Get(ctx, userID)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn().Err(err).Msg("cart cache get failed")
		}

		cart, err := s.store.GetActiveCart(ctx, s.store.DB(), userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, fmt.Errorf("active cart for user %d: %w", userID, domain.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		items, err := s.store.ListCartItems(ctx, s.store.DB(), cart.ID)
		if err != nil {
			return nil, err
		}
		view = buildView(cart, items)

		// Fill synchronously so a mutation's invalidation cannot land between
		// our return and a deferred set, leaving a stale view cached for a
		// full TTL.
		setCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if errSet := s.cache.Set(setCtx, userID, view); errSet != nil {
			s.log.Warn().Err(errSet).Msg("cart cache set failed")
		}

		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*View), nil
}

// AddItem locates or creates the user's active cart and adds qty units of the
// SKU, folding into an existing line for the same SKU. The line's snapshot
// price is captured only when the line is first created.
func (s *Service) AddItem(ctx context.Context, userID, skuID int64, qty int) (*View, error) {
	// The requested quantity must itself be positive; a negative add folding
	// into an existing line must not silently shrink it.
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
	}

	var view *View
	err := s.store.WithTx(ctx, func(q repository.DBTX) error {
		sku, err := s.store.GetSku(ctx, q, skuID)
		if errors.Is(err, repository.ErrSkuNotFound) {
			return fmt.Errorf("sku %d: %w", skuID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}

		cart, err := s.store.GetActiveCartForUpdate(ctx, q, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			cart, err = s.store.CreateCart(ctx, q, userID)
		}
		if err != nil {
			return err
		}

		existing, err := s.store.FindCartItemBySku(ctx, q, cart.ID, skuID)
		if err != nil && !errors.Is(err, repository.ErrCartItemNotFound) {
			return err
		}

		target := qty
		if existing != nil {
			target = existing.Quantity + qty
		}

		items, err := s.store.ListCartItems(ctx, q, cart.ID)
		if err != nil {
			return err
		}
		if err := s.validateTarget(ctx, q, items, skuID, target); err != nil {
			return err
		}

		if existing != nil {
			if err := s.store.UpdateCartItemQuantity(ctx, q, existing.ID, target); err != nil {
				return err
			}
		} else {
			item := &domain.CartItem{
				CartID:    cart.ID,
				SKUID:     skuID,
				Quantity:  target,
				UnitPrice: sku.EffectivePrice(),
			}
			if err := s.store.InsertCartItem(ctx, q, item); err != nil {
				return err
			}
		}

		view, err = s.refreshTotals(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCache(userID)
	return view, nil
}

// UpdateItem sets a line's quantity to qty. The item must belong to the
// user's active cart; anything else reads as NotFound.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID int64, qty int) (*View, error) {
	var view *View
	err := s.store.WithTx(ctx, func(q repository.DBTX) error {
		cart, item, err := s.lockCartItem(ctx, q, userID, itemID)
		if err != nil {
			return err
		}

		items, err := s.store.ListCartItems(ctx, q, cart.ID)
		if err != nil {
			return err
		}
		if err := s.validateTarget(ctx, q, items, item.SKUID, qty); err != nil {
			return err
		}

		if err := s.store.UpdateCartItemQuantity(ctx, q, itemID, qty); err != nil {
			return err
		}
		view, err = s.refreshTotals(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCache(userID)
	return view, nil
}

// RemoveItem deletes a line and recomputes totals.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID int64) (*View, error) {
	var view *View
	err := s.store.WithTx(ctx, func(q repository.DBTX) error {
		cart, _, err := s.lockCartItem(ctx, q, userID, itemID)
		if err != nil {
			return err
		}
		if err := s.store.DeleteCartItem(ctx, q, itemID); err != nil {
			return err
		}
		view, err = s.refreshTotals(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCache(userID)
	return view, nil
}

// Clear removes every line from the active cart.
func (s *Service) Clear(ctx context.Context, userID int64) (*View, error) {
	var view *View
	err := s.store.WithTx(ctx, func(q repository.DBTX) error {
		cart, err := s.store.GetActiveCartForUpdate(ctx, q, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return fmt.Errorf("active cart for user %d: %w", userID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := s.store.DeleteCartItems(ctx, q, cart.ID); err != nil {
			return err
		}
		view, err = s.refreshTotals(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCache(userID)
	return view, nil
}

// lockCartItem locks the user's active cart and resolves an item inside it.
// Items outside the caller's cart are reported as missing, not forbidden.
func (s *Service) lockCartItem(ctx context.Context, q repository.DBTX, userID, itemID int64) (*domain.Cart, *domain.CartItem, error) {
	cart, err := s.store.GetActiveCartForUpdate(ctx, q, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, nil, fmt.Errorf("active cart for user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	item, err := s.store.GetCartItem(ctx, q, itemID)
	if errors.Is(err, repository.ErrCartItemNotFound) {
		return nil, nil, fmt.Errorf("cart item %d: %w", itemID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	if item.CartID != cart.ID {
		return nil, nil, fmt.Errorf("cart item %d: %w", itemID, domain.ErrNotFound)
	}
	return cart, item, nil
}

// validateTarget applies the cart preconditions to a line's target quantity:
// per-line range, whole-cart cap, then a read-only availability check. No
// reservation happens at cart time.
func (s *Service) validateTarget(ctx context.Context, q repository.DBTX, items []domain.CartItem, skuID int64, target int) error {
	if target < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", domain.ErrConflict)
	}
	if target > domain.MaxQuantityPerItem {
		return fmt.Errorf("%w: quantity cannot exceed %d per item", domain.ErrConflict, domain.MaxQuantityPerItem)
	}

	total := target
	for _, it := range items {
		if it.SKUID != skuID {
			total += it.Quantity
		}
	}
	if total > domain.MaxTotalItems {
		return fmt.Errorf("%w: cart cannot exceed %d total items", domain.ErrConflict, domain.MaxTotalItems)
	}

	inv, err := s.store.GetInventory(ctx, q, skuID)
	if errors.Is(err, repository.ErrInventoryNotFound) {
		inv = &domain.Inventory{SKUID: skuID}
	} else if err != nil {
		return err
	}
	if inv.Available() < target {
		return &domain.InsufficientStockError{SKUID: skuID, Requested: target, Available: inv.Available()}
	}
	return nil
}

// refreshTotals recomputes subtotal and item count from the stored snapshot
// prices, persists them, and renders the view.
func (s *Service) refreshTotals(ctx context.Context, q repository.DBTX, cart *domain.Cart) (*View, error) {
	items, err := s.store.ListCartItems(ctx, q, cart.ID)
	if err != nil {
		return nil, err
	}
	subtotal, totalItems := domain.CartTotals(items)
	if err := s.store.UpdateCartTotals(ctx, q, cart.ID, subtotal, totalItems); err != nil {
		return nil, err
	}
	cart.Subtotal = subtotal
	cart.TotalItems = totalItems
	return buildView(cart, items), nil
}

// buildView renders a cart. Totals come from snapshot prices; each line also
// carries the SKU's current price so customers can see drift before checkout.
func buildView(cart *domain.Cart, items []domain.CartItem) *View {
	view := &View{
		CartID:      cart.ID,
		Status:      cart.Status,
		TotalAmount: cart.Subtotal,
		TotalItems:  cart.TotalItems,
		Items:       make([]ItemView, 0, len(items)),
	}
	for _, it := range items {
		iv := ItemView{
			ItemID:        it.ID,
			BookID:        it.BookID,
			Title:         it.BookTitle,
			SKU:           it.SKU,
			Quantity:      it.Quantity,
			Price:         it.CurrentPrice,
			OriginalPrice: it.UnitPrice,
		}
		if diff := it.CurrentPrice - it.UnitPrice; diff != 0 {
			iv.PriceChanged = true
			iv.PriceDiff = &diff
		}
		view.Items = append(view.Items, iv)
	}
	return view
}

func (s *Service) invalidateCache(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("cart cache invalidate failed")
	}
}
