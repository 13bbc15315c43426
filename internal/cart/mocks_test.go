package cart

import (
	"context"
	"sync"

	"github.com/mptx4869/store/internal/domain"
	"github.com/mptx4869/store/internal/repository"
)

// mockStore implements Store in memory. All mutations go through WithTx, which
// snapshots state and rolls it back when the callback fails, mirroring the
// transactional behavior the service relies on.
type mockStore struct {
	mu           sync.Mutex
	carts        map[int64]*domain.Cart
	activeByUser map[int64]int64
	items        map[int64]*domain.CartItem
	skus         map[int64]*domain.ProductSku
	inventory    map[int64]*domain.Inventory
	nextID       int64
}

func newMockStore() *mockStore {
	return &mockStore{
		carts:        make(map[int64]*domain.Cart),
		activeByUser: make(map[int64]int64),
		items:        make(map[int64]*domain.CartItem),
		skus:         make(map[int64]*domain.ProductSku),
		inventory:    make(map[int64]*domain.Inventory),
		nextID:       100,
	}
}

func (m *mockStore) addSku(sku *domain.ProductSku, stock, reserved int) {
	m.skus[sku.ID] = sku
	m.inventory[sku.ID] = &domain.Inventory{SKUID: sku.ID, Stock: stock, Reserved: reserved}
}

func (m *mockStore) snapshot() *mockStore {
	cp := newMockStore()
	cp.nextID = m.nextID
	for k, v := range m.carts {
		c := *v
		cp.carts[k] = &c
	}
	for k, v := range m.activeByUser {
		cp.activeByUser[k] = v
	}
	for k, v := range m.items {
		it := *v
		cp.items[k] = &it
	}
	for k, v := range m.skus {
		cp.skus[k] = v
	}
	for k, v := range m.inventory {
		inv := *v
		cp.inventory[k] = &inv
	}
	return cp
}

func (m *mockStore) restore(snap *mockStore) {
	m.carts = snap.carts
	m.activeByUser = snap.activeByUser
	m.items = snap.items
	m.inventory = snap.inventory
	m.nextID = snap.nextID
}

func (m *mockStore) WithTx(_ context.Context, fn func(q repository.DBTX) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(nil); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *mockStore) DB() repository.DBTX { return nil }

func (m *mockStore) GetActiveCart(_ context.Context, _ repository.DBTX, userID int64) (*domain.Cart, error) {
	cartID, ok := m.activeByUser[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	c := *m.carts[cartID]
	return &c, nil
}

func (m *mockStore) GetActiveCartForUpdate(ctx context.Context, q repository.DBTX, userID int64) (*domain.Cart, error) {
	return m.GetActiveCart(ctx, q, userID)
}

func (m *mockStore) CreateCart(_ context.Context, _ repository.DBTX, userID int64) (*domain.Cart, error) {
	m.nextID++
	c := &domain.Cart{ID: m.nextID, UserID: userID, Status: domain.CartStatusActive}
	m.carts[c.ID] = c
	m.activeByUser[userID] = c.ID
	return c, nil
}

func (m *mockStore) UpdateCartTotals(_ context.Context, _ repository.DBTX, cartID int64, subtotal domain.Cents, totalItems int) error {
	c, ok := m.carts[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	c.Subtotal = subtotal
	c.TotalItems = totalItems
	return nil
}

func (m *mockStore) ListCartItems(_ context.Context, _ repository.DBTX, cartID int64) ([]domain.CartItem, error) {
	var out []domain.CartItem
	for _, it := range m.items {
		if it.CartID == cartID {
			cp := *it
			m.denormalize(&cp)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *mockStore) denormalize(it *domain.CartItem) {
	if sku, ok := m.skus[it.SKUID]; ok {
		it.SKU = sku.SKU
		it.BookID = sku.BookID
		it.BookTitle = sku.BookTitle
		it.CurrentPrice = sku.EffectivePrice()
	}
}

func (m *mockStore) GetCartItem(_ context.Context, _ repository.DBTX, itemID int64) (*domain.CartItem, error) {
	it, ok := m.items[itemID]
	if !ok {
		return nil, repository.ErrCartItemNotFound
	}
	cp := *it
	m.denormalize(&cp)
	return &cp, nil
}

func (m *mockStore) FindCartItemBySku(_ context.Context, _ repository.DBTX, cartID, skuID int64) (*domain.CartItem, error) {
	for _, it := range m.items {
		if it.CartID == cartID && it.SKUID == skuID {
			cp := *it
			m.denormalize(&cp)
			return &cp, nil
		}
	}
	return nil, repository.ErrCartItemNotFound
}

func (m *mockStore) InsertCartItem(_ context.Context, _ repository.DBTX, it *domain.CartItem) error {
	m.nextID++
	it.ID = m.nextID
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *mockStore) UpdateCartItemQuantity(_ context.Context, _ repository.DBTX, itemID int64, quantity int) error {
	it, ok := m.items[itemID]
	if !ok {
		return repository.ErrCartItemNotFound
	}
	it.Quantity = quantity
	return nil
}

func (m *mockStore) DeleteCartItem(_ context.Context, _ repository.DBTX, itemID int64) error {
	delete(m.items, itemID)
	return nil
}

func (m *mockStore) DeleteCartItems(_ context.Context, _ repository.DBTX, cartID int64) error {
	for id, it := range m.items {
		if it.CartID == cartID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *mockStore) GetSku(_ context.Context, _ repository.DBTX, skuID int64) (*domain.ProductSku, error) {
	sku, ok := m.skus[skuID]
	if !ok {
		return nil, repository.ErrSkuNotFound
	}
	return sku, nil
}

func (m *mockStore) GetInventory(_ context.Context, _ repository.DBTX, skuID int64) (*domain.Inventory, error) {
	inv, ok := m.inventory[skuID]
	if !ok {
		return nil, repository.ErrInventoryNotFound
	}
	cp := *inv
	return &cp, nil
}

// mockCache records operations so tests can assert on invalidation.
type mockCache struct {
	mu      sync.Mutex
	views   map[int64]*View
	deletes int
	sets    int
	getErr  error
}

func newMockCache() *mockCache {
	return &mockCache{views: make(map[int64]*View)}
}

func (c *mockCache) Get(_ context.Context, userID int64) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.views[userID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (c *mockCache) Set(_ context.Context, userID int64, view *View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.views[userID] = view
	return nil
}

func (c *mockCache) Delete(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.views, userID)
	return nil
}
