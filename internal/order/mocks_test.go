package order

import (
	"context"
	"sync"

	"github.com/mptx4869/store/internal/domain"
	"github.com/mptx4869/store/internal/repository"
)

// mockStore implements Store in memory. WithTx serializes callers and rolls
// state back when the callback fails, so reservation failures leave nothing
// behind, matching the database behavior the service depends on.
type mockStore struct {
	mu           sync.Mutex
	carts        map[int64]*domain.Cart
	activeByUser map[int64]int64
	cartItems    map[int64][]domain.CartItem
	orders       map[int64]*domain.Order
	inventory    map[int64]*domain.Inventory
	events       []domain.OrderEvent
	nextOrderID  int64

	lockedSkus []int64 // records GetInventoryForUpdate call order
}

func newMockStore() *mockStore {
	return &mockStore{
		carts:        make(map[int64]*domain.Cart),
		activeByUser: make(map[int64]int64),
		cartItems:    make(map[int64][]domain.CartItem),
		orders:       make(map[int64]*domain.Order),
		inventory:    make(map[int64]*domain.Inventory),
		nextOrderID:  1000,
	}
}

func (m *mockStore) addActiveCart(userID, cartID int64, items []domain.CartItem) {
	m.carts[cartID] = &domain.Cart{ID: cartID, UserID: userID, Status: domain.CartStatusActive}
	m.activeByUser[userID] = cartID
	m.cartItems[cartID] = items
}

func (m *mockStore) addInventory(skuID int64, stock, reserved int) {
	m.inventory[skuID] = &domain.Inventory{SKUID: skuID, Stock: stock, Reserved: reserved}
}

func (m *mockStore) snapshot() *mockStore {
	cp := newMockStore()
	cp.nextOrderID = m.nextOrderID
	for k, v := range m.carts {
		c := *v
		cp.carts[k] = &c
	}
	for k, v := range m.activeByUser {
		cp.activeByUser[k] = v
	}
	for k, v := range m.cartItems {
		cp.cartItems[k] = append([]domain.CartItem(nil), v...)
	}
	for k, v := range m.orders {
		o := *v
		o.Items = append([]domain.OrderItem(nil), v.Items...)
		cp.orders[k] = &o
	}
	for k, v := range m.inventory {
		inv := *v
		cp.inventory[k] = &inv
	}
	cp.events = append([]domain.OrderEvent(nil), m.events...)
	return cp
}

func (m *mockStore) restore(snap *mockStore) {
	m.carts = snap.carts
	m.activeByUser = snap.activeByUser
	m.cartItems = snap.cartItems
	m.orders = snap.orders
	m.inventory = snap.inventory
	m.events = snap.events
	m.nextOrderID = snap.nextOrderID
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

func (m *mockStore) GetInventoryForUpdate(_ context.Context, _ repository.DBTX, skuID int64) (*domain.Inventory, error) {
	m.lockedSkus = append(m.lockedSkus, skuID)
	inv, ok := m.inventory[skuID]
	if !ok {
		return nil, repository.ErrInventoryNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockStore) SaveInventory(_ context.Context, _ repository.DBTX, inv *domain.Inventory) error {
	cp := *inv
	m.inventory[inv.SKUID] = &cp
	return nil
}

func (m *mockStore) GetActiveCartForUpdate(_ context.Context, _ repository.DBTX, userID int64) (*domain.Cart, error) {
	cartID, ok := m.activeByUser[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	c := *m.carts[cartID]
	return &c, nil
}

func (m *mockStore) ListCartItems(_ context.Context, _ repository.DBTX, cartID int64) ([]domain.CartItem, error) {
	return append([]domain.CartItem(nil), m.cartItems[cartID]...), nil
}

func (m *mockStore) DeleteCartItems(_ context.Context, _ repository.DBTX, cartID int64) error {
	m.cartItems[cartID] = nil
	return nil
}

func (m *mockStore) CompleteCart(_ context.Context, _ repository.DBTX, cartID int64) error {
	c, ok := m.carts[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	c.Status = domain.CartStatusCompleted
	c.Subtotal = 0
	c.TotalItems = 0
	delete(m.activeByUser, c.UserID)
	return nil
}

func (m *mockStore) InsertOrder(_ context.Context, _ repository.DBTX, order *domain.Order) error {
	m.nextOrderID++
	order.ID = m.nextOrderID
	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockStore) GetOrder(_ context.Context, _ repository.DBTX, orderID int64) (*domain.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *mockStore) GetOrderForUpdate(ctx context.Context, q repository.DBTX, orderID int64) (*domain.Order, error) {
	return m.GetOrder(ctx, q, orderID)
}

func (m *mockStore) ListOrdersByUser(_ context.Context, _ repository.DBTX, userID int64) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockStore) ListOrders(_ context.Context, _ repository.DBTX, status domain.OrderStatus, _, _ int) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateOrderStatus(_ context.Context, _ repository.DBTX, orderID int64, status domain.OrderStatus) error {
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (m *mockStore) InsertOrderEvent(_ context.Context, _ repository.DBTX, ev *domain.OrderEvent) error {
	m.events = append(m.events, *ev)
	return nil
}
