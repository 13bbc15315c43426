package cart

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mptx4869/store/internal/domain"
)

const testUser int64 = 7

func newTestService(store *mockStore, cache *mockCache) *Service {
	return NewService(store, cache, zerolog.Nop())
}

func seedSku(store *mockStore, id int64, price domain.Cents, stock int) {
	store.addSku(&domain.ProductSku{
		ID:            id,
		BookID:        id * 10,
		SKU:           "SKU-TEST",
		BookTitle:     "Test Book",
		BookBasePrice: price,
	}, stock, 0)
}

func TestAddItem_CreatesCartAndLine(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1999, 50)
	svc := newTestService(store, newMockCache())

	view, err := svc.AddItem(context.Background(), testUser, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, domain.CartStatusActive, view.Status)
	assert.Equal(t, 2, view.TotalItems)
	assert.Equal(t, domain.Cents(3998), view.TotalAmount)
	require.Len(t, view.Items, 1)
	assert.Equal(t, domain.Cents(1999), view.Items[0].OriginalPrice)
	assert.False(t, view.Items[0].PriceChanged)
}

func TestAddItem_FoldsIntoExistingLine(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 50)
	svc := newTestService(store, newMockCache())

	_, err := svc.AddItem(context.Background(), testUser, 1, 2)
	require.NoError(t, err)
	view, err := svc.AddItem(context.Background(), testUser, 1, 3)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, domain.Cents(5000), view.TotalAmount)
}

func TestAddItem_UnknownSku(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, newMockCache())

	_, err := svc.AddItem(context.Background(), testUser, 999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddItem_QuantityBounds(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 500)
	svc := newTestService(store, newMockCache())

	_, err := svc.AddItem(context.Background(), testUser, 1, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.AddItem(context.Background(), testUser, 1, 100)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// 99 is the per-line maximum.
	view, err := svc.AddItem(context.Background(), testUser, 1, 99)
	require.NoError(t, err)
	assert.Equal(t, 99, view.Items[0].Quantity)

	// Folding past the line cap fails and leaves the line untouched.
	_, err = svc.AddItem(context.Background(), testUser, 1, 1)
	assert.ErrorIs(t, err, domain.ErrConflict)
	view, err = svc.GetCart(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, 99, view.Items[0].Quantity)
}

func TestAddItem_NegativeQuantityDoesNotShrinkLine(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 500)
	svc := newTestService(store, newMockCache())

	_, err := svc.AddItem(context.Background(), testUser, 1, 5)
	require.NoError(t, err)

	// A negative add would fold to 5 + (-3) = 2, a valid target; it must be
	// rejected on the requested quantity, not the folded one.
	_, err = svc.AddItem(context.Background(), testUser, 1, -3)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.AddItem(context.Background(), testUser, 1, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	view, err := svc.GetCart(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Items[0].Quantity)
}

func TestAddItem_CartTotalCap(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 500)
	seedSku(store, 2, 2000, 500)
	svc := newTestService(store, newMockCache())

	_, err := svc.AddItem(context.Background(), testUser, 1, 99)
	require.NoError(t, err)

	// 99 + 2 = 101 > 100 total cap.
	_, err = svc.AddItem(context.Background(), testUser, 2, 2)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// 99 + 1 = 100 is allowed.
	view, err := svc.AddItem(context.Background(), testUser, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, view.TotalItems)
}

func TestAddItem_InsufficientStock(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 3)
	svc := newTestService(store, newMockCache())

	_, err := svc.AddItem(context.Background(), testUser, 1, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAddItem_ReservedUnitsNotSellable(t *testing.T) {
	store := newMockStore()
	store.addSku(&domain.ProductSku{ID: 1, BookID: 10, SKU: "S", BookBasePrice: 1000}, 10, 8)
	svc := newTestService(store, newMockCache())

	_, err := svc.AddItem(context.Background(), testUser, 1, 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	view, err := svc.AddItem(context.Background(), testUser, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalItems)
}

func TestAddItem_NoMissingInventoryRow(t *testing.T) {
	store := newMockStore()
	store.skus[1] = &domain.ProductSku{ID: 1, BookID: 10, SKU: "S", BookBasePrice: 1000}
	svc := newTestService(store, newMockCache())

	// A SKU without a ledger row reads as zero available.
	_, err := svc.AddItem(context.Background(), testUser, 1, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestUpdateItem_SetsQuantity(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 50)
	svc := newTestService(store, newMockCache())

	view, err := svc.AddItem(context.Background(), testUser, 1, 2)
	require.NoError(t, err)
	itemID := view.Items[0].ItemID

	view, err = svc.UpdateItem(context.Background(), testUser, itemID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, view.Items[0].Quantity)
	assert.Equal(t, domain.Cents(7000), view.TotalAmount)
}

func TestUpdateItem_ForeignItemReadsAsMissing(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 50)
	svc := newTestService(store, newMockCache())

	view, err := svc.AddItem(context.Background(), testUser, 1, 2)
	require.NoError(t, err)

	// A different user with their own cart cannot touch the item.
	seedSku(store, 2, 500, 50)
	otherUser := testUser + 1
	_, err = svc.AddItem(context.Background(), otherUser, 2, 1)
	require.NoError(t, err)

	_, err = svc.UpdateItem(context.Background(), otherUser, view.Items[0].ItemID, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveItem_RecomputesTotals(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 50)
	seedSku(store, 2, 2000, 50)
	svc := newTestService(store, newMockCache())

	_, err := svc.AddItem(context.Background(), testUser, 1, 2)
	require.NoError(t, err)
	view, err := svc.AddItem(context.Background(), testUser, 2, 1)
	require.NoError(t, err)
	require.Equal(t, domain.Cents(4000), view.TotalAmount)

	var itemID int64
	for _, it := range view.Items {
		if it.BookID == 20 {
			itemID = it.ItemID
		}
	}
	view, err = svc.RemoveItem(context.Background(), testUser, itemID)
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(2000), view.TotalAmount)
	assert.Equal(t, 2, view.TotalItems)
	assert.Len(t, view.Items, 1)
}

func TestClear_EmptiesCart(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 50)
	svc := newTestService(store, newMockCache())

	_, err := svc.AddItem(context.Background(), testUser, 1, 5)
	require.NoError(t, err)

	view, err := svc.Clear(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, domain.Cents(0), view.TotalAmount)
	assert.Equal(t, 0, view.TotalItems)
}

func TestClear_NoActiveCart(t *testing.T) {
	svc := newTestService(newMockStore(), newMockCache())

	_, err := svc.Clear(context.Background(), testUser)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetCart_NoActiveCart(t *testing.T) {
	svc := newTestService(newMockStore(), newMockCache())

	_, err := svc.GetCart(context.Background(), testUser)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetCart_ServesFromCache(t *testing.T) {
	store := newMockStore()
	cache := newMockCache()
	svc := newTestService(store, cache)

	cached := &View{CartID: 55, Status: domain.CartStatusActive}
	cache.views[testUser] = cached

	view, err := svc.GetCart(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(55), view.CartID)
}

func TestGetCart_FillsCacheBeforeReturning(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 50)
	cache := newMockCache()
	svc := newTestService(store, cache)

	_, err := svc.AddItem(context.Background(), testUser, 1, 2)
	require.NoError(t, err)

	// The miss path writes the cache before GetCart returns; a mutation's
	// invalidation therefore always sequences after the fill.
	view, err := svc.GetCart(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, view, cache.views[testUser])

	_, err = svc.Clear(context.Background(), testUser)
	require.NoError(t, err)
	assert.NotContains(t, cache.views, testUser)
}

func TestGetCart_ReportsPriceDrift(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 50)
	svc := newTestService(store, newMockCache())

	_, err := svc.AddItem(context.Background(), testUser, 1, 2)
	require.NoError(t, err)

	// Price rises after the line was added; the snapshot stays put.
	store.skus[1].BookBasePrice = 1500

	view, err := svc.GetCart(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	it := view.Items[0]
	assert.Equal(t, domain.Cents(1000), it.OriginalPrice)
	assert.Equal(t, domain.Cents(1500), it.Price)
	assert.True(t, it.PriceChanged)
	require.NotNil(t, it.PriceDiff)
	assert.Equal(t, domain.Cents(500), *it.PriceDiff)
	// Totals still come from the snapshot.
	assert.Equal(t, domain.Cents(2000), view.TotalAmount)
}

func TestMutations_InvalidateCache(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 50)
	cache := newMockCache()
	svc := newTestService(store, cache)

	_, err := svc.AddItem(context.Background(), testUser, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.deletes)

	_, err = svc.Clear(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.deletes)
}

func TestAddItem_CacheOutageDoesNotFailRead(t *testing.T) {
	store := newMockStore()
	seedSku(store, 1, 1000, 50)
	cache := newMockCache()
	cache.getErr = assert.AnError
	svc := newTestService(store, cache)

	_, err := svc.AddItem(context.Background(), testUser, 1, 2)
	require.NoError(t, err)

	view, err := svc.GetCart(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalItems)
}
