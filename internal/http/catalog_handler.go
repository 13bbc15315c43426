package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mptx4869/store/internal/domain"
	"github.com/mptx4869/store/internal/inventory"
	"github.com/mptx4869/store/internal/repository"
)

// CatalogStore is the read-only slice of the repository the public catalog
// needs.
type CatalogStore interface {
	DB() repository.DBTX
	ListBooks(ctx context.Context, q repository.DBTX, limit, offset int) ([]domain.Book, error)
	GetBook(ctx context.Context, q repository.DBTX, bookID int64) (*domain.Book, error)
	ListSkusByBook(ctx context.Context, q repository.DBTX, bookID int64) ([]domain.ProductSku, error)
	GetInventory(ctx context.Context, q repository.DBTX, skuID int64) (*domain.Inventory, error)
}

type CatalogHandler struct {
	store     CatalogStore
	inventory InventoryService
}

func NewCatalogHandler(store CatalogStore, inv InventoryService) *CatalogHandler {
	return &CatalogHandler{store: store, inventory: inv}
}

type bookView struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	BasePrice    domain.Cents `json:"basePrice"`
	DefaultSKUID *int64       `json:"defaultSkuId,omitempty"`
}

type skuView struct {
	SKUID  int64              `json:"skuId"`
	SKU    string             `json:"sku"`
	Format string             `json:"format"`
	Price  domain.Cents       `json:"price"`
	Status domain.StockStatus `json:"status"`
}

type bookDetailView struct {
	bookView
	SKUs []skuView `json:"skus"`
}

func (h *CatalogHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	books, err := h.store.ListBooks(r.Context(), h.store.DB(), limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]bookView, 0, len(books))
	for _, b := range books {
		views = append(views, bookView{ID: b.ID, Title: b.Title, BasePrice: b.BasePrice, DefaultSKUID: b.DefaultSKUID})
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *CatalogHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || bookID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "book id must be a positive integer")
		return
	}

	book, err := h.store.GetBook(r.Context(), h.store.DB(), bookID)
	if errors.Is(err, repository.ErrBookNotFound) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "book not found")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	skus, err := h.store.ListSkusByBook(r.Context(), h.store.DB(), bookID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	detail := bookDetailView{
		bookView: bookView{ID: book.ID, Title: book.Title, BasePrice: book.BasePrice, DefaultSKUID: book.DefaultSKUID},
		SKUs:     make([]skuView, 0, len(skus)),
	}
	for i := range skus {
		sku := &skus[i]
		inv, err := h.store.GetInventory(r.Context(), h.store.DB(), sku.ID)
		if errors.Is(err, repository.ErrInventoryNotFound) {
			inv = &domain.Inventory{SKUID: sku.ID}
		} else if err != nil {
			writeDomainError(w, r, err)
			return
		}
		detail.SKUs = append(detail.SKUs, skuView{
			SKUID:  sku.ID,
			SKU:    sku.SKU,
			Format: sku.Format,
			Price:  sku.EffectivePrice(),
			Status: inv.Status(),
		})
	}
	respondJSON(w, http.StatusOK, detail)
}

// BookStock serves the public availability probe for a book's default SKU.
func (h *CatalogHandler) BookStock(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || bookID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "book id must be a positive integer")
		return
	}
	view, err := h.inventory.AvailabilityByBook(r.Context(), bookID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, publicStock(view))
}

// SkuStock serves the public availability probe for one SKU.
func (h *CatalogHandler) SkuStock(w http.ResponseWriter, r *http.Request) {
	skuID, err := strconv.ParseInt(chi.URLParam(r, "skuId"), 10, 64)
	if err != nil || skuID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "skuId must be a positive integer")
		return
	}
	view, err := h.inventory.Availability(r.Context(), skuID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, publicStock(view))
}

// publicStockView hides raw stock and reserved counts from customers.
type publicStockView struct {
	BookID    int64              `json:"bookId"`
	SKUID     int64              `json:"skuId"`
	SKU       string             `json:"sku"`
	Available int                `json:"available"`
	InStock   bool               `json:"inStock"`
	Status    domain.StockStatus `json:"status"`
}

func publicStock(v *inventory.StockView) publicStockView {
	return publicStockView{
		BookID:    v.BookID,
		SKUID:     v.SKUID,
		SKU:       v.SKU,
		Available: v.AvailableStock,
		InStock:   v.InStock,
		Status:    v.Status,
	}
}
