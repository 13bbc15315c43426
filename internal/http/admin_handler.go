package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mptx4869/store/internal/domain"
	"github.com/mptx4869/store/internal/inventory"
)

type InventoryService interface {
	Availability(ctx context.Context, skuID int64) (*inventory.StockView, error)
	AvailabilityByBook(ctx context.Context, bookID int64) (*inventory.StockView, error)
	List(ctx context.Context, limit, offset int) ([]inventory.Row, error)
	LowStock(ctx context.Context) ([]inventory.Row, error)
	Adjust(ctx context.Context, skuID int64, stock, reserved *int, action domain.AdjustAction) (*inventory.StockView, error)
}

// AdminHandler serves the admin order and inventory surface. Role
// enforcement happens in RequireAdmin; state-machine and ledger invariants
// still apply here.
type AdminHandler struct {
	orders    OrderService
	inventory InventoryService
}

func NewAdminHandler(orders OrderService, inv InventoryService) *AdminHandler {
	return &AdminHandler{orders: orders, inventory: inv}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type inventoryUpdateRequest struct {
	Stock    *int   `json:"stock"`
	Reserved *int   `json:"reserved"`
	Action   string `json:"action"`
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	status := domain.OrderStatus(r.URL.Query().Get("status"))

	views, err := h.orders.AdminList(r.Context(), status, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "order id must be a positive integer")
		return
	}
	view, err := h.orders.AdminGet(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "order id must be a positive integer")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}
	if req.Status == "" {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "status is required")
		return
	}

	view, err := h.orders.UpdateStatus(r.Context(), orderID, domain.OrderStatus(req.Status))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *AdminHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	rows, err := h.inventory.List(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *AdminHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.inventory.LowStock(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *AdminHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	skuID, err := strconv.ParseInt(chi.URLParam(r, "skuId"), 10, 64)
	if err != nil || skuID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "skuId must be a positive integer")
		return
	}

	var req inventoryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}
	if req.Stock == nil && req.Reserved == nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "stock or reserved is required")
		return
	}
	if (req.Stock != nil && *req.Stock < 0) || (req.Reserved != nil && *req.Reserved < 0) {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "stock and reserved must not be negative")
		return
	}

	view, err := h.inventory.Adjust(r.Context(), skuID, req.Stock, req.Reserved, domain.AdjustAction(req.Action))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// pageParams parses ?page and ?size into limit/offset, with sane bounds.
func pageParams(r *http.Request) (limit, offset int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size < 1 || size > 100 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	return size, page * size
}
