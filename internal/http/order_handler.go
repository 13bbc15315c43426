package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mptx4869/store/internal/domain"
	"github.com/mptx4869/store/internal/order"
)

type OrderService interface {
	Create(ctx context.Context, userID int64, req order.CreateRequest) (*order.View, error)
	Get(ctx context.Context, userID, orderID int64) (*order.View, error)
	List(ctx context.Context, userID int64) ([]order.View, error)
	Cancel(ctx context.Context, userID, orderID int64) (*order.View, error)
	AdminGet(ctx context.Context, orderID int64) (*order.View, error)
	AdminList(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]order.View, error)
	UpdateStatus(ctx context.Context, orderID int64, target domain.OrderStatus) (*order.View, error)
}

type OrderHandler struct {
	orders OrderService
}

func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}

	// The body is optional: an empty POST checks out with defaults.
	var req order.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}

	view, err := h.orders.Create(r.Context(), id.UserID, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}
	views, err := h.orders.List(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "order id must be a positive integer")
		return
	}

	view, err := h.orders.Get(r.Context(), id.UserID, orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "order id must be a positive integer")
		return
	}

	view, err := h.orders.Cancel(r.Context(), id.UserID, orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
