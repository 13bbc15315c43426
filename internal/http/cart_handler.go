package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mptx4869/store/internal/cart"
)

type CartService interface {
	GetCart(ctx context.Context, userID int64) (*cart.View, error)
	AddItem(ctx context.Context, userID, skuID int64, qty int) (*cart.View, error)
	UpdateItem(ctx context.Context, userID, itemID int64, qty int) (*cart.View, error)
	RemoveItem(ctx context.Context, userID, itemID int64) (*cart.View, error)
	Clear(ctx context.Context, userID int64) (*cart.View, error)
}

type CartHandler struct {
	cart CartService
}

func NewCartHandler(cart CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

type addItemRequest struct {
	SKUID    int64 `json:"skuId"`
	Quantity int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}
	view, err := h.cart.GetCart(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}
	if req.SKUID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "skuId must be positive")
		return
	}

	view, err := h.cart.AddItem(r.Context(), id.UserID, req.SKUID, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemId"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "itemId must be a positive integer")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}

	view, err := h.cart.UpdateItem(r.Context(), id.UserID, itemID, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemId"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "itemId must be a positive integer")
		return
	}

	view, err := h.cart.RemoveItem(r.Context(), id.UserID, itemID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}

	view, err := h.cart.Clear(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
