package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mptx4869/store/internal/auth"
)

type AccountService interface {
	Register(ctx context.Context, username, email, password string) error
	Login(ctx context.Context, username, password string) (*auth.Token, error)
}

type AuthHandler struct {
	accounts AccountService
}

func NewAuthHandler(accounts AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}

	if err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}

	token, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, token)
}
