package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mptx4869/store/internal/domain"
)

// ErrorResponse is the wire shape for every error the API returns.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		Path:      r.URL.Path,
		Timestamp: time.Now().UTC(),
	})
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes.
// Everything except Internal logs as a single-line warning; unexpected errors
// log with their full chain and surface as an opaque 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		status = http.StatusConflict
		code = "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
		code = "VALIDATION"
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		code = "CONFLICT"
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
		code = "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
		code = "FORBIDDEN"
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	log.Warn().Str("path", r.URL.Path).Str("code", code).Msg(err.Error())
	respondError(w, r, status, code, err.Error())
}
