package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tarchan/tarchan"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the response matching an error's place in the
// taxonomy. Storage and parsing detail never reaches the client; only
// the coarse category is observable.
func HandleError(w http.ResponseWriter, err error) {
	slog.Error("request error", "error", err)

	if errors.Is(err, tarchan.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "Not found")
		return
	}

	if errors.Is(err, tarchan.ErrUnauthorized) {
		w.Header().Set("WWW-Authenticate", `Basic realm="tarchan"`)
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Valid credentials required")
		return
	}

	if errors.Is(err, tarchan.ErrUpstream) || errors.Is(err, tarchan.ErrMalformed) {
		WriteError(w, http.StatusBadGateway, "upstream_unavailable", "Object store unavailable")
		return
	}

	WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
}
