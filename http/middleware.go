package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tarchan/tarchan"
)

// RequestVerifier validates a bearer token. Implemented by
// *tarchan.TokenVerifier.
type RequestVerifier interface {
	Verify(token string) error
}

// AuthMiddleware creates middleware that enforces bearer-token
// authentication. The token is carried as the password of an HTTP Basic
// challenge. Pass nil to disable authentication (public access).
//
// Rejected requests are answered with 401 before any downstream handler,
// registry lookup, or object-store interaction.
func AuthMiddleware(verifier RequestVerifier) func(http.Handler) http.Handler {
	if verifier == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, token, ok := r.BasicAuth()
			if !ok {
				unauthorized(w, fmt.Errorf("missing credentials: %w", tarchan.ErrUnauthorized))
				return
			}

			if err := verifier.Verify(token); err != nil {
				unauthorized(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	slog.Info("rejected request", "err", err)
	w.Header().Set("WWW-Authenticate", `Basic realm="tarchan"`)
	WriteError(w, http.StatusUnauthorized, "unauthorized", "Valid credentials required")
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one structured record per request with a generated
// request id.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("request",
			"id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
