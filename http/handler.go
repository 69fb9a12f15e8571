package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/tarchan/tarchan"
)

// DefaultPresignTTL bounds credential exposure while leaving clients
// ample time to follow the redirect.
const DefaultPresignTTL = 10 * time.Minute

// SnapshotSource supplies the current channel snapshot. Implemented by
// *tarchan.Registry.
type SnapshotSource interface {
	Current() *tarchan.Snapshot
}

// Presigner issues time-limited GET URLs for bucket objects. Implemented
// by *s3.Store.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

type HandlerConfig struct {
	// BaseURL is the externally advertised URL of this service, used to
	// build Link header targets. No trailing slash.
	BaseURL string
	// PresignTTL is the validity window of issued redirect URLs.
	// Defaults to DefaultPresignTTL.
	PresignTTL time.Duration
	// Verifier guards all routes when non-nil; nil means public access.
	Verifier RequestVerifier
	CORS     CORSConfig
}

// Handler resolves channel and permanent requests into redirects.
type Handler struct {
	config   HandlerConfig
	registry SnapshotSource
	signer   Presigner
}

// NewHandler creates a Handler with the given configuration.
func NewHandler(config *HandlerConfig, registry SnapshotSource, signer Presigner) *Handler {
	h := &Handler{
		config:   *config,
		registry: registry,
		signer:   signer,
	}
	if h.config.PresignTTL <= 0 {
		h.config.PresignTTL = DefaultPresignTTL
	}
	h.config.BaseURL = strings.TrimSuffix(h.config.BaseURL, "/")
	return h
}

// Router returns the configured http.Handler. GET and HEAD are
// registered identically; a redirect carries no body either way.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.config.Verifier))

		r.Get("/channel/{file}", h.handleChannel)
		r.Method(http.MethodHead, "/channel/{file}", http.HandlerFunc(h.handleChannel))
		r.Get("/permanent/{file}", h.handlePermanent)
		r.Method(http.MethodHead, "/permanent/{file}", http.HandlerFunc(h.handlePermanent))
	})

	return r
}

// handleChannel resolves /channel/<name><ext> against the current
// snapshot and redirects to the channel's latest permanent object.
func (h *Handler) handleChannel(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")

	snapshot := h.registry.Current()
	if snapshot == nil {
		// Serving starts only after the eager first refresh, so this is
		// a wiring error rather than a transient condition.
		HandleError(w, fmt.Errorf("no channel snapshot available: %w", tarchan.ErrUpstream))
		return
	}

	_, cfg, ok := snapshot.Resolve(file)
	if !ok {
		HandleError(w, fmt.Errorf("no channel serves %q: %w", file, tarchan.ErrNotFound))
		return
	}

	objectKey := cfg.LatestObjectKey()
	if objectKey == "" {
		HandleError(w, fmt.Errorf("channel for %q has no published version: %w", file, tarchan.ErrNotFound))
		return
	}

	signedURL, err := h.signer.PresignGet(r.Context(), objectKey, h.config.PresignTTL)
	if err != nil {
		HandleError(w, err)
		return
	}

	// The Lockable HTTP Tarball Protocol: the Link target is the
	// permanently cacheable URL for this exact content, decoupled from
	// the expiring redirect target below.
	w.Header().Set("Link", fmt.Sprintf("<%s/permanent/%s>; rel=\"immutable\"", h.config.BaseURL, objectKey))
	http.Redirect(w, r, signedURL, http.StatusFound)
}

// handlePermanent redirects /permanent/<key><ext> to a presigned URL for
// exactly that object. No channel lookup is involved, so this path works
// even if the registry has never refreshed.
func (h *Handler) handlePermanent(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")

	// ".json" is the config-object namespace (channels.json, <name>.json),
	// never a servable archive.
	if !tarchan.IsValidKey(file) || strings.HasSuffix(file, ".json") {
		HandleError(w, fmt.Errorf("invalid permanent key %q: %w", file, tarchan.ErrNotFound))
		return
	}

	signedURL, err := h.signer.PresignGet(r.Context(), file, h.config.PresignTTL)
	if err != nil {
		HandleError(w, err)
		return
	}

	// Permanent objects are write-once, so clients may cache this
	// location forever.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.Redirect(w, r, signedURL, http.StatusFound)
}
