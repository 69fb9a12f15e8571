package http_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tarchan/tarchan"
	tarchanhttp "github.com/tarchan/tarchan/http"
)

// staticRegistry serves a fixed snapshot.
type staticRegistry struct {
	snapshot *tarchan.Snapshot
}

func (s *staticRegistry) Current() *tarchan.Snapshot { return s.snapshot }

// MockPresigner is a mock implementation of http.Presigner
type MockPresigner struct {
	mock.Mock
}

func (m *MockPresigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func newTestRouter(t *testing.T, config *tarchanhttp.HandlerConfig, snapshot *tarchan.Snapshot, signer tarchanhttp.Presigner) http.Handler {
	t.Helper()
	if config == nil {
		config = &tarchanhttp.HandlerConfig{BaseURL: "https://channels.example.com"}
	}
	handler := tarchanhttp.NewHandler(config, &staticRegistry{snapshot: snapshot}, signer)
	return handler.Router()
}

func defaultSnapshot() *tarchan.Snapshot {
	return tarchan.NewSnapshot(map[string]tarchan.ChannelConfig{
		"rel":   {Latest: "v1"},
		"beta":  {Latest: "b7", FileExtension: ".iso"},
		"fresh": {},
	})
}

func TestHandler_Channel(t *testing.T) {
	t.Run("redirects to the presigned latest object with a Link header", func(t *testing.T) {
		signer := new(MockPresigner)
		signer.On("PresignGet", mock.Anything, "v1.tar.xz", tarchanhttp.DefaultPresignTTL).
			Return("https://bucket.example.com/v1.tar.xz?X-Amz-Signature=abc", nil)

		router := newTestRouter(t, nil, defaultSnapshot(), signer)

		req := httptest.NewRequest(http.MethodGet, "/channel/rel.tar.xz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://bucket.example.com/v1.tar.xz?X-Amz-Signature=abc", rec.Header().Get("Location"))
		assert.Equal(t, `<https://channels.example.com/permanent/v1.tar.xz>; rel="immutable"`, rec.Header().Get("Link"))

		signer.AssertExpectations(t)
	})

	t.Run("honors a per-channel extension", func(t *testing.T) {
		signer := new(MockPresigner)
		signer.On("PresignGet", mock.Anything, "b7.iso", mock.Anything).
			Return("https://bucket.example.com/b7.iso?sig", nil)

		router := newTestRouter(t, nil, defaultSnapshot(), signer)

		req := httptest.NewRequest(http.MethodGet, "/channel/beta.iso", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Link"), "/permanent/b7.iso")
	})

	t.Run("unknown channel returns 404", func(t *testing.T) {
		router := newTestRouter(t, nil, defaultSnapshot(), new(MockPresigner))

		req := httptest.NewRequest(http.MethodGet, "/channel/nightly.tar.xz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("extension mismatch returns 404", func(t *testing.T) {
		router := newTestRouter(t, nil, defaultSnapshot(), new(MockPresigner))

		req := httptest.NewRequest(http.MethodGet, "/channel/beta.tar.xz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("a channel without a published version returns 404", func(t *testing.T) {
		router := newTestRouter(t, nil, defaultSnapshot(), new(MockPresigner))

		req := httptest.NewRequest(http.MethodGet, "/channel/fresh.tar.xz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("presign failure returns 502 without leaking detail", func(t *testing.T) {
		signer := new(MockPresigner)
		signer.On("PresignGet", mock.Anything, "v1.tar.xz", mock.Anything).
			Return("", tarchan.ErrUpstream)

		router := newTestRouter(t, nil, defaultSnapshot(), signer)

		req := httptest.NewRequest(http.MethodGet, "/channel/rel.tar.xz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "upstream_unavailable", body["error"])
	})

	t.Run("Link target follows the channel pointer across refreshes", func(t *testing.T) {
		signer := new(MockPresigner)
		signer.On("PresignGet", mock.Anything, "v1.tar.xz", mock.Anything).
			Return("https://bucket.example.com/v1.tar.xz?sig", nil)
		signer.On("PresignGet", mock.Anything, "v2.tar.xz", mock.Anything).
			Return("https://bucket.example.com/v2.tar.xz?sig", nil)

		source := &staticRegistry{snapshot: tarchan.NewSnapshot(map[string]tarchan.ChannelConfig{
			"rel": {Latest: "v1"},
		})}
		handler := tarchanhttp.NewHandler(&tarchanhttp.HandlerConfig{BaseURL: "https://channels.example.com"}, source, signer)
		router := handler.Router()

		before := httptest.NewRecorder()
		router.ServeHTTP(before, httptest.NewRequest(http.MethodGet, "/channel/rel.tar.xz", nil))
		assert.Contains(t, before.Header().Get("Link"), "/permanent/v1.tar.xz")

		// A publish followed by a refresh swaps the snapshot.
		source.snapshot = tarchan.NewSnapshot(map[string]tarchan.ChannelConfig{
			"rel": {Latest: "v2", Previous: []string{"v1"}},
		})

		after := httptest.NewRecorder()
		router.ServeHTTP(after, httptest.NewRequest(http.MethodGet, "/channel/rel.tar.xz", nil))
		assert.Equal(t, "https://bucket.example.com/v2.tar.xz?sig", after.Header().Get("Location"))
		assert.Contains(t, after.Header().Get("Link"), "/permanent/v2.tar.xz")

		// The superseded version stays reachable at its permanent URL.
		permanent := httptest.NewRecorder()
		router.ServeHTTP(permanent, httptest.NewRequest(http.MethodGet, "/permanent/v1.tar.xz", nil))
		assert.Equal(t, http.StatusFound, permanent.Code)
	})

	t.Run("HEAD matches GET status and headers", func(t *testing.T) {
		signer := new(MockPresigner)
		signer.On("PresignGet", mock.Anything, "v1.tar.xz", mock.Anything).
			Return("https://bucket.example.com/v1.tar.xz?sig", nil)

		router := newTestRouter(t, nil, defaultSnapshot(), signer)

		get := httptest.NewRecorder()
		router.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/channel/rel.tar.xz", nil))

		head := httptest.NewRecorder()
		router.ServeHTTP(head, httptest.NewRequest(http.MethodHead, "/channel/rel.tar.xz", nil))

		assert.Equal(t, get.Code, head.Code)
		assert.Equal(t, get.Header().Get("Location"), head.Header().Get("Location"))
		assert.Equal(t, get.Header().Get("Link"), head.Header().Get("Link"))
	})
}

func TestHandler_Permanent(t *testing.T) {
	t.Run("redirects with immutable cache directives", func(t *testing.T) {
		signer := new(MockPresigner)
		signer.On("PresignGet", mock.Anything, "v1.tar.xz", tarchanhttp.DefaultPresignTTL).
			Return("https://bucket.example.com/v1.tar.xz?sig", nil)

		// No snapshot: the permanent path must not depend on the registry.
		router := newTestRouter(t, nil, nil, signer)

		req := httptest.NewRequest(http.MethodGet, "/permanent/v1.tar.xz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://bucket.example.com/v1.tar.xz?sig", rec.Header().Get("Location"))
		assert.Equal(t, "public, max-age=31536000, immutable", rec.Header().Get("Cache-Control"))
	})

	t.Run("invalid keys return 404", func(t *testing.T) {
		router := newTestRouter(t, nil, defaultSnapshot(), new(MockPresigner))

		for _, path := range []string{"/permanent/..", "/permanent/v1~old.tar.xz"} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
		}
	})

	t.Run("config objects are never served", func(t *testing.T) {
		signer := new(MockPresigner)
		router := newTestRouter(t, nil, defaultSnapshot(), signer)

		// The catalog and channel configs live in the same flat namespace
		// as the archives; neither may leak through a presigned redirect.
		for _, path := range []string{"/permanent/channels.json", "/permanent/rel.json"} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
			assert.Empty(t, rec.Header().Get("Location"), "path %s", path)
		}

		signer.AssertNotCalled(t, "PresignGet", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("HEAD matches GET", func(t *testing.T) {
		signer := new(MockPresigner)
		signer.On("PresignGet", mock.Anything, "v1.tar.xz", mock.Anything).
			Return("https://bucket.example.com/v1.tar.xz?sig", nil)

		router := newTestRouter(t, nil, nil, signer)

		get := httptest.NewRecorder()
		router.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/permanent/v1.tar.xz", nil))

		head := httptest.NewRecorder()
		router.ServeHTTP(head, httptest.NewRequest(http.MethodHead, "/permanent/v1.tar.xz", nil))

		assert.Equal(t, get.Code, head.Code)
		assert.Equal(t, get.Header().Get("Location"), head.Header().Get("Location"))
		assert.Equal(t, get.Header().Get("Cache-Control"), head.Header().Get("Cache-Control"))
	})
}

func TestHandler_UnmappedPaths(t *testing.T) {
	router := newTestRouter(t, nil, defaultSnapshot(), new(MockPresigner))

	// The catalog and channel config objects must never be routable.
	paths := []string{
		"/channels.json",
		"/rel.json",
		"/",
		"/channel/",
		"/permanent/",
		"/channel/rel.tar.xz/extra",
		"/v1.tar.xz",
	}

	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
	}
}

func TestHandler_Auth(t *testing.T) {
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	verifier := tarchan.NewTokenVerifier(&private.PublicKey)

	config := &tarchanhttp.HandlerConfig{
		BaseURL:  "https://channels.example.com",
		Verifier: verifier,
	}

	validToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(private)
	require.NoError(t, err)

	t.Run("no credentials is rejected before any store interaction", func(t *testing.T) {
		signer := new(MockPresigner)
		router := newTestRouter(t, config, defaultSnapshot(), signer)

		for _, path := range []string{"/channel/rel.tar.xz", "/permanent/v1.tar.xz"} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
		}

		signer.AssertNotCalled(t, "PresignGet", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("an invalid token is rejected", func(t *testing.T) {
		router := newTestRouter(t, config, defaultSnapshot(), new(MockPresigner))

		req := httptest.NewRequest(http.MethodGet, "/channel/rel.tar.xz", nil)
		req.SetBasicAuth("user", "not-a-token")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("a valid token gets the same result as the public case", func(t *testing.T) {
		signer := new(MockPresigner)
		signer.On("PresignGet", mock.Anything, "v1.tar.xz", mock.Anything).
			Return("https://bucket.example.com/v1.tar.xz?sig", nil)

		router := newTestRouter(t, config, defaultSnapshot(), signer)

		req := httptest.NewRequest(http.MethodGet, "/channel/rel.tar.xz", nil)
		req.SetBasicAuth("anything", validToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, `<https://channels.example.com/permanent/v1.tar.xz>; rel="immutable"`, rec.Header().Get("Link"))
	})
}
