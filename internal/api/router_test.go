package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moviemetric/moviemetric/internal/api"
	mw "github.com/moviemetric/moviemetric/internal/api/middleware"
	"github.com/stretchr/testify/assert"
)

// --- stub cache backing the rate limiter ---

type stubCache struct {
	count int64
}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (c *stubCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	c.count++
	return c.count, nil
}

func testRouter(deps api.Dependencies) http.Handler {
	if deps.RateLimit == nil {
		deps.RateLimit = mw.NewRateLimit(&stubCache{}, 120)
	}
	return api.NewRouter(deps)
}

func TestRouter_UnwiredRouteReturns501(t *testing.T) {
	router := testRouter(api.Dependencies{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/movies", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRouter_HealthWired(t *testing.T) {
	called := false
	router := testRouter(api.Dependencies{
		HealthHandler: func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ComputeAllMatchesBeforeKindParam(t *testing.T) {
	var gotAll, gotKind bool
	router := testRouter(api.Dependencies{
		ComputeAllHandler: func(w http.ResponseWriter, r *http.Request) {
			gotAll = true
		},
		ComputeHandler: func(w http.ResponseWriter, r *http.Request) {
			gotKind = true
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/compute/all", nil))

	assert.True(t, gotAll)
	assert.False(t, gotKind)
}

func TestRouter_RateLimitHeadersOnLimitedRoutes(t *testing.T) {
	router := testRouter(api.Dependencies{
		ListMoviesHandler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/movies", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRouter_RateLimitExceeded(t *testing.T) {
	c := &stubCache{count: 500} // counter already past the limit
	router := api.NewRouter(api.Dependencies{
		RateLimit: mw.NewRateLimit(c, 120),
		ListMoviesHandler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/movies", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRouter_HealthNotRateLimited(t *testing.T) {
	c := &stubCache{count: 500}
	router := api.NewRouter(api.Dependencies{
		RateLimit: mw.NewRateLimit(c, 120),
		HealthHandler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}
