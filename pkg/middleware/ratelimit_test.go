package middleware

import (
	gocontext "context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/laurel/pkg/models"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

type fakeRateLimitStore struct {
	counts map[string]int
	err    error
	window time.Time
}

func newFakeRateLimitStore() *fakeRateLimitStore {
	return &fakeRateLimitStore{
		counts: map[string]int{},
		window: time.Now().UTC(),
	}
}

func (f *fakeRateLimitStore) Increment(_ gocontext.Context, clientID, operation string, _ time.Duration) (*models.RateLimitCounter, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := clientID + "/" + operation
	f.counts[key]++
	return &models.RateLimitCounter{
		ClientID:        clientID,
		Operation:       operation,
		WindowStartedAt: f.window,
		Count:           f.counts[key],
	}, nil
}

func doRequest(e *echo.Echo, clientID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if clientID != "" {
		req.Header.Set(HeaderClientID, clientID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newRateLimitedEcho(store RateLimitStore, limit int) *echo.Echo {
	e := echo.New()
	e.Use(Context())
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	}, RateLimit(store, RateLimitConfig{
		Operation: OperationRead,
		Limit:     limit,
		Window:    time.Minute,
	}, testLogger()))
	return e
}

func TestRateLimitAllowsUnderBudget(t *testing.T) {
	e := newRateLimitedEcho(newFakeRateLimitStore(), 3)

	for i := 0; i < 3; i++ {
		rec := doRequest(e, "client-a")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	e := newRateLimitedEcho(newFakeRateLimitStore(), 2)

	doRequest(e, "client-a")
	doRequest(e, "client-a")
	rec := doRequest(e, "client-a")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitBucketsPerClient(t *testing.T) {
	e := newRateLimitedEcho(newFakeRateLimitStore(), 1)

	require.Equal(t, http.StatusOK, doRequest(e, "client-a").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(e, "client-a").Code)

	// A different client carries its own budget
	assert.Equal(t, http.StatusOK, doRequest(e, "client-b").Code)
}

func TestRateLimitFailsOpenOnStoreError(t *testing.T) {
	store := newFakeRateLimitStore()
	store.err = errors.New("connection refused")
	e := newRateLimitedEcho(store, 1)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doRequest(e, "client-a").Code)
	}
}

func TestRateLimitAnonymousClientsBucketByIP(t *testing.T) {
	store := newFakeRateLimitStore()
	e := newRateLimitedEcho(store, 10)

	doRequest(e, "")

	// Exactly one counter, keyed by the request IP
	require.Len(t, store.counts, 1)
	for key := range store.counts {
		assert.Contains(t, key, "/"+OperationRead)
	}
}
