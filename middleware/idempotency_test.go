package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type memReplayStore struct {
	entries map[string][]byte
}

func newMemReplayStore() *memReplayStore {
	return &memReplayStore{entries: map[string][]byte{}}
}

func (s *memReplayStore) Fetch(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := s.entries[key]
	return data, ok, nil
}

func (s *memReplayStore) Save(_ context.Context, key string, data []byte, _ time.Duration) error {
	s.entries[key] = data
	return nil
}

type failingReplayStore struct{}

func (failingReplayStore) Fetch(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingReplayStore) Save(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

// idempotencyRouter counts handler invocations; each invocation answers with
// a distinct transaction id so a replay is distinguishable from a re-run.
func idempotencyRouter(store ReplayStore, status int, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/payments/initiate", idempotencyWithStore(store), func(c *gin.Context) {
		*calls++
		c.JSON(status, gin.H{"transactionId": fmt.Sprintf("TXN_%d", *calls)})
	})
	r.GET("/payments/initiate", idempotencyWithStore(store), func(c *gin.Context) {
		*calls++
		c.JSON(status, gin.H{"transactionId": fmt.Sprintf("TXN_%d", *calls)})
	})
	return r
}

func postInitiate(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/initiate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysRepeatedKey(t *testing.T) {
	var calls int
	r := idempotencyRouter(newMemReplayStore(), http.StatusOK, &calls)

	first := postInitiate(r, "key-1")
	second := postInitiate(r, "key-1")

	require.Equal(t, 1, calls)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Contains(t, second.Body.String(), "TXN_1")
}

func TestIdempotency_DistinctKeysRunIndependently(t *testing.T) {
	var calls int
	r := idempotencyRouter(newMemReplayStore(), http.StatusOK, &calls)

	first := postInitiate(r, "key-1")
	second := postInitiate(r, "key-2")

	require.Equal(t, 2, calls)
	require.NotEqual(t, first.Body.String(), second.Body.String())
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	var calls int
	r := idempotencyRouter(newMemReplayStore(), http.StatusOK, &calls)

	postInitiate(r, "")
	postInitiate(r, "")

	require.Equal(t, 2, calls)
}

func TestIdempotency_StoreErrorPassesThrough(t *testing.T) {
	var calls int
	r := idempotencyRouter(failingReplayStore{}, http.StatusOK, &calls)

	first := postInitiate(r, "key-1")
	second := postInitiate(r, "key-1")

	// Replay protection is best-effort: every request reaches the handler
	// when the store is down.
	require.Equal(t, 2, calls)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
}

func TestIdempotency_ClientErrorsAreReplayed(t *testing.T) {
	var calls int
	r := idempotencyRouter(newMemReplayStore(), http.StatusBadRequest, &calls)

	postInitiate(r, "key-1")
	second := postInitiate(r, "key-1")

	require.Equal(t, 1, calls)
	require.Equal(t, http.StatusBadRequest, second.Code)
}

func TestIdempotency_ServerErrorsAreNotReplayed(t *testing.T) {
	var calls int
	r := idempotencyRouter(newMemReplayStore(), http.StatusInternalServerError, &calls)

	postInitiate(r, "key-1")
	postInitiate(r, "key-1")

	require.Equal(t, 2, calls)
}

func TestIdempotency_SkipsNonPost(t *testing.T) {
	var calls int
	r := idempotencyRouter(newMemReplayStore(), http.StatusOK, &calls)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/payments/initiate", nil)
		req.Header.Set(idempotencyHeader, "key-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.Equal(t, 2, calls)
}
