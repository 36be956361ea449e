package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	rec, err := s.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = s.Reserve(ctx, "k")
	assert.ErrorIs(t, err, ErrInFlight)

	require.NoError(t, s.Complete(ctx, "k", Record{Status: 201, Body: []byte("ok")}))
	rec, err = s.Reserve(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 201, rec.Status)
	assert.Equal(t, "ok", string(rec.Body))

	// Release leaves completed responses alone.
	require.NoError(t, s.Release(ctx, "k"))
	rec, err = s.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestMemoryStore_ReleaseAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	_, err := s.Reserve(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "k"))

	rec, err := s.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, rec, "released key can be reserved again")

	require.NoError(t, s.Complete(ctx, "k", Record{Status: 200}))
	now = now.Add(2 * time.Minute)
	rec, err = s.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, rec, "expired response is forgotten")
}

func TestDecodeStored(t *testing.T) {
	_, err := decodeStored(inFlightMarker)
	assert.ErrorIs(t, err, ErrInFlight)

	rec, err := decodeStored(`{"status":201,"content_type":"application/json","body":"eyJvayI6dHJ1ZX0="}`)
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)
	assert.Equal(t, `{"ok":true}`, string(rec.Body))

	_, err = decodeStored("not json")
	assert.Error(t, err)
}

func countingHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"call":` + string(rune('0'+n)) + `}`))
	})
}

func post(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/wallet/payment", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_ReplaysSuccess(t *testing.T) {
	var calls int32
	h := Middleware(NewMemoryStore(time.Minute), nil)(countingHandler(&calls, http.StatusOK))

	first := post(h, "abc")
	second := post(h, "abc")

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Empty(t, first.Header().Get(HeaderReplayed))
}

func TestMiddleware_FailureIsNotStored(t *testing.T) {
	var calls int32
	h := Middleware(NewMemoryStore(time.Minute), nil)(countingHandler(&calls, http.StatusPaymentRequired))

	post(h, "abc")
	second := post(h, "abc")

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusPaymentRequired, second.Code)
}

func TestMiddleware_WithoutKeyPassesThrough(t *testing.T) {
	var calls int32
	h := Middleware(NewMemoryStore(time.Minute), nil)(countingHandler(&calls, http.StatusOK))

	post(h, "")
	post(h, "")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMiddleware_InFlightConflict(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	_, err := store.Reserve(context.Background(), "POST /wallet/payment abc")
	require.NoError(t, err)

	var calls int32
	h := Middleware(store, nil)(countingHandler(&calls, http.StatusOK))
	rec := post(h, "abc")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrInFlight.Error(), body["detail"])
}

func TestWriteJSONError_EscapesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSONError(rec, http.StatusBadRequest, `key "a\b" rejected`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, `key "a\b" rejected`, body["detail"])
}

func TestMiddleware_ScopesKeys(t *testing.T) {
	var calls int32
	user := "alice"
	scope := func(r *http.Request) string { return user }
	h := Middleware(NewMemoryStore(time.Minute), scope)(countingHandler(&calls, http.StatusOK))

	post(h, "abc")
	user = "bob"
	post(h, "abc")

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
