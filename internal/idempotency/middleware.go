package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	maxKeyLength = 255
)

// ScopeFunc namespaces a client key, typically by the authenticated user.
type ScopeFunc func(r *http.Request) string

// Middleware replays the stored response for a repeated Idempotency-Key on
// POST requests. Requests without the header pass straight through.
func Middleware(store Store, scope ScopeFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(HeaderKey)
			if r.Method != http.MethodPost || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxKeyLength {
				writeJSONError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}

			key := r.Method + " " + r.URL.Path + " " + clientKey
			if scope != nil {
				key = scope(r) + " " + key
			}

			rec, err := store.Reserve(r.Context(), key)
			switch {
			case errors.Is(err, ErrInFlight):
				writeJSONError(w, http.StatusConflict, err.Error())
				return
			case err != nil:
				zap.L().Error("Idempotency store unavailable", zap.Error(err))
				writeJSONError(w, http.StatusServiceUnavailable, "idempotency store unavailable")
				return
			case rec != nil:
				zap.L().Debug("Replaying idempotent response",
					zap.String("path", r.URL.Path),
					zap.Int("status", rec.Status))
				replay(w, rec)
				return
			}

			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			completed := false
			defer func() {
				if completed {
					return
				}
				// Use a fresh context: the request one may already be cancelled.
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := store.Release(ctx, key); err != nil {
					zap.L().Warn("Failed to release idempotency key", zap.Error(err))
				}
			}()

			next.ServeHTTP(cw, r)

			result := Record{
				Status:      cw.status,
				ContentType: cw.Header().Get("Content-Type"),
				Body:        cw.body.Bytes(),
			}
			if !result.successful() {
				return
			}
			if err := store.Complete(r.Context(), key, result); err != nil {
				zap.L().Warn("Failed to store idempotent response", zap.Error(err))
				return
			}
			completed = true
		})
	}
}

func replay(w http.ResponseWriter, rec *Record) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"detail": msg}); err != nil {
		zap.L().Error("Failed to encode error response", zap.Error(err))
	}
}

// captureWriter tees the response so it can be stored.
type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	if !c.wroteHeader {
		c.status = status
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
