package idempotency

import (
	"context"
	"errors"
	"net/http"
)

// ErrInFlight is returned by Reserve while another request holds the key.
var ErrInFlight = errors.New("request with this idempotency key is still in progress")

// Record is a stored response.
type Record struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Store reserves keys and remembers completed responses.
type Store interface {
	// Reserve returns the stored record for key if one exists. Otherwise it
	// reserves key as in flight and returns (nil, nil). A key that is
	// already in flight yields ErrInFlight.
	Reserve(ctx context.Context, key string) (*Record, error)
	// Complete stores the response for key.
	Complete(ctx context.Context, key string, rec Record) error
	// Release drops an in-flight reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}

func (r Record) successful() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}
