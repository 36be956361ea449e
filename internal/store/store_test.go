package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInsufficientFundsErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("payment: %w", &InsufficientFundsError{
		UserId:    "u1",
		Available: decimal.NewFromInt(40),
		Required:  decimal.NewFromInt(100),
	})

	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected errors.Is(err, ErrInsufficientFunds)")
	}

	var ife *InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("expected errors.As to find *InsufficientFundsError")
	}
	if !ife.Shortfall().Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected shortfall 60, got %s", ife.Shortfall())
	}
	if ife.Error() != "insufficient balance. Current: 40, Required: 100" {
		t.Errorf("unexpected message: %s", ife.Error())
	}
}

func TestStoreFailureKeepsCause(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := StoreFailure("insert transaction", cause)

	if !errors.Is(err, ErrStoreFailure) {
		t.Errorf("expected ErrStoreFailure in chain")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected driver error in chain")
	}
	if IsClientError(err) {
		t.Errorf("store failures must not be client errors")
	}
}

func TestClientErrorClassification(t *testing.T) {
	cases := []struct {
		err    error
		client bool
	}{
		{NotFound("user", "u1"), true},
		{Conflict("email already registered"), true},
		{fmt.Errorf("%w: amount must be positive", ErrInvalidAmount), true},
		{ErrForbidden, true},
		{ErrUnauthorized, true},
		{ErrConcurrentModification, false},
		{errors.New("boom"), false},
	}
	for _, c := range cases {
		if got := IsClientError(c.err); got != c.client {
			t.Errorf("IsClientError(%v) = %v, want %v", c.err, got, c.client)
		}
	}
	if !IsNotFound(NotFound("product", "7")) {
		t.Errorf("expected NotFound to be detected")
	}
}

func TestNewReferenceIsUniqueAndPrefixed(t *testing.T) {
	a, b := NewReference(), NewReference()
	if a == b {
		t.Fatalf("expected distinct references, got %s twice", a)
	}
	if len(a) != len("tx_")+32 || a[:3] != "tx_" {
		t.Errorf("unexpected reference format: %s", a)
	}
}
