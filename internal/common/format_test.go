package common

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatTokens(t *testing.T) {
	got := FormatTokens(decimal.RequireFromString("1000"))
	if got != "1000.00 tokens" {
		t.Errorf("FormatTokens = %q", got)
	}
}

func TestFormatDelta(t *testing.T) {
	tests := map[string]string{
		"25":    "+25.00",
		"-12.5": "-12.50",
		"0":     "0.00",
	}
	for in, want := range tests {
		if got := FormatDelta(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatDelta(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("a much longer description", 10); got != "a much ..." {
		t.Errorf("got %q", got)
	}
	if got := Truncate("abcdef", 2); got != "ab" {
		t.Errorf("got %q", got)
	}
}
