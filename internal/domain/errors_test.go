package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := ErrCapacityExceeded.WithDetail("available", 2)

	if !errors.Is(err, ErrCapacityExceeded) {
		t.Error("detailed error should match its sentinel")
	}
	if errors.Is(err, ErrRefundExpired) {
		t.Error("different codes must not match")
	}
	if !errors.Is(fmt.Errorf("confirm: %w", err), ErrCapacityExceeded) {
		t.Error("wrapped error should match")
	}
	if !errors.Is(NotFound("ticket", 4), ErrEntityNotFound) {
		t.Error("NotFound should match ErrEntityNotFound")
	}
}

func TestError_WithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrEventHasActivePurchases.WithDetail("activePurchaseCount", 3)
	if len(ErrEventHasActivePurchases.Details) != 0 {
		t.Errorf("sentinel mutated: %v", ErrEventHasActivePurchases.Details)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("x: %w", ErrSalesClosed)); got != CodeSalesClosed {
		t.Errorf("CodeOf = %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q", got)
	}
}
