package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("create transfer: %w", Detail(ErrInsufficientFunds, "balance 10.00, requested 20.00"))

	if !errors.Is(wrapped, ErrValidation) {
		t.Fatalf("expected validation kind")
	}
	if !errors.Is(wrapped, ErrInsufficientFunds) {
		t.Fatalf("expected to match the refined sentinel")
	}
	if errors.Is(wrapped, ErrSameAccount) {
		t.Fatalf("must not match an unrelated validation sentinel")
	}
	if KindOf(wrapped) != KindValidation {
		t.Fatalf("KindOf = %s", KindOf(wrapped))
	}
	if got := PublicMessage(wrapped); got != "insufficient balance: balance 10.00, requested 20.00" {
		t.Fatalf("PublicMessage = %q", got)
	}
}

func TestSystemAndBusyErrors(t *testing.T) {
	plain := errors.New("disk I/O error")
	if KindOf(plain) != KindSystem {
		t.Fatalf("unknown errors are system errors")
	}
	if PublicMessage(plain) != "internal error" {
		t.Fatalf("system errors must not leak details")
	}
	if !IsRetryable(fmt.Errorf("lock account 3: %w", ErrLockTimeout)) {
		t.Fatalf("lock timeout must be retryable")
	}
	if IsRetryable(ErrAccountNotFound) {
		t.Fatalf("not found is not retryable")
	}
	if KindOf(nil) != "" {
		t.Fatalf("nil has no kind")
	}
}
