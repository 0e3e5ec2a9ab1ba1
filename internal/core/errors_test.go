package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := &Error{Code: "NO_DATA", Message: "no market data available"}
	if got := err.Error(); got != "[NO_DATA] no market data available" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestError_FormatWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := WrapError(ErrNoData, cause)

	if got := err.Error(); got != "[NO_DATA] no market data available: connection refused" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	wrapped := WrapError(ErrUnknownIndicator, fmt.Errorf("SUPERTREND"))

	if !errors.Is(wrapped, ErrUnknownIndicator) {
		t.Error("wrapped error should match base error by code")
	}
	if errors.Is(wrapped, ErrNoData) {
		t.Error("wrapped error should not match a different code")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := WrapError(ErrSimulation, cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through to the cause")
	}
}
