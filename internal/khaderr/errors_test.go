package khaderr

import (
	"errors"
	"testing"
)

func TestDimensionMismatchFields(t *testing.T) {
	err := DimensionMismatch(128, 64)
	if err.Code != CodeDimensionMismatch {
		t.Fatalf("Code = %v, want CodeDimensionMismatch", err.Code)
	}
	if err.Expected != 128 || err.Got != 64 {
		t.Fatalf("Expected/Got = %d/%d, want 128/64", err.Expected, err.Got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := IO(cause)
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is did not see through to cause")
	}
}

func TestIndexNotBuiltSentinel(t *testing.T) {
	if ErrIndexNotBuilt.Code != CodeIndexNotBuilt {
		t.Fatalf("unexpected code %v", ErrIndexNotBuilt.Code)
	}
}
