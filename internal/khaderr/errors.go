// Package khaderr implements the structured error taxonomy the engine
// surfaces to callers: dimension mismatches, invalid configuration, a
// not-yet-built index, and I/O/serialization failures during
// persistence. Internal programmer errors (kernel length mismatches,
// empty k-means input, an out-of-range PQ code) are never wrapped
// here — they panic, per the propagation policy that only user-facing
// conditions are recoverable errors.
package khaderr

import "fmt"

// Code identifies the error taxonomy member, mirroring the teacher's
// ErrorCode enum but trimmed to the six members the engine's contract
// actually names.
type Code int

const (
	CodeDimensionMismatch Code = iota
	CodeInvalidConfig
	CodeIndexNotBuilt
	CodeIO
	CodeSerialization
	CodeVectorNotFound
)

func (c Code) String() string {
	switch c {
	case CodeDimensionMismatch:
		return "DIMENSION_MISMATCH"
	case CodeInvalidConfig:
		return "INVALID_CONFIG"
	case CodeIndexNotBuilt:
		return "INDEX_NOT_BUILT"
	case CodeIO:
		return "IO"
	case CodeSerialization:
		return "SERIALIZATION"
	case CodeVectorNotFound:
		return "VECTOR_NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// Error is the engine's single structured error type. All of the
// taxonomy's recoverable members are constructed through it so
// callers can type-switch or errors.As uniformly, then inspect Code
// for which branch of the taxonomy they hit.
type Error struct {
	Code    Code
	Message string
	Cause   error

	// Dimension-mismatch detail, set only when Code == CodeDimensionMismatch.
	Expected, Got int

	// Vector-not-found detail, set only when Code == CodeVectorNotFound.
	ID uint32
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("khadb: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("khadb: %s: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause attaches an underlying error and returns the receiver for
// chaining.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// DimensionMismatch reports a vector whose length doesn't match the
// collection's configured dimensionality.
func DimensionMismatch(expected, got int) *Error {
	return &Error{
		Code:     CodeDimensionMismatch,
		Message:  fmt.Sprintf("expected dimension %d, got %d", expected, got),
		Expected: expected,
		Got:      got,
	}
}

// InvalidConfig reports a configuration that violates an invariant
// (zero dimensions, a pq_subvectors that doesn't divide dimensions,
// building an empty database, k greater than the training set...).
func InvalidConfig(message string) *Error {
	return &Error{Code: CodeInvalidConfig, Message: message}
}

// ErrIndexNotBuilt is returned by Search/BatchSearch when no
// build_index call has succeeded since the last insert. It carries no
// per-call data, so it is a package-level sentinel rather than a
// constructor, matching how the spec treats it as a parameterless
// condition.
var ErrIndexNotBuilt = &Error{Code: CodeIndexNotBuilt, Message: "index not built"}

// IO reports a persistence failure at the filesystem layer (open,
// read, write, truncate).
func IO(cause error) *Error {
	return &Error{Code: CodeIO, Message: "I/O failure", Cause: cause}
}

// Serialization reports a persistence frame/format error: bad magic,
// unsupported version, or a decode failure.
func Serialization(message string, cause error) *Error {
	return &Error{Code: CodeSerialization, Message: message, Cause: cause}
}

// VectorNotFound is reserved for deletion APIs the core does not
// implement; kept for taxonomy completeness per spec §7.
func VectorNotFound(id uint32) *Error {
	return &Error{Code: CodeVectorNotFound, Message: fmt.Sprintf("vector %d not found", id), ID: id}
}
