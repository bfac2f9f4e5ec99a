package stage

import (
	"errors"
	"fmt"
)

var (
	// ErrStagingIO indicates a local write, sync or rename failure.
	ErrStagingIO = errors.New("staging io failure")
	// ErrSourceRead indicates the body stream failed before reaching EOF.
	ErrSourceRead = errors.New("reading source stream")
	// ErrTooLarge indicates the body exceeded the configured maximum size.
	ErrTooLarge = errors.New("artifact exceeds maximum size")
	// ErrContentLengthMismatch indicates the byte count did not match Content-Length.
	ErrContentLengthMismatch = errors.New("content length mismatch")
	// ErrDigestMismatch indicates the observed digest differs from the expected one.
	ErrDigestMismatch = errors.New("digest mismatch")
	// ErrUnknownAlgorithm indicates an unsupported digest algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")
	// ErrCancelled indicates the transfer was cancelled via context.
	ErrCancelled = errors.New("staging cancelled")
)

// Error wraps one of the package sentinels with additional detail.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Receipt describes a body that was fully staged.
type Receipt struct {
	Digest    string
	Algorithm Algorithm
	Size      int64
}

// Verify compares the receipt's digest against expected. An empty
// expected digest always verifies.
func (r Receipt) Verify(expected string) error {
	if expected == "" {
		return nil
	}

	if !r.Algorithm.Equal(expected, r.Digest) {
		return &Error{
			Err:    ErrDigestMismatch,
			Detail: fmt.Sprintf("expected %s, got %s", expected, r.Digest),
		}
	}

	return nil
}
