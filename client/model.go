package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/adamwoolhether/tarfetch/client/stage"
)

// maxErrBodySize caps the amount of response body read when
// building an error for an unexpected status code. This prevents
// unbounded memory usage when a large response arrives with a
// wrong status.
const maxErrBodySize = 4 << 10 // 4KB

// maxDrainSize caps how much of an unused body is read before closing,
// so the connection can be reused without reading a whole artifact.
const maxDrainSize = 64 << 10 // 64KB

var (
	// ErrTransport indicates no HTTP response was received: DNS failure,
	// refused connection, timeout before headers.
	ErrTransport = errors.New("transport failure")
	// ErrInvalidURL indicates the artifact URL cannot be requested.
	ErrInvalidURL = errors.New("invalid artifact url")
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrServerStatus is joined with [ErrUnexpectedStatusCode] for 408 and 5xx.
	ErrServerStatus = errors.New("server failure")
	// ErrClientStatus is joined with [ErrUnexpectedStatusCode] for every
	// other non-2xx status.
	ErrClientStatus = errors.New("client failure")
	// ErrAuthFailure is additionally joined when the server
	// responds with 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
)

// UnexpectedStatusError is returned when the HTTP response status code
// is not 2xx.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func newStatusError(code int, body string) *UnexpectedStatusError {
	var err error
	switch {
	case serverStatus(code):
		err = fmt.Errorf("%w: %w", ErrServerStatus, ErrUnexpectedStatusCode)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		err = fmt.Errorf("%w: %w: %w", ErrClientStatus, ErrAuthFailure, ErrUnexpectedStatusCode)
	default:
		err = fmt.Errorf("%w: %w", ErrClientStatus, ErrUnexpectedStatusCode)
	}

	return &UnexpectedStatusError{StatusCode: code, Body: body, Err: err}
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// Receipt is the outcome of a successful [Client.Attempt]. Status is also
// set on failed attempts that received a response.
type Receipt struct {
	Status int
	stage.Receipt
}

func serverStatus(code int) bool {
	return code == http.StatusRequestTimeout || code >= 500
}
