package client

import (
	"errors"

	"github.com/adamwoolhether/tarfetch/client/stage"
)

// Retryable reports whether an [Client.Attempt] error may succeed when
// repeated: no response at all, a body that broke off mid-stream, or a
// 408/5xx status. Local staging failures, size limits and other statuses
// are terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *UnexpectedStatusError
	if errors.As(err, &statusErr) {
		return serverStatus(statusErr.StatusCode)
	}

	switch {
	case errors.Is(err, stage.ErrCancelled),
		errors.Is(err, stage.ErrStagingIO),
		errors.Is(err, stage.ErrTooLarge),
		errors.Is(err, ErrInvalidURL):
		return false
	case errors.Is(err, ErrTransport),
		errors.Is(err, stage.ErrSourceRead),
		errors.Is(err, stage.ErrContentLengthMismatch):
		return true
	}

	return false
}
