package fetch

import (
	"context"
	"errors"

	"github.com/adamwoolhether/tarfetch/client"
	"github.com/adamwoolhether/tarfetch/client/stage"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindDirectoryPrep
	KindTransport
	KindServer
	KindClient
	KindDigestMismatch
	KindStagingIO
	KindImport
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindDirectoryPrep:
		return "directory_prep"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindDigestMismatch:
		return "digest_mismatch"
	case KindStagingIO:
		return "staging_io"
	case KindImport:
		return "import"
	case KindCancelled:
		return "cancelled"
	}

	return "unknown"
}

// Retryable reports whether failures of this kind are retried by a pipeline.
func (k Kind) Retryable() bool {
	return k == KindTransport || k == KindServer
}

// KindOf maps err to its Kind. A nil error is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var statusErr *client.UnexpectedStatusError
	switch {
	case errors.Is(err, ErrDirectoryPrep):
		return KindDirectoryPrep
	case errors.Is(err, ErrImport):
		return KindImport
	case errors.Is(err, stage.ErrDigestMismatch):
		return KindDigestMismatch
	case errors.As(err, &statusErr):
		if errors.Is(statusErr, client.ErrServerStatus) {
			return KindServer
		}
		return KindClient
	case errors.Is(err, stage.ErrCancelled), errors.Is(err, ErrClosed):
		return KindCancelled
	case errors.Is(err, stage.ErrStagingIO):
		return KindStagingIO
	case errors.Is(err, client.ErrTransport),
		errors.Is(err, stage.ErrSourceRead),
		errors.Is(err, stage.ErrContentLengthMismatch):
		return KindTransport
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	}

	return KindUnknown
}
