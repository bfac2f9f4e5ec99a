package fetch

import (
	"errors"
	"maps"

	"github.com/adamwoolhether/tarfetch/client"
	"github.com/adamwoolhether/tarfetch/client/stage"
)

var (
	// ErrDirectoryPrep indicates the staging directory could not be created.
	ErrDirectoryPrep = errors.New("preparing staging directory")
	// ErrImport indicates the import step rejected a verified artifact.
	ErrImport = errors.New("importing artifact")
	// ErrInvalidRequest indicates a Request that cannot be fetched.
	ErrInvalidRequest = errors.New("invalid fetch request")
	// ErrClosed is returned by Fetch after Close was called.
	ErrClosed = errors.New("fetcher closed")
	// ErrBatchShutdown is returned for batch items started after Shutdown.
	ErrBatchShutdown = errors.New("batch shut down")
)

// Sentinels of the lower layers, re-exported so callers need only import fetch.
var (
	ErrTransport            = client.ErrTransport
	ErrUnexpectedStatusCode = client.ErrUnexpectedStatusCode
	ErrServerStatus         = client.ErrServerStatus
	ErrClientStatus         = client.ErrClientStatus
	ErrAuthFailure          = client.ErrAuthFailure
	ErrDigestMismatch       = stage.ErrDigestMismatch
	ErrStagingIO            = stage.ErrStagingIO
	ErrSourceRead           = stage.ErrSourceRead
	ErrTooLarge             = stage.ErrTooLarge
)

// Metadata is opaque package information passed through to the Importer.
type Metadata map[string]string

// Clone returns a copy of m; nil stays nil.
func (m Metadata) Clone() Metadata {
	return maps.Clone(m)
}

// Request describes one artifact to fetch. URL identifies the artifact
// and is the deduplication key.
type Request struct {
	URL string
	// Digest is the expected lowercase hex digest. Empty trusts the first
	// successful transfer.
	Digest string
	// Algorithm overrides the fetcher's digest algorithm.
	Algorithm stage.Algorithm
	// Credential is applied unmodified to every attempt.
	Credential client.Credential
	Metadata   Metadata
}

func (r Request) clone() Request {
	r.Metadata = r.Metadata.Clone()
	return r
}

// Result is what a pipeline hands back after a successful import.
// ResolvedURL, From and Digest are always set by the pipeline, overriding
// whatever the Importer returned.
type Result struct {
	ResolvedURL string
	From        string
	Digest      string
	Algorithm   stage.Algorithm
	// Path is where the Importer placed the artifact.
	Path     string
	Size     int64
	Metadata Metadata
	// Attempts is the number of transfer attempts the pipeline made.
	Attempts int
	// Shared is true when the result was delivered to more than one caller.
	Shared bool
}

// State is a pipeline stage.
type State int

const (
	StatePreparing State = iota
	StateFetching
	StateVerifying
	StateHandoff
	StateCleanup
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePreparing:
		return "preparing"
	case StateFetching:
		return "fetching"
	case StateVerifying:
		return "verifying"
	case StateHandoff:
		return "handoff"
	case StateCleanup:
		return "cleanup"
	case StateDone:
		return "done"
	}

	return "unknown"
}
