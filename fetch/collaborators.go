package fetch

import (
	"context"
	"os"
	"time"
)

// Importer takes ownership of a verified staging file. It may move or
// copy the file; whatever remains at stagingPath afterwards is removed.
type Importer interface {
	Import(ctx context.Context, stagingPath string, metadata Metadata, digest string) (Result, error)
}

// ImporterFunc adapts a func to an Importer.
type ImporterFunc func(ctx context.Context, stagingPath string, metadata Metadata, digest string) (Result, error)

func (f ImporterFunc) Import(ctx context.Context, stagingPath string, metadata Metadata, digest string) (Result, error) {
	return f(ctx, stagingPath, metadata, digest)
}

// DirPreparer creates a directory and its parents, succeeding when it
// already exists.
type DirPreparer interface {
	EnsureDir(path string) error
}

// Remover deletes a path recursively, succeeding when it does not exist.
type Remover interface {
	RemoveAll(path string) error
}

// osFS is the default DirPreparer and Remover.
type osFS struct{}

func (osFS) EnsureDir(path string) error { return os.MkdirAll(path, 0o755) }

func (osFS) RemoveAll(path string) error { return os.RemoveAll(path) }

// Metrics observes pipelines. outcome is "success" or a Kind name.
type Metrics interface {
	ObserveAttempt(outcome string, duration time.Duration)
	ObservePipeline(outcome string, attempts int, duration time.Duration)
	AddBytes(n int64)
	IncShared()
}

type nopMetrics struct{}

func (nopMetrics) ObserveAttempt(string, time.Duration)       {}
func (nopMetrics) ObservePipeline(string, int, time.Duration) {}
func (nopMetrics) AddBytes(int64)                             {}
func (nopMetrics) IncShared()                                 {}

func outcome(err error) string {
	if err == nil {
		return "success"
	}

	return KindOf(err).String()
}
