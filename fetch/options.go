package fetch

import (
	"errors"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/tarfetch/client"
	"github.com/adamwoolhether/tarfetch/client/stage"
	"github.com/adamwoolhether/tarfetch/retry"
)

// Option is a functional option for configuring a [Fetcher] via [New].
type Option func(*options) error

type options struct {
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     Metrics
	policy      *retry.Policy
	client      *client.Client
	importer    Importer
	dirs        DirPreparer
	remover     Remover
	stagingRoot string
	algorithm   stage.Algorithm
	maxSize     int64
	mode        os.FileMode
	progress    bool
}

// WithLogger injects a custom [slog.Logger].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracer records pipeline and attempt spans with tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithMetrics reports pipeline activity to m. A nil m disables metrics.
func WithMetrics(m Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithPolicy replaces [retry.DefaultPolicy].
func WithPolicy(p retry.Policy) Option {
	return func(o *options) error {
		if err := p.Validate(); err != nil {
			return err
		}
		o.policy = &p
		return nil
	}
}

// WithClient sets the transfer client. The default is built with a five
// minute timeout.
func WithClient(c *client.Client) Option {
	return func(o *options) error {
		if c == nil {
			return errors.New("client must not be nil")
		}
		o.client = c
		return nil
	}
}

// WithImporter sets the handoff step. It is required.
func WithImporter(imp Importer) Option {
	return func(o *options) error {
		if imp == nil {
			return errors.New("importer must not be nil")
		}
		o.importer = imp
		return nil
	}
}

// WithDirPreparer replaces the os.MkdirAll based default.
func WithDirPreparer(d DirPreparer) Option {
	return func(o *options) error {
		if d == nil {
			return errors.New("dir preparer must not be nil")
		}
		o.dirs = d
		return nil
	}
}

// WithRemover replaces the os.RemoveAll based default.
func WithRemover(r Remover) Option {
	return func(o *options) error {
		if r == nil {
			return errors.New("remover must not be nil")
		}
		o.remover = r
		return nil
	}
}

// WithStagingRoot sets the directory under which staging files are
// derived with [StagingPath]. It defaults to a tarfetch directory in
// [os.TempDir].
func WithStagingRoot(root string) Option {
	return func(o *options) error {
		if root == "" {
			return errors.New("staging root must not be empty")
		}
		o.stagingRoot = root
		return nil
	}
}

// WithAlgorithm sets the digest algorithm for requests that name none.
func WithAlgorithm(alg stage.Algorithm) Option {
	return func(o *options) error {
		if _, err := alg.New(); err != nil {
			return err
		}
		o.algorithm = alg
		return nil
	}
}

// WithMaxSize rejects artifacts larger than n bytes. Zero means no limit.
func WithMaxSize(n int64) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("max size must not be negative")
		}
		o.maxSize = n
		return nil
	}
}

// WithFileMode sets the permissions of staged files.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) error {
		if mode == 0 {
			return errors.New("file mode must not be zero")
		}
		o.mode = mode
		return nil
	}
}

// WithProgress logs transfer progress of every attempt.
func WithProgress() Option {
	return func(o *options) error {
		o.progress = true
		return nil
	}
}
