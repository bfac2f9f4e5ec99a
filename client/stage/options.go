package stage

import (
	"errors"
	"os"
)

// Option defines optional settings for staging a body.
//
// WithAlgorithm selects the digest algorithm, defaulting to DefaultAlgorithm.
//
// WithMaxSize fails the transfer with ErrTooLarge once more than n bytes
// arrive.
//
// WithFileMode sets the permissions of the finished file, defaulting to 0644.
//
// WithProgress enables periodic progress logging via the logger supplied
// to Stage.
type Option func(*options) error

type options struct {
	algorithm Algorithm
	maxSize   int64
	mode      os.FileMode
	progress  bool
}

func defaultOptions() options {
	return options{
		algorithm: DefaultAlgorithm,
		mode:      0o644,
	}
}

func WithAlgorithm(alg Algorithm) Option {
	return func(opts *options) error {
		if _, err := alg.New(); err != nil {
			return err
		}

		opts.algorithm = alg
		return nil
	}
}

func WithMaxSize(n int64) Option {
	return func(opts *options) error {
		if n < 0 {
			return errors.New("max size must not be negative")
		}

		opts.maxSize = n
		return nil
	}
}

func WithFileMode(mode os.FileMode) Option {
	return func(opts *options) error {
		if mode == 0 {
			return errors.New("file mode must not be zero")
		}

		opts.mode = mode
		return nil
	}
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}
