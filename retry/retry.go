package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Operation is one attempt. attempt is 1-indexed.
type Operation[T any] func(ctx context.Context, attempt int) (T, error)

// Classifier reports whether a failed attempt may be repeated.
type Classifier func(error) bool

// Notify is called before each backoff wait with the failed attempt's
// number, its error and the delay about to be waited.
type Notify func(attempt int, err error, delay time.Duration)

// Do runs op until it succeeds, fails with an error retryable rejects,
// or p.Attempts() attempts were made, and returns the last attempt's
// value and error. Attempts never overlap. A done ctx ends the loop
// without further attempts or waiting.
func Do[T any](ctx context.Context, p Policy, retryable Classifier, op Operation[T], notify Notify) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}

	var attempt int
	operation := func() (T, error) {
		attempt++

		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || retryable == nil || !retryable(err) {
			return v, backoff.Permanent(err)
		}

		return v, err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, d time.Duration) {
			notify(attempt, err, d)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(p.Attempts()-1)), ctx)

	return backoff.RetryNotifyWithData(operation, b, onRetry)
}
