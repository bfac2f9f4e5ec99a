// Package retry drives bounded, strictly sequential attempts with an
// exponential backoff between them.
package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrInvalidPolicy indicates a Policy that cannot produce a schedule.
	ErrInvalidPolicy = errors.New("invalid retry policy")
)

// Policy bounds the attempts made for one operation.
//
// Retries is the total number of attempts; values below 1 mean a single
// attempt. The delay after attempt n (1-indexed) is
// min(MaxDelay, MinDelay*Factor^(n-1)), never below MinDelay.
type Policy struct {
	Retries  int
	Factor   float64
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultPolicy spreads three attempts over about a minute.
var DefaultPolicy = Policy{
	Retries:  3,
	Factor:   10,
	MinDelay: 10 * time.Second,
	MaxDelay: 60 * time.Second,
}

// Validate rejects policies whose schedule would shrink or be negative.
func (p Policy) Validate() error {
	switch {
	case p.Retries < 0:
		return fmt.Errorf("%w: retries %d must not be negative", ErrInvalidPolicy, p.Retries)
	case p.Factor < 1:
		return fmt.Errorf("%w: factor %v must be at least 1", ErrInvalidPolicy, p.Factor)
	case p.MinDelay < 0:
		return fmt.Errorf("%w: min delay %v must not be negative", ErrInvalidPolicy, p.MinDelay)
	case p.MaxDelay < p.MinDelay:
		return fmt.Errorf("%w: max delay %v is below min delay %v", ErrInvalidPolicy, p.MaxDelay, p.MinDelay)
	}

	return nil
}

// Attempts returns the number of attempts the policy permits.
func (p Policy) Attempts() int {
	if p.Retries < 1 {
		return 1
	}

	return p.Retries
}

// Delay returns the wait after attempt n (1-indexed) fails.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}

	b := p.exponential()
	b.Reset()

	var d time.Duration
	for range n {
		d = b.NextBackOff()
	}

	return d
}

// Schedule returns every delay the policy will wait, in order.
func (p Policy) Schedule() []time.Duration {
	delays := make([]time.Duration, 0, p.Attempts()-1)
	for n := 1; n < p.Attempts(); n++ {
		delays = append(delays, p.Delay(n))
	}

	return delays
}

// exponential builds a deterministic backoff: no jitter and no elapsed
// time cap, the attempt bound is applied separately.
func (p Policy) exponential() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.MinDelay,
		RandomizationFactor: 0,
		Multiplier:          p.Factor,
		MaxInterval:         p.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
}
