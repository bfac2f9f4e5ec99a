package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Batch fetches several artifacts concurrently. Each item still goes
// through the Fetcher's deduplication, so two items for the same URL
// share one pipeline.
type Batch struct {
	f        *Fetcher
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	errs     []error
}

// NewBatch returns a Batch running at most maxConcurrent fetches at a
// time. If maxConcurrent <= 0, concurrency is unlimited.
func (f *Fetcher) NewBatch(maxConcurrent int) *Batch {
	b := &Batch{f: f}
	if maxConcurrent > 0 {
		b.sem = make(chan struct{}, maxConcurrent)
	}
	return b
}

// Pending is an in-flight or completed batch item.
type Pending struct {
	req    Request
	done   chan struct{}
	res    Result
	err    error
	cancel context.CancelFunc
}

// Go starts fetching req and returns immediately.
func (b *Batch) Go(ctx context.Context, req Request) *Pending {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pending{
		req:    req,
		done:   make(chan struct{}),
		cancel: cancel,
	}

	b.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			close(p.done)
			b.wg.Done()
		}()

		if b.sem != nil {
			select {
			case b.sem <- struct{}{}:
				defer func() {
					<-b.sem
				}()
			case <-ctx.Done():
				p.err = ctx.Err()
				b.recordErr(p.err)
				return
			}
		}

		if b.shutdown.Load() {
			p.err = ErrBatchShutdown
			b.recordErr(p.err)
			return
		}

		p.res, p.err = b.f.Fetch(ctx, req)
		if p.err != nil {
			b.recordErr(p.err)
		}
	}()

	return p
}

// Wait blocks until every item completes and returns their errors joined.
func (b *Batch) Wait() error {
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	return errors.Join(b.errs...)
}

// Shutdown prevents items that have not started yet from running.
func (b *Batch) Shutdown() {
	b.shutdown.Store(true)
}

func (b *Batch) recordErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, err)
}

// Request returns the request this item was started with.
func (p *Pending) Request() Request { return p.req }

// Done returns a channel that is closed when the item completes.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result blocks until the item completes.
func (p *Pending) Result() (Result, error) {
	<-p.done
	return p.res, p.err
}

// Cancel stops waiting for this item. The underlying pipeline keeps
// running while other callers wait on it.
func (p *Pending) Cancel() {
	p.cancel()
}
