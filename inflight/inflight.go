// Package inflight collapses concurrent calls for the same key into a
// single execution whose result is delivered to every caller.
package inflight

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Outcome describes how a caller was served.
type Outcome struct {
	// Owner is true for the caller whose call started the execution.
	Owner bool
	// Shared is true when the result went to more than one caller.
	Shared bool
}

// Group deduplicates executions per key. At most one execution per key
// runs at a time; the key is released under the same lock that hands the
// result to the waiters, so a later call starts a fresh execution.
//
// The zero value is ready to use.
type Group[T any] struct {
	sf     singleflight.Group
	mu     sync.Mutex
	active map[string]int
	Logger *slog.Logger
}

// Do runs fn for key unless an execution for key is already running, in
// which case it waits for that execution's result instead.
//
// fn receives a context that carries ctx's values but not its
// cancellation: the execution is shared, so no single caller may abort it.
// A caller whose ctx ends stops waiting and gets ctx.Err(); the execution
// and the other waiters are unaffected.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, Outcome, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Outcome{}, err
	}

	detached := context.WithoutCancel(ctx)

	var owner bool
	ch := g.sf.DoChan(key, func() (any, error) {
		owner = true
		return fn(detached)
	})

	logger := g.logger()
	if g.join(key) > 1 {
		logger.Debug("already in flight; waiting", "key", key)
	} else {
		logger.Debug("not in flight; adding", "key", key)
	}
	defer g.leave(key)

	select {
	case <-ctx.Done():
		return zero, Outcome{}, ctx.Err()
	case res := <-ch:
		out := Outcome{Owner: owner, Shared: res.Shared}

		v, ok := res.Val.(T)
		if !ok && res.Val != nil {
			return zero, out, fmt.Errorf("inflight: unexpected result type %T", res.Val)
		}

		return v, out, res.Err
	}
}

// InFlight reports whether an execution for key is currently running or
// being waited on.
func (g *Group[T]) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.active[key] > 0
}

// Callers returns the number of callers currently waiting on key,
// including the one that started the execution.
func (g *Group[T]) Callers(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.active[key]
}

func (g *Group[T]) join(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active == nil {
		g.active = make(map[string]int)
	}
	g.active[key]++

	return g.active[key]
}

func (g *Group[T]) leave(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active[key]--
	if g.active[key] <= 0 {
		delete(g.active, key)
	}
}

func (g *Group[T]) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}

	return slog.Default()
}
