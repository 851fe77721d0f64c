package types

import (
	"context"
	"sync"
)

/*
Future is the result of a fetch that may not have finished yet.

Many goroutines can wait on the same Future. It settles exactly once:
the first Resolve wins and later calls are ignored, so a superseded fetch
that finishes late cannot change what earlier waiters already saw.
*/
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// NewFuture returns an unsettled Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve settles the future. Only the first call has any effect.
func (f *Future[T]) Resolve(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

/*
Wait blocks until the future settles or ctx ends.

When ctx ends first, only this waiter gives up. The fetch keeps running for
everybody else waiting on it.
*/
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Settled reports whether Resolve has been called.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
