package types

import (
	"context"
	"sync"
	"time"
)

// Key addresses one cached resource for one access token.
// Two keys are equal only when both parts match exactly. An empty Token is a
// valid key of its own.
type Key struct {
	Resource string
	Token    string
}

// CacheEntry is never mutated after it is stored. Every write replaces it.
type CacheEntry[T any] struct {
	Data      T
	Timestamp time.Time
}

/*
InFlight is the registration of a fetch that is currently running for a key.

Future is shared by every caller waiting on the same key.
Cancel aborts the underlying request. It must be safe to call more than once
and after the fetch has already settled, which context.CancelFunc is.

Removed is closed once the registration is taken out of the cache by a
newer registration, Invalidate or ClearAll. Whoever watches the future for
cleanup stops watching then, so a future that never settles holds nothing.
*/
type InFlight[T any] struct {
	Future *Future[T]
	Cancel context.CancelFunc

	removed chan struct{}
	once    sync.Once
}

// NewInFlight registers future. A nil cancel becomes a no-op.
func NewInFlight[T any](future *Future[T], cancel context.CancelFunc) *InFlight[T] {
	if cancel == nil {
		cancel = func() {}
	}
	return &InFlight[T]{Future: future, Cancel: cancel, removed: make(chan struct{})}
}

// Remove marks the registration as taken out. Only the first call counts.
func (i *InFlight[T]) Remove() {
	i.once.Do(func() { close(i.removed) })
}

// Removed is closed by Remove.
func (i *InFlight[T]) Removed() <-chan struct{} {
	return i.removed
}
