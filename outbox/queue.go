package outbox

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// DefaultBuffer is the queue length used by NewQueue for a non-positive size.
const DefaultBuffer = 64

type queued[T any] struct {
	ctx  context.Context
	item T
}

/*
Queue delivers items asynchronously through one background worker.

Send never blocks: when the buffer is full the item is dropped and counted.
Items are delivered in the order they were accepted.
*/
type Queue[T any] struct {
	sink Sink[T]

	// ch holds the accepted items. Buffering absorbs bursts.
	ch chan queued[T]

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64

	// wg waits for the worker during shutdown.
	wg sync.WaitGroup
}

func NewQueue[T any](sink Sink[T], buffer int) *Queue[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	q := &Queue[T]{
		sink: sink,
		ch:   make(chan queued[T], buffer),
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// Send enqueues item. The item outlives ctx's cancellation but keeps its
// values.
func (q *Queue[T]) Send(ctx context.Context, item T) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		return
	}

	select {
	case q.ch <- queued[T]{ctx: context.WithoutCancel(ctx), item: item}:
	default:
		q.dropped.Add(1)
		glog.Warningf("outbox full, dropped %T", item)
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()

	for req := range q.ch {
		if err := q.sink.Deliver(req.ctx, req.item); err != nil {
			q.failed.Add(1)
			glog.Errorf("delivering %T: %v", req.item, err)
		}
	}
}

// Dropped is the number of items refused because the queue was full or
// closed.
func (q *Queue[T]) Dropped() int64 {
	return q.dropped.Load()
}

// Failed is the number of items the sink returned an error for.
func (q *Queue[T]) Failed() int64 {
	return q.failed.Load()
}

/*
Close shuts the queue down gracefully.
------------------
1. Stop accepting items
2. Wait for the worker to deliver what is queued

Calling Close more than once is safe.
*/
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	q.wg.Wait()
}
