package outbox

import "context"

/*
An Outbox hands items to a Sink: a database, an API, anything that must
hear about an event but that the caller should not have to wait on.

Different callers have different needs:
- Some want to know the item arrived (Direct)
- Some want to stay fast and accept losing items under pressure (Queue)
*/
type Outbox[T any] interface {

	/*
		Send delivers or enqueues item. It never reports failure; failures
		are logged by the outbox.
	*/
	Send(ctx context.Context, item T)

	/*
		Close is called at shutdown. Items already accepted are delivered
		before it returns.
	*/
	Close()
}

// Sink receives the items.
type Sink[T any] interface {
	Deliver(ctx context.Context, item T) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc[T any] func(ctx context.Context, item T) error

func (f SinkFunc[T]) Deliver(ctx context.Context, item T) error {
	return f(ctx, item)
}
