package outbox

import (
	"context"

	"github.com/golang/glog"
)

/*
Direct delivers every item as it is sent, so Send returns only once the
sink has it. A slow sink makes Send slow.
*/
type Direct[T any] struct {
	sink Sink[T]
}

func NewDirect[T any](sink Sink[T]) *Direct[T] {
	return &Direct[T]{sink: sink}
}

func (d *Direct[T]) Send(ctx context.Context, item T) {
	if err := d.sink.Deliver(ctx, item); err != nil {
		glog.Errorf("delivering %T: %v", item, err)
	}
}

// Close has nothing to flush.
func (d *Direct[T]) Close() {}
