package cache

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/openhouse/portalcache/api"
	e "github.com/openhouse/portalcache/errors"
	"github.com/openhouse/portalcache/refresh"
	"github.com/openhouse/portalcache/types"
)

// DefaultFetchTimeout bounds a single fetch, retries included.
const DefaultFetchTimeout = 30 * time.Second

/*
Reader is the read path built on top of KeyedCache: stale-while-revalidate
with request coalescing.

  - Fresh data is returned as is.
  - Stale data is returned at once, and a background revalidation is started
    unless one is already running for the key.
  - On a miss the caller waits for a fetch, joining the running one if there
    is one.
  - An unauthorized failure invalidates the resource before it is returned,
    so a retry with a renewed token cannot join a poisoned fetch.
*/
type Reader[T any] struct {
	cache   *KeyedCache[T]
	fetcher types.Fetcher[T]
	timeout time.Duration
}

// NewReader builds a Reader. A non-positive timeout means DefaultFetchTimeout.
func NewReader[T any](c *KeyedCache[T], fetcher types.Fetcher[T], timeout time.Duration) *Reader[T] {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Reader[T]{
		cache:   c,
		fetcher: fetcher,
		timeout: timeout,
	}
}

// Cache returns the cache the reader reads through.
func (r *Reader[T]) Cache() *KeyedCache[T] {
	return r.cache
}

/*
Read returns the data for (resource, token).

Stale results come back with Lookup.Stale set and a nil error, even if the
revalidation that was started later fails. A miss that cannot be filled
returns the fetch error; every caller that joined the same fetch gets the
same error.
*/
func (r *Reader[T]) Read(ctx context.Context, resource, token string) (api.Lookup[T], error) {
	m := r.cache.engine.Metrics

	lk := r.cache.Get(resource, token)
	if lk.Found {
		if !lk.Stale {
			m.Hit()
			return lk, nil
		}

		m.Stale()
		r.start(ctx, resource, token, true)
		return lk, nil
	}

	m.Miss()

	f, started := r.start(ctx, resource, token, false)
	if !started {
		m.Coalesced()
	}

	data, err := f.Wait(ctx)
	if err != nil {
		return api.Lookup[T]{}, err
	}
	return api.Lookup[T]{Data: data, Found: true}, nil
}

/*
start joins the fetch running for the key, or registers and launches a new
one. The fetch is detached from ctx: one impatient caller must not abort the
request everybody else is waiting on.
*/
func (r *Reader[T]) start(ctx context.Context, resource, token string, background bool) (*types.Future[T], bool) {
	future := types.NewFuture[T]()
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)

	current, started := r.cache.joinOrRegister(resource, token, future, cancel)
	if !started {
		cancel()
		return current, false
	}

	go r.run(fctx, cancel, future, resource, token, background)
	return future, true
}

// run performs one registered fetch and settles its future.
func (r *Reader[T]) run(
	ctx context.Context,
	cancel context.CancelFunc,
	future *types.Future[T],
	resource, token string,
	background bool,
) {
	defer cancel()

	m := r.cache.engine.Metrics

	var policy refresh.Policy = refresh.Once{}
	if background {
		policy = r.cache.engine.Refresh
		m.Refresh()
	}

	var data T
	err := policy.Do(ctx, func(ctx context.Context) error {
		d, err := r.fetcher.Fetch(ctx, resource, token)
		if err != nil {
			if e.IsUnauthorized(err) {
				return refresh.Permanent(err)
			}
			return err
		}
		data = d
		return nil
	})

	if err != nil {
		if e.IsUnauthorized(err) {
			r.cache.Invalidate(resource)
		}

		if background {
			m.RefreshFailed()
			if !errors.Is(err, context.Canceled) {
				glog.Warningf("revalidating %s failed, keeping stale data: %v", resource, err)
			}
		}

		var zero T
		future.Resolve(zero, err)
		return
	}

	if !r.cache.commit(resource, token, future, data) {
		if glog.V(2) {
			glog.Infof("fetch for %s finished after being superseded, result dropped", resource)
		}
	}
	future.Resolve(data, nil)
}
