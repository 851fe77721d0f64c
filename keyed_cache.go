package cache

import (
	"context"

	"github.com/openhouse/portalcache/api"
	"github.com/openhouse/portalcache/engine"
	"github.com/openhouse/portalcache/shard"
	"github.com/openhouse/portalcache/types"
)

// DefaultShards is used when NewKeyedCache is given a non-positive count.
const DefaultShards = 16

var _ api.Cache[int] = (*KeyedCache[int])(nil)

/*
KeyedCache is the main cache implementation.
This struct is the orchestrator that connects:
- shards (entries + in-flight fetches)
- the engine (staleness, clock, metrics)
- the selector (resource → shard)

Build one per payload type when the application starts and pass it to
whatever issues fetches. It has no background goroutines of its own and
needs no teardown.
*/
type KeyedCache[T any] struct {
	// shards are the actual storage units. Each shard is an independent mini-cache.
	shards []*shard.Shard[T]

	// engine contains the "rules" of the cache: threshold, clock, retry policy, metrics.
	engine *engine.CacheEngine

	// selector decides which shard a resource goes to.
	selector shard.Selector
}

// NewKeyedCache builds a cache. A nil engine gets the defaults of
// engine.NewCacheEngine.
func NewKeyedCache[T any](shards int, eng *engine.CacheEngine) *KeyedCache[T] {
	if shards <= 0 {
		shards = DefaultShards
	}
	if eng == nil {
		eng = engine.NewCacheEngine(nil, nil, nil)
	}

	s := make([]*shard.Shard[T], shards)
	for i := range s {
		s[i] = shard.NewShard[T]()
	}

	return &KeyedCache[T]{
		shards:   s,
		engine:   eng,
		selector: shard.HashSelector{},
	}
}

// Engine returns the policy layer the cache was built with.
func (c *KeyedCache[T]) Engine() *engine.CacheEngine {
	return c.engine
}

func (c *KeyedCache[T]) shardFor(resource string) *shard.Shard[T] {
	return c.shards[c.selector.Index(resource, len(c.shards))]
}

/*
Get reads a value from the cache. It takes no lock.
*/
func (c *KeyedCache[T]) Get(resource, token string) api.Lookup[T] {
	sh := c.shardFor(resource)

	ent, ok := sh.Store.Get(types.Key{Resource: resource, Token: token})
	if !ok {
		return api.Lookup[T]{}
	}

	return api.Lookup[T]{
		Data:  ent.Data,
		Found: true,
		Stale: c.engine.IsStale(ent.Timestamp),
	}
}

/*
Set stores a value, replacing any previous entry for the key.
*/
func (c *KeyedCache[T]) Set(resource, token string, data T) {
	sh := c.shardFor(resource)

	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	c.put(sh, types.Key{Resource: resource, Token: token}, data)
}

// put must be called with sh.Mu held.
func (c *KeyedCache[T]) put(sh *shard.Shard[T], key types.Key, data T) {
	sh.Store.Put(key, &types.CacheEntry[T]{
		Data:      data,
		Timestamp: c.engine.Now(),
	})
}

/*
Invalidate removes every entry and in-flight fetch for resource, whatever
the token. In-flight fetches are cancelled before they are removed.
*/
func (c *KeyedCache[T]) Invalidate(resource string) {
	sh := c.shardFor(resource)

	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	for key, fl := range sh.InFlight {
		if key.Resource != resource {
			continue
		}
		fl.Cancel()
		fl.Remove()
		delete(sh.InFlight, key)
		c.engine.Metrics.Invalidated()
	}

	for n := sh.Store.DeleteResource(resource); n > 0; n-- {
		c.engine.Metrics.Invalidated()
	}
}

/*
ClearAll cancels every in-flight fetch and then empties the cache.
Shards are cleared one after another.
*/
func (c *KeyedCache[T]) ClearAll() {
	for _, sh := range c.shards {
		sh.Mu.Lock()

		for _, fl := range sh.InFlight {
			fl.Cancel()
			fl.Remove()
			c.engine.Metrics.Invalidated()
		}
		clear(sh.InFlight)

		for n := sh.Store.Clear(); n > 0; n-- {
			c.engine.Metrics.Invalidated()
		}

		sh.Mu.Unlock()
	}
}

/*
GetInFlight returns the running fetch for the exact key, or nil.
*/
func (c *KeyedCache[T]) GetInFlight(resource, token string) *types.Future[T] {
	sh := c.shardFor(resource)

	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	if fl, ok := sh.InFlight[types.Key{Resource: resource, Token: token}]; ok {
		return fl.Future
	}
	return nil
}

/*
RegisterInFlight makes future the running fetch for the key.

An older registration is cancelled before the new one is stored, even when
it holds the same future. When future settles its registration is removed,
unless a newer one has taken its place by then. A future that never settles
is simply forgotten once its registration is replaced or removed.
*/
func (c *KeyedCache[T]) RegisterInFlight(
	resource, token string,
	future *types.Future[T],
	cancel context.CancelFunc,
) {
	key := types.Key{Resource: resource, Token: token}
	sh := c.shardFor(resource)
	fl := types.NewInFlight(future, cancel)

	sh.Mu.Lock()
	if old, ok := sh.InFlight[key]; ok {
		old.Cancel()
		old.Remove()
		if old.Future != future {
			c.engine.Metrics.Superseded()
		}
	}
	sh.InFlight[key] = fl
	sh.Mu.Unlock()

	go c.release(sh, key, fl)
}

/*
joinOrRegister is the atomic form of "GetInFlight, and if nothing is
running, RegisterInFlight" used by Reader. Two goroutines missing on the
same key at the same moment must end up sharing one fetch, not cancelling
each other.

It returns the future to wait on and whether the caller's future was the
one registered (and must therefore be started).
*/
func (c *KeyedCache[T]) joinOrRegister(
	resource, token string,
	future *types.Future[T],
	cancel context.CancelFunc,
) (*types.Future[T], bool) {
	key := types.Key{Resource: resource, Token: token}
	sh := c.shardFor(resource)

	sh.Mu.Lock()
	if fl, ok := sh.InFlight[key]; ok {
		sh.Mu.Unlock()
		return fl.Future, false
	}
	fl := types.NewInFlight(future, cancel)
	sh.InFlight[key] = fl
	sh.Mu.Unlock()

	go c.release(sh, key, fl)
	return future, true
}

/*
commit stores data only if future is still the registered fetch for the
key. A fetch that was superseded or invalidated finishes quietly without
touching the cache.
*/
func (c *KeyedCache[T]) commit(resource, token string, future *types.Future[T], data T) bool {
	key := types.Key{Resource: resource, Token: token}
	sh := c.shardFor(resource)

	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	if fl, ok := sh.InFlight[key]; !ok || fl.Future != future {
		return false
	}
	c.put(sh, key, data)
	return true
}

// release waits for the registered future to settle and then drops the
// registration if, and only if, the key still points at it. It gives up as
// soon as the registration is removed some other way.
func (c *KeyedCache[T]) release(sh *shard.Shard[T], key types.Key, fl *types.InFlight[T]) {
	select {
	case <-fl.Future.Done():
	case <-fl.Removed():
		return
	}

	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	if cur, ok := sh.InFlight[key]; ok && cur == fl {
		delete(sh.InFlight, key)
		fl.Remove()
	}
}
