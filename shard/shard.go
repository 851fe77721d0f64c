package shard

import (
	"sync"

	"github.com/openhouse/portalcache/types"
)

/*
A Shard is a small, independent piece of the cache.

Keys are routed to shards by their resource, so all token variants of one
resource share a shard. Invalidating a resource therefore only ever locks
one shard, and it happens atomically.
*/
type Shard[T any] struct {

	// Store holds the cached entries. Reads are lock-free snapshots.
	Store ShardStore[T]

	// InFlight holds at most one running fetch per key.
	// Only touch it while holding Mu.
	InFlight map[types.Key]*types.InFlight[T]

	// Mu serialises every write to Store and every access to InFlight.
	Mu sync.Mutex
}

func NewShard[T any]() *Shard[T] {
	return &Shard[T]{
		Store:    NewCOWStore[T](),
		InFlight: make(map[types.Key]*types.InFlight[T]),
	}
}
