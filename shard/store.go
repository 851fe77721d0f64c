package shard

import (
	"sync/atomic"

	"github.com/openhouse/portalcache/types"
)

/*
This file defines how cache entries are stored inside a shard.
- Reads should be very fast
- Reads should NOT require locks
- Writes are less frequent and can afford extra work

To achieve this, we use a technique called: "Copy-On-Write" (COW)
*/

// ShardStore is the interface used by a shard to store and retrieve cache entries.
type ShardStore[T any] interface {

	// Get retrieves an entry by key.
	Get(types.Key) (*types.CacheEntry[T], bool)

	// Put inserts or replaces an entry.
	Put(types.Key, *types.CacheEntry[T])

	// DeleteResource removes every entry whose Resource matches and
	// returns how many were removed.
	DeleteResource(string) int

	// Clear removes every entry and returns how many were removed.
	Clear() int

	// Size returns how many entries are stored.
	Size() int64
}

/*
cowStore is a Copy-On-Write implementation of ShardStore.

- Readers always see an immutable snapshot
- Writers create a NEW copy of the map
- The new map replaces the old one atomically

Writers must be serialised by the caller (the shard mutex).
*/
type cowStore[T any] struct {

	// data holds the current map[types.Key]*types.CacheEntry[T] snapshot.
	data atomic.Pointer[map[types.Key]*types.CacheEntry[T]]

	// size tracks the number of entries so Size does not have to count.
	size atomic.Int64
}

func NewCOWStore[T any]() *cowStore[T] {
	s := &cowStore[T]{}
	m := make(map[types.Key]*types.CacheEntry[T])
	s.data.Store(&m)
	return s
}

func (s *cowStore[T]) snapshot() map[types.Key]*types.CacheEntry[T] {
	return *s.data.Load()
}

// Get retrieves an entry from the current snapshot.
func (s *cowStore[T]) Get(key types.Key) (*types.CacheEntry[T], bool) {
	ent, ok := s.snapshot()[key]
	return ent, ok
}

/*
Put inserts or replaces an entry.

1. Load the current map
2. Create a NEW map with every existing entry
3. Add the new entry
4. Atomically replace the old map
*/
func (s *cowStore[T]) Put(key types.Key, ent *types.CacheEntry[T]) {
	old := s.snapshot()

	n := make(map[types.Key]*types.CacheEntry[T], len(old)+1)
	for k, v := range old {
		n[k] = v
	}
	n[key] = ent

	s.swap(n)
}

// DeleteResource drops every token variant of resource in one swap.
func (s *cowStore[T]) DeleteResource(resource string) int {
	old := s.snapshot()

	removed := 0
	n := make(map[types.Key]*types.CacheEntry[T], len(old))
	for k, v := range old {
		if k.Resource == resource {
			removed++
			continue
		}
		n[k] = v
	}
	if removed == 0 {
		// nothing to do, keep the old snapshot
		return 0
	}

	s.swap(n)
	return removed
}

// Clear swaps in an empty map.
func (s *cowStore[T]) Clear() int {
	removed := len(s.snapshot())
	if removed == 0 {
		return 0
	}
	s.swap(make(map[types.Key]*types.CacheEntry[T]))
	return removed
}

// Size returns how many entries are in the store.
func (s *cowStore[T]) Size() int64 {
	return s.size.Load()
}

func (s *cowStore[T]) swap(n map[types.Key]*types.CacheEntry[T]) {
	s.data.Store(&n)
	s.size.Store(int64(len(n)))
}
