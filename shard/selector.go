package shard

import "github.com/cespare/xxhash/v2"

/*
Selector decides which shard handles a resource.

Selection MUST depend only on the resource, never on the token: resource
wide invalidation relies on every token variant living in the same shard.
*/
type Selector interface {
	Index(resource string, shards int) int
}

// HashSelector spreads resources across shards by their xxhash.
type HashSelector struct{}

// Index returns the shard index for resource.
func (HashSelector) Index(resource string, shards int) int {
	if shards <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(resource) % uint64(shards))
}
