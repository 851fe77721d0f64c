package api

import (
	"context"

	"github.com/openhouse/portalcache/types"
)

/*
Lookup is the result of a cache read.

Found is false on a miss, in which case Data is the zero value and Stale is
false. A found entry is Stale once it is older than the cache's freshness
threshold; stale data is still returned.
*/
type Lookup[T any] struct {
	Data  T
	Found bool
	Stale bool
}

/*
Cache defines the PUBLIC API of the keyed stale-while-revalidate cache.
All of the details like sharding, copy-on-write storage and locking are
hidden behind this interface.

Every operation addresses data by (resource, token). The cache never returns
errors: fetch failures live in the futures it tracks.
*/
type Cache[T any] interface {

	/*
		Get reads the entry for (resource, token).

		BEHAVIOR:
		-------------------
		1. No entry: Lookup{Found: false, Stale: false}
		2. Entry present: Lookup{Data, Found: true, Stale: age > threshold}

		Get never starts a fetch. Revalidating stale data is the caller's job
		(see Reader).
	*/
	Get(resource, token string) Lookup[T]

	/*
		Set stores data for (resource, token), stamped with the current time.
		Any previous entry is replaced, never merged.
	*/
	Set(resource, token string, data T)

	/*
		Invalidate removes every entry and in-flight fetch for resource,
		whatever the token.

		BEHAVIOR:
		---------
		- Each removed in-flight fetch is cancelled before it is removed
		- Other resources are untouched
		- Invalidating an unknown resource is a no-op
	*/
	Invalidate(resource string)

	/*
		ClearAll cancels every in-flight fetch and empties the cache.

		WHEN TO CALL:
		-------------
		- Sign-out
		- Switching to another tenant or unit
		- Tests cleanup
	*/
	ClearAll()

	/*
		GetInFlight returns the future of the fetch running for exactly
		(resource, token), or nil. It never starts anything.
	*/
	GetInFlight(resource, token string) *types.Future[T]

	/*
		RegisterInFlight records future as THE running fetch for
		(resource, token).

		BEHAVIOR:
		---------
		- A fetch already registered for the key is cancelled first
		  (newest caller wins; the old future is abandoned, not failed)
		- This holds even when the existing registration is the same future
		- When future settles, the registration is removed only if it still
		  holds this exact future
		- A future that never settles is forgotten once its registration
		  is replaced, invalidated or cleared
	*/
	RegisterInFlight(resource, token string, future *types.Future[T], cancel context.CancelFunc)
}
