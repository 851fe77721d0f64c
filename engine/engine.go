package engine

import (
	"time"

	"github.com/openhouse/portalcache/expiration"
	"github.com/openhouse/portalcache/refresh"
	"github.com/openhouse/portalcache/types"
)

/*
CacheEngine is the "brain" of the cache system.
It is responsible for the "behavior" of the cache, NOT storage.

It decides:
- When data is stale
- What time it is (so tests can move the clock)
- How a background revalidation is retried
- How metrics are recorded

It does NOT:
- Store data
- Handle sharding
- Handle locking
- Track in-flight fetches
*/
type CacheEngine struct {

	// Expiration decides when an entry is “too old”.
	// The freshness threshold is fixed here, at construction.
	Expiration expiration.Strategy

	// Refresh is the retry policy for background revalidations.
	// Foreground fetches never retry.
	Refresh refresh.Policy

	// Metrics is how we keep track of what the cache is doing.
	Metrics types.Metrics

	// Now is the clock. Tests swap it to step over the freshness threshold
	// without sleeping.
	Now func() time.Time
}

/*
NewCacheEngine creates a CacheEngine.

A nil strategy means the default 60 second threshold, a nil policy means
no retries, and nil metrics means NoopMetrics.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	policy refresh.Policy,
	metrics types.Metrics,
) *CacheEngine {

	if exp == nil {
		exp = expiration.NewFixedAge(expiration.DefaultThreshold)
	}

	if policy == nil {
		policy = refresh.Once{}
	}

	// Ensure metrics is always non-nil
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}

	return &CacheEngine{
		Expiration: exp,
		Refresh:    policy,
		Metrics:    metrics,
		Now:        time.Now,
	}
}

// IsStale compares the entry's timestamp with the engine clock.
func (e *CacheEngine) IsStale(written time.Time) bool {
	return e.Expiration.IsStale(written, e.Now())
}
