package types

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the cache lifecycle. The cache will call these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when a read finds fresh data.
	Hit()

	// Miss is called when a read finds nothing and has to wait for a fetch.
	Miss()

	// Stale is called when a read finds data older than the freshness threshold.
	Stale()

	// Coalesced is called when a caller joins a fetch that is already running
	// instead of starting its own.
	Coalesced()

	// Superseded is called when a new in-flight registration replaces (and cancels) an older one.
	Superseded()

	// Invalidated is called once per entry or in-flight registration removed by Invalidate or ClearAll.
	Invalidated()

	// Refresh is called when a background revalidation starts.
	Refresh()

	// RefreshFailed is called when a background revalidation gives up.
	RefreshFailed()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

Callers that do not care about metrics still get a working cache without
nil checks around every event.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()           {}
func (NoopMetrics) Miss()          {}
func (NoopMetrics) Stale()         {}
func (NoopMetrics) Coalesced()     {}
func (NoopMetrics) Superseded()    {}
func (NoopMetrics) Invalidated()   {}
func (NoopMetrics) Refresh()       {}
func (NoopMetrics) RefreshFailed() {}
