// This file defines when cached data stops being fresh.

package expiration

import "time"

/*
Strategy is the interface that all staleness rules must follow.

Stale data is NOT removed. It is still returned to readers, who decide
whether to revalidate it. A strategy only answers "is this too old?".
*/
type Strategy interface {

	// IsStale reports whether data written at written is stale at now.
	IsStale(written, now time.Time) bool
}
