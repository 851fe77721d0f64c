package expiration

import "time"

// DefaultThreshold is how long documents stay fresh after they are fetched.
const DefaultThreshold = 60 * time.Second

/*
FixedAge treats data as stale once it is older than Threshold.

The threshold is fixed when the cache is built. There is no per-call
override: every key ages at the same rate.
*/
type FixedAge struct {
	Threshold time.Duration
}

// NewFixedAge returns a FixedAge strategy. A non-positive threshold falls
// back to DefaultThreshold.
func NewFixedAge(threshold time.Duration) *FixedAge {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &FixedAge{Threshold: threshold}
}

// IsStale is strictly greater-than: data exactly Threshold old is still fresh.
func (f *FixedAge) IsStale(written, now time.Time) bool {
	return now.Sub(written) > f.Threshold
}
