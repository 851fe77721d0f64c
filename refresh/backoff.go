package refresh

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
)

// Defaults for background revalidation.
const (
	DefaultAttempts = 3
	DefaultBase     = 500 * time.Millisecond
	DefaultMax      = 8 * time.Second

	// Jitter is the randomisation factor applied to every delay: a delay d
	// is drawn from [d*(1-Jitter), d*(1+Jitter)].
	Jitter = 0.5
)

/*
Backoff retries an attempt with exponential, randomised delays.

The delay before retry n (starting at 1) is about Base * 2^(n-1), never more
than Max before jitter is applied. Errors marked Permanent and context errors
end the loop immediately.
*/
type Backoff struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	Base time.Duration
	Max  time.Duration
}

// NewBackoff returns a Backoff, replacing non-positive values with defaults.
func NewBackoff(attempts int, base, max time.Duration) *Backoff {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if base <= 0 {
		base = DefaultBase
	}
	if max <= 0 {
		max = DefaultMax
	}
	if max < base {
		max = base
	}
	return &Backoff{Attempts: attempts, Base: base, Max: max}
}

// schedule builds the delay sequence for one Do call.
func (b *Backoff) schedule(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.Base
	exp.MaxInterval = b.Max
	exp.Multiplier = 2
	exp.RandomizationFactor = Jitter
	// Attempts and ctx bound the loop, not elapsed time.
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(b.Attempts-1)), ctx)
}

// Do implements Policy.
func (b *Backoff) Do(ctx context.Context, attempt func(ctx context.Context) error) error {
	op := func() error {
		err := attempt(ctx)
		if err != nil && IsPermanent(err) {
			return Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if glog.V(2) {
			glog.Infof("attempt failed, retrying in %v: %v", wait, err)
		}
	}

	return unwrapPermanent(backoff.RetryNotify(op, b.schedule(ctx), notify))
}
