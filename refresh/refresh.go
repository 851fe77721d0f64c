// This file defines how a background revalidation is retried.
// The goal of refresh is: "Keep data fresh without slowing down reads"
// A reader that finds stale data returns it at once and revalidates in the
// background. If that revalidation fails, the stale data stays in place, so
// retrying is cheap for the reader and only costs backend calls.

package refresh

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
)

/*
Policy is the interface for retry behavior.

Do runs attempt until it succeeds, the policy gives up, or ctx ends, and
returns the last error. The cache itself does NOT care what the policy does.
*/
type Policy interface {
	Do(ctx context.Context, attempt func(ctx context.Context) error) error
}

// Once runs the attempt a single time. Foreground fetches use it: a caller
// that has nothing to show should see the failure at once.
type Once struct{}

// Do runs attempt exactly once.
func (Once) Do(ctx context.Context, attempt func(ctx context.Context) error) error {
	return unwrapPermanent(attempt(ctx))
}

// Permanent wraps err so that policies stop retrying. errors.Is and
// errors.As still see the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var p *backoff.PermanentError
	if errors.As(err, &p) {
		return err
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err, or anything it wraps, was marked with
// Permanent. Context cancellation and deadline errors are always permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	if errors.As(err, &p) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// unwrapPermanent strips the Permanent marker so callers get the original error.
func unwrapPermanent(err error) error {
	var p *backoff.PermanentError
	if errors.As(err, &p) {
		return p.Err
	}
	return err
}
