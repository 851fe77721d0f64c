package types

import "context"

// Fetcher is the contract between the cache reader and the backend.
type Fetcher[T any] interface {

	/*
		Fetch is called when the reader needs data it does not have, or when
		the data it has is stale.
		1. Reader checks the cache → miss or stale
		2. Reader calls Fetch(resource, token)
		3. Fetcher calls the backend (HTTP, DB, ...)
		4. Reader stores the result in the cache
		5. Every caller waiting on the key gets the same result

		Fetch must return when ctx is cancelled. That is how a superseded or
		invalidated fetch is stopped.
	*/
	Fetch(ctx context.Context, resource, token string) (T, error)
}

// FetchFunc adapts a plain function to the Fetcher interface.
type FetchFunc[T any] func(ctx context.Context, resource, token string) (T, error)

// Fetch calls f.
func (f FetchFunc[T]) Fetch(ctx context.Context, resource, token string) (T, error) {
	return f(ctx, resource, token)
}
