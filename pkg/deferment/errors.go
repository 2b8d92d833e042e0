package deferment

import "errors"

var (
	// ErrDisposed is returned by Defer after Dispose, and settles every
	// future still pending at Dispose.
	ErrDisposed = errors.New("deferment manager is disposed")

	// ErrExpired settles a future whose entry was not accessed within the TTL.
	ErrExpired = errors.New("deferred object expired")

	// ErrEvicted settles a future whose entry was dropped to respect MaxEntries.
	ErrEvicted = errors.New("deferred object evicted")

	// ErrNotCached is returned by MemoryOnly for ids it does not hold.
	ErrNotCached = errors.New("not found in cache")

	// ErrDisabled is returned by Disabled for every id.
	ErrDisabled = errors.New("deferment is disabled")
)
