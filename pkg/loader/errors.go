package loader

import "errors"

var (
	// ErrAlreadyIterated is yielded when Objects is called a second time.
	ErrAlreadyIterated = errors.New("objects can only be iterated once")

	// ErrNoRoot is returned when the root object cannot be found or decoded.
	ErrNoRoot = errors.New("no root object found")

	// ErrDisposed is the cause of a traversal interrupted by Dispose.
	ErrDisposed = errors.New("loader is disposed")

	// ErrObjectNotFound is returned by GetObject for ids no source can resolve.
	ErrObjectNotFound = errors.New("object not found")
)
