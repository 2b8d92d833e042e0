// Package downloader fetches objects that are missing from the local cache.
package downloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/objectloader/pkg/objects"
)

var (
	// ErrNoAccess is returned when the server rejects the credentials.
	ErrNoAccess = errors.New("you do not have access")

	// ErrNotInitialized is returned by Add before Initialize.
	ErrNotInitialized = errors.New("download pool is not initialized")

	// ErrNotFound is returned when a source does not hold a requested object.
	ErrNotFound = errors.New("object not found")

	// ErrMissingItems is returned when a response omits requested ids.
	ErrMissingItems = errors.New("items requested were not downloaded")
)

// Downloader fetches objects by id and delivers them to a sink.
type Downloader interface {
	// Initialize prepares the download pool. total is the expected number
	// of objects and tunes batch sizes. Failures of background downloads go
	// to onError as a *BatchError; later downloads continue.
	Initialize(results objects.ItemSink, total int, onError func(error))

	// Add queues an id for download.
	Add(id string)

	// DownloadSingle fetches the root object. A nil item with a nil error
	// means the root exists but cannot be decoded.
	DownloadSingle(ctx context.Context) (*objects.Item, error)

	// Dispose stops background downloads. Safe to call more than once.
	Dispose()
}

// BatchError reports a download that failed. IDs lists the objects left
// without a result.
type BatchError struct {
	IDs []string
	Err error
}

func (e *BatchError) Error() string { return e.Err.Error() }

func (e *BatchError) Unwrap() error { return e.Err }

// FailedIDs returns the ids carried by a BatchError in err's chain.
func FailedIDs(err error) []string {
	var be *BatchError
	if errors.As(err, &be) {
		return be.IDs
	}
	return nil
}

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch objects: %s", e.Status)
}

// batchSizes returns one batch size per concurrent download worker. Small
// graphs are fetched in a single request.
func batchSizes(total int) []int {
	if total <= 50 {
		return []int{max(total, 1)}
	}
	return []int{10000, 25000, 10000, 1000}
}
