package metrics

import "time"

// Deferment events reported through RecordDeferment.
const (
	DefermentCreated   = "created"
	DefermentCollapsed = "collapsed"
	DefermentCached    = "cached"
	DefermentResolved  = "resolved"
	DefermentExpired   = "expired"
	DefermentEvicted   = "evicted"
	DefermentRejected  = "rejected"
)

// LoaderMetrics receives measurements from the loader components.
// Implementations must be safe for concurrent use.
type LoaderMetrics interface {
	// ObserveBatch records one processed batch of a batching queue.
	ObserveBatch(queue string, size int, duration time.Duration, err error)

	// RecordCacheLookup records the outcome of one bulk cache read.
	RecordCacheLookup(hits, misses int)

	// RecordDeferment counts a deferment lifecycle event.
	RecordDeferment(event string)

	// SetPendingDeferments reports the number of live deferment entries.
	SetPendingDeferments(n int)

	// ObserveDownload records one download request against the server.
	ObserveDownload(objects int, bytes int64, duration time.Duration, err error)

	// RecordTransportDrop counts a ring buffer message that was dropped.
	RecordTransportDrop(queue, reason string)

	// RecordEmitted counts an object handed to the consumer.
	RecordEmitted(mergedChunks int)
}

// ObserveBatch records a batch if m is not nil.
func ObserveBatch(m LoaderMetrics, queue string, size int, duration time.Duration, err error) {
	if m != nil {
		m.ObserveBatch(queue, size, duration, err)
	}
}

// RecordCacheLookup records a bulk lookup if m is not nil.
func RecordCacheLookup(m LoaderMetrics, hits, misses int) {
	if m != nil {
		m.RecordCacheLookup(hits, misses)
	}
}

// RecordDeferment records a deferment event if m is not nil.
func RecordDeferment(m LoaderMetrics, event string) {
	if m != nil {
		m.RecordDeferment(event)
	}
}

// SetPendingDeferments reports the deferment gauge if m is not nil.
func SetPendingDeferments(m LoaderMetrics, n int) {
	if m != nil {
		m.SetPendingDeferments(n)
	}
}

// ObserveDownload records a download request if m is not nil.
func ObserveDownload(m LoaderMetrics, objects int, bytes int64, duration time.Duration, err error) {
	if m != nil {
		m.ObserveDownload(objects, bytes, duration, err)
	}
}

// RecordTransportDrop records a dropped transport message if m is not nil.
func RecordTransportDrop(m LoaderMetrics, queue, reason string) {
	if m != nil {
		m.RecordTransportDrop(queue, reason)
	}
}

// RecordEmitted records an emitted object if m is not nil.
func RecordEmitted(m LoaderMetrics, mergedChunks int) {
	if m != nil {
		m.RecordEmitted(mergedChunks)
	}
}
