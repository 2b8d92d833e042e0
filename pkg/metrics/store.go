package metrics

import "time"

// StoreMetrics receives measurements from the persistent cache backends.
type StoreMetrics interface {
	// ObserveOperation records one backend call (get_all, get, save_batch).
	ObserveOperation(store, operation string, items int, duration time.Duration, err error)

	// RecordBytes records payload bytes moved by an operation.
	RecordBytes(store, operation string, bytes int64)
}

// ObserveStoreOperation records a backend call if m is not nil.
func ObserveStoreOperation(m StoreMetrics, store, operation string, items int, duration time.Duration, err error) {
	if m != nil {
		m.ObserveOperation(store, operation, items, duration, err)
	}
}

// RecordStoreBytes records backend bytes if m is not nil.
func RecordStoreBytes(m StoreMetrics, store, operation string, bytes int64) {
	if m != nil {
		m.RecordBytes(store, operation, bytes)
	}
}
