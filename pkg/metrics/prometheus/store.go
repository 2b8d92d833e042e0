package prometheus

import (
	"time"

	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetrics is the Prometheus implementation of metrics.StoreMetrics.
type storeMetrics struct {
	operations *prometheus.CounterVec
	items      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
}

// NewStoreMetrics creates a Prometheus-backed StoreMetrics, or nil when
// metrics are disabled.
func NewStoreMetrics() metrics.StoreMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	f := promauto.With(metrics.GetRegistry())

	return &storeMetrics{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objectloader_store_operations_total",
				Help: "Cache backend operations by store, operation and status",
			},
			[]string{"store", "operation", "status"},
		),
		items: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objectloader_store_items_total",
				Help: "Items read or written by cache backend operations",
			},
			[]string{"store", "operation"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "objectloader_store_operation_duration_milliseconds",
				Help: "Duration of cache backend operations in milliseconds",
				Buckets: []float64{
					0.5,  // memory
					2,    // badger
					10,   // redis
					50,   // s3 single object
					250,  // s3 batch
					1000, // 1s
					5000, // 5s
				},
			},
			[]string{"store", "operation"},
		),
		bytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objectloader_store_bytes_total",
				Help: "Payload bytes moved by cache backend operations",
			},
			[]string{"store", "operation"},
		),
	}
}

func (m *storeMetrics) ObserveOperation(store, operation string, items int, duration time.Duration, err error) {
	m.operations.WithLabelValues(store, operation, status(err)).Inc()
	m.items.WithLabelValues(store, operation).Add(float64(items))
	m.duration.WithLabelValues(store, operation).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *storeMetrics) RecordBytes(store, operation string, bytes int64) {
	m.bytes.WithLabelValues(store, operation).Add(float64(bytes))
}
