// Package prometheus implements the pkg/metrics interfaces on top of the
// shared Prometheus registry.
package prometheus

import (
	"time"

	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// loaderMetrics is the Prometheus implementation of metrics.LoaderMetrics.
type loaderMetrics struct {
	batches          *prometheus.CounterVec
	batchSize        *prometheus.HistogramVec
	batchDuration    *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	deferments       *prometheus.CounterVec
	pendingDeferment prometheus.Gauge
	downloads        *prometheus.CounterVec
	downloadObjects  prometheus.Counter
	downloadBytes    prometheus.Counter
	downloadDuration prometheus.Histogram
	transportDrops   *prometheus.CounterVec
	emitted          prometheus.Counter
	mergedChunks     prometheus.Counter
}

// NewLoaderMetrics creates a Prometheus-backed LoaderMetrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which the
// loader treats as "no metrics" with zero overhead.
func NewLoaderMetrics() metrics.LoaderMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	f := promauto.With(metrics.GetRegistry())

	return &loaderMetrics{
		batches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objectloader_batches_total",
				Help: "Total number of processed batches by queue and status",
			},
			[]string{"queue", "status"}, // status: "success", "error"
		),
		batchSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "objectloader_batch_size",
				Help:    "Distribution of batch sizes by queue",
				Buckets: prometheus.ExponentialBuckets(1, 4, 9), // 1 .. 65536
			},
			[]string{"queue"},
		),
		batchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "objectloader_batch_duration_milliseconds",
				Help: "Duration of batch processing in milliseconds",
				Buckets: []float64{
					1,     // 1ms - memory store
					5,     // 5ms
					25,    // 25ms - local badger
					100,   // 100ms
					500,   // 500ms - remote stores
					2500,  // 2.5s
					10000, // 10s - large downloads
				},
			},
			[]string{"queue"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objectloader_cache_lookups_total",
				Help: "Total number of object lookups in the local cache by result",
			},
			[]string{"result"}, // "hit", "miss"
		),
		deferments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objectloader_deferments_total",
				Help: "Deferment lifecycle events",
			},
			[]string{"event"},
		),
		pendingDeferment: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "objectloader_deferments_pending",
				Help: "Number of live deferment entries",
			},
		),
		downloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objectloader_download_requests_total",
				Help: "Total number of download requests by status",
			},
			[]string{"status"},
		),
		downloadObjects: f.NewCounter(
			prometheus.CounterOpts{
				Name: "objectloader_downloaded_objects_total",
				Help: "Total number of objects received from the server",
			},
		),
		downloadBytes: f.NewCounter(
			prometheus.CounterOpts{
				Name: "objectloader_downloaded_bytes_total",
				Help: "Total payload bytes received from the server",
			},
		),
		downloadDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "objectloader_download_duration_milliseconds",
				Help:    "Duration of download requests in milliseconds",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 30000},
			},
		),
		transportDrops: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objectloader_transport_dropped_total",
				Help: "Ring buffer messages dropped by queue and reason",
			},
			[]string{"queue", "reason"}, // reason: "encode", "decode", "oversize"
		),
		emitted: f.NewCounter(
			prometheus.CounterOpts{
				Name: "objectloader_objects_emitted_total",
				Help: "Objects handed to the consumer",
			},
		),
		mergedChunks: f.NewCounter(
			prometheus.CounterOpts{
				Name: "objectloader_chunks_merged_total",
				Help: "DataChunks merged back into their parent arrays",
			},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *loaderMetrics) ObserveBatch(queue string, size int, duration time.Duration, err error) {
	m.batches.WithLabelValues(queue, status(err)).Inc()
	m.batchSize.WithLabelValues(queue).Observe(float64(size))
	m.batchDuration.WithLabelValues(queue).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *loaderMetrics) RecordCacheLookup(hits, misses int) {
	m.cacheLookups.WithLabelValues("hit").Add(float64(hits))
	m.cacheLookups.WithLabelValues("miss").Add(float64(misses))
}

func (m *loaderMetrics) RecordDeferment(event string) {
	m.deferments.WithLabelValues(event).Inc()
}

func (m *loaderMetrics) SetPendingDeferments(n int) {
	m.pendingDeferment.Set(float64(n))
}

func (m *loaderMetrics) ObserveDownload(objects int, bytes int64, duration time.Duration, err error) {
	m.downloads.WithLabelValues(status(err)).Inc()
	m.downloadObjects.Add(float64(objects))
	m.downloadBytes.Add(float64(bytes))
	m.downloadDuration.Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *loaderMetrics) RecordTransportDrop(queue, reason string) {
	m.transportDrops.WithLabelValues(queue, reason).Inc()
}

func (m *loaderMetrics) RecordEmitted(mergedChunks int) {
	m.emitted.Inc()
	m.mergedChunks.Add(float64(mergedChunks))
}
