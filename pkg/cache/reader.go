// Package cache connects the persistent object store to the deferment
// manager: the Reader batches lookups and the Writer batches saves.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/internal/telemetry"
	"github.com/marmos91/objectloader/pkg/batch"
	"github.com/marmos91/objectloader/pkg/deferment"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/objects"
	"github.com/marmos91/objectloader/pkg/store"
)

// Reader defaults.
const (
	DefaultReadBatchSize = 10000
	DefaultReadMaxWait   = 50 * time.Millisecond
)

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	BatchSize int
	MaxWait   time.Duration

	// OnError receives lookup failures. Optional.
	OnError func(err error)

	// Metrics is optional.
	Metrics metrics.LoaderMetrics
}

// DefaultReaderConfig returns the default reader configuration.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{BatchSize: DefaultReadBatchSize, MaxWait: DefaultReadMaxWait}
}

// Reader batches id lookups against the store. Every looked up id reaches
// the sink exactly once: resolved on a hit, as a stub on a miss.
type Reader struct {
	db      store.Database
	def     deferment.Deferment
	sink    objects.ItemSink
	queue   *batch.Queue[string]
	metrics metrics.LoaderMetrics
}

// NewReader creates a Reader and starts its batch queue.
func NewReader(db store.Database, def deferment.Deferment, sink objects.ItemSink, cfg ReaderConfig) *Reader {
	r := &Reader{db: db, def: def, sink: sink, metrics: cfg.Metrics}
	r.queue = batch.New(batch.Config[string]{
		Name:      "cache-reader",
		BatchSize: cfg.BatchSize,
		MaxWait:   cfg.MaxWait,
		Process:   r.readBatch,
		OnError:   cfg.OnError,
		Metrics:   cfg.Metrics,
	})
	return r
}

// GetObject returns the future for id, queueing a lookup unless the id is
// already cached in memory or already requested.
func (r *Reader) GetObject(_ context.Context, id string) (*deferment.Future, error) {
	f, known, err := r.def.Defer(id)
	if err != nil {
		return nil, fmt.Errorf("defer %s: %w", id, err)
	}
	if !known {
		r.queue.Add(id, id)
	}
	return f, nil
}

// RequestAll queues lookups for ids without creating futures.
func (r *Reader) RequestAll(ids []string) {
	r.queue.AddAll(ids, ids)
}

// Pending returns the number of queued lookups.
func (r *Reader) Pending() int {
	return r.queue.Count()
}

func (r *Reader) readBatch(ctx context.Context, ids []string) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanCacheRead, telemetry.BatchSize(len(ids)))
	start := time.Now()

	items, err := r.db.GetAll(ctx, ids)
	if err != nil {
		err = fmt.Errorf("cache read of %d objects: %w", len(ids), err)
		telemetry.EndSpan(span, err)
		return err
	}

	hits := 0
	for i, id := range ids {
		var item *objects.Item
		if i < len(items) {
			item = items[i]
		}
		if item == nil || !item.Resolved() {
			r.sink(objects.Stub(id))
			continue
		}
		hits++
		r.def.Undefer(*item)
		r.sink(*item)
	}

	misses := len(ids) - hits
	metrics.RecordCacheLookup(r.metrics, hits, misses)
	telemetry.AddEvent(ctx, "lookup", telemetry.CacheResult(hits, misses)...)
	telemetry.EndSpan(span, nil)
	logger.Debug("Cache read batch",
		logger.BatchSize(len(ids)), logger.KeyHits, hits, logger.KeyMisses, misses,
		logger.DurationMs(time.Since(start)))
	return nil
}

// Dispose flushes queued lookups and stops the reader. Safe to call more
// than once.
func (r *Reader) Dispose() {
	r.queue.Dispose()
}
