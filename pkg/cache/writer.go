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

// Writer defaults.
const (
	DefaultWriteBatchSize = 10000
	DefaultWriteMaxWait   = time.Second
)

// WriterConfig configures a Writer.
type WriterConfig struct {
	BatchSize int
	MaxWait   time.Duration

	// OnError receives save failures. Optional.
	OnError func(err error)

	// Metrics is optional.
	Metrics metrics.LoaderMetrics
}

// DefaultWriterConfig returns the default writer configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{BatchSize: DefaultWriteBatchSize, MaxWait: DefaultWriteMaxWait}
}

// Writer batches saves to the store and releases waiters as soon as an item
// is queued, before it is persisted.
type Writer struct {
	db    store.Database
	def   deferment.Deferment
	queue *batch.Queue[objects.Item]
}

// NewWriter creates a Writer and starts its batch queue.
func NewWriter(db store.Database, def deferment.Deferment, cfg WriterConfig) *Writer {
	w := &Writer{db: db, def: def}
	w.queue = batch.New(batch.Config[objects.Item]{
		Name:      "cache-writer",
		BatchSize: cfg.BatchSize,
		MaxWait:   cfg.MaxWait,
		Process:   w.writeAll,
		OnError:   cfg.OnError,
		Metrics:   cfg.Metrics,
	})
	return w
}

// Add queues a resolved item for saving and settles its future. Unresolved
// items only settle the future.
func (w *Writer) Add(item objects.Item) {
	if item.Resolved() {
		w.queue.Add(item.BaseID, item)
	}
	w.def.Undefer(item)
}

// Pending returns the number of items not yet handed to the store.
func (w *Writer) Pending() int {
	return w.queue.Count()
}

func (w *Writer) writeAll(ctx context.Context, items []objects.Item) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanCacheWrite, telemetry.BatchSize(len(items)))
	start := time.Now()

	err := w.db.SaveBatch(ctx, items)
	if err != nil {
		err = fmt.Errorf("cache write of %d objects: %w", len(items), err)
	}
	telemetry.EndSpan(span, err)
	if err != nil {
		return err
	}

	logger.Debug("Cache write batch", logger.BatchSize(len(items)), logger.DurationMs(time.Since(start)))
	return nil
}

// Dispose flushes queued items and stops the writer. Safe to call more than
// once.
func (w *Writer) Dispose() {
	w.queue.Dispose()
}
