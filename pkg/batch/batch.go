// Package batch groups keyed values into batches handed to a processor,
// flushing when a batch is full or when its oldest entry has waited long enough.
package batch

import (
	"context"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/internal/telemetry"
	"github.com/marmos91/objectloader/pkg/metrics"
)

// Default limits used when a Config leaves them unset.
const (
	DefaultBatchSize = 10000
	DefaultMaxWait   = 50 * time.Millisecond
)

// ProcessFunc consumes one batch. It is never called concurrently for the
// same queue.
type ProcessFunc[T any] func(ctx context.Context, batch []T) error

// Config configures a Queue.
type Config[T any] struct {
	// Name identifies the queue in logs, spans and metrics.
	Name string

	// BatchSize is the pending count that triggers an immediate flush.
	BatchSize int

	// MaxWait is how long the oldest pending entry may wait before a flush.
	MaxWait time.Duration

	// Process receives each batch in insertion order.
	Process ProcessFunc[T]

	// OnError is called with every Process error. Optional.
	OnError func(err error)

	// Metrics is optional.
	Metrics metrics.LoaderMetrics
}

type entry[T any] struct {
	value T
	added time.Time
}

// Queue is a keyed batching queue. A single background goroutine runs the
// flushes, so batches never overlap.
type Queue[T any] struct {
	cfg Config[T]

	mu       sync.Mutex
	pending  *orderedmap.OrderedMap[string, entry[T]]
	disposed bool

	kick   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Queue and starts its flush goroutine.
func New[T any](cfg Config[T]) *Queue[T] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.Name == "" {
		cfg.Name = "batch"
	}

	q := &Queue[T]{
		cfg:     cfg,
		pending: orderedmap.New[string, entry[T]](),
		kick:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Add queues value under key. A key already pending keeps its position and
// takes the new value.
func (q *Queue[T]) Add(key string, value T) {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		logger.Debug("Batch queue disposed, dropping entry", logger.Queue(q.cfg.Name), logger.ObjectID(key))
		return
	}
	q.put(key, value, time.Now())
	q.mu.Unlock()

	q.signal()
}

// AddAll queues values under the matching keys. Extra keys or values are
// ignored.
func (q *Queue[T]) AddAll(keys []string, values []T) {
	n := min(len(keys), len(values))
	if n == 0 {
		return
	}

	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		logger.Debug("Batch queue disposed, dropping entries", logger.Queue(q.cfg.Name), logger.KeyCount, n)
		return
	}
	now := time.Now()
	for i := 0; i < n; i++ {
		q.put(keys[i], values[i], now)
	}
	q.mu.Unlock()

	q.signal()
}

// put must be called with q.mu held.
func (q *Queue[T]) put(key string, value T, now time.Time) {
	if e, ok := q.pending.Get(key); ok {
		e.value = value
		q.pending.Set(key, e)
		return
	}
	q.pending.Set(key, entry[T]{value: value, added: now})
}

// signal wakes the flush goroutine so it can arm the MaxWait timer or flush
// a full batch.
func (q *Queue[T]) signal() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

// Get returns the pending value for key.
func (q *Queue[T]) Get(key string) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.pending.Get(key)
	return e.value, ok
}

// Count returns the number of pending entries.
func (q *Queue[T]) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Dispose flushes every pending entry, then stops the flush goroutine.
// Safe to call more than once.
func (q *Queue[T]) Dispose() {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		<-q.doneCh
		return
	}
	q.disposed = true
	q.mu.Unlock()

	close(q.stopCh)
	<-q.doneCh
}

func (q *Queue[T]) run() {
	defer close(q.doneCh)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if wait, ready := q.nextFlush(); ready {
			q.flush(q.take(q.cfg.BatchSize))
			continue
		} else if wait > 0 {
			timer.Reset(wait)
		}

		select {
		case <-q.kick:
		case <-timer.C:
		case <-q.stopCh:
			for batch := q.take(q.cfg.BatchSize); len(batch) > 0; batch = q.take(q.cfg.BatchSize) {
				q.flush(batch)
			}
			return
		}
		timer.Stop()
	}
}

// nextFlush reports whether a batch is due now, or else how long until the
// oldest entry is due (zero when nothing is pending).
func (q *Queue[T]) nextFlush() (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending.Len() == 0 {
		return 0, false
	}
	if q.pending.Len() >= q.cfg.BatchSize {
		return 0, true
	}
	wait := q.cfg.MaxWait - time.Since(q.pending.Oldest().Value.added)
	if wait <= 0 {
		return 0, true
	}
	return wait, false
}

// take removes up to n entries from the front of the pending map.
func (q *Queue[T]) take(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	size := min(n, q.pending.Len())
	if size == 0 {
		return nil
	}
	batch := make([]T, 0, size)
	for len(batch) < size {
		oldest := q.pending.Oldest()
		batch = append(batch, oldest.Value.value)
		q.pending.Delete(oldest.Key)
	}
	return batch
}

func (q *Queue[T]) flush(batch []T) {
	if len(batch) == 0 || q.cfg.Process == nil {
		return
	}

	ctx, span := telemetry.StartSpan(context.Background(), telemetry.SpanBatchProcess,
		telemetry.Queue(q.cfg.Name), telemetry.BatchSize(len(batch)))
	start := time.Now()

	err := q.process(ctx, batch)

	elapsed := time.Since(start)
	telemetry.EndSpan(span, err)
	metrics.ObserveBatch(q.cfg.Metrics, q.cfg.Name, len(batch), elapsed, err)

	if err != nil {
		logger.Warn("Batch processing failed",
			logger.Queue(q.cfg.Name), logger.BatchSize(len(batch)), logger.DurationMs(elapsed), logger.Err(err))
		if q.cfg.OnError != nil {
			q.cfg.OnError(err)
		}
		return
	}
	logger.Debug("Batch processed",
		logger.Queue(q.cfg.Name), logger.BatchSize(len(batch)), logger.DurationMs(elapsed))
}

// process runs the processor, turning a panic into an error so one bad batch
// cannot stop the queue.
func (q *Queue[T]) process(ctx context.Context, batch []T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Queue: q.cfg.Name, Value: r}
		}
	}()
	return q.cfg.Process(ctx, batch)
}
