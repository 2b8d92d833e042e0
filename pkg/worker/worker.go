// Package worker runs the object store on a background goroutine that talks
// to its client only through two ring buffer queues: ids go one way and
// items come back.
//
// Protocol: a request is a run of ids terminated by an empty string. The
// response is the found items, in any order, terminated by an item with an
// empty BaseID. Ids missing from the response are cache misses.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/objects"
	"github.com/marmos91/objectloader/pkg/ringbuffer"
	"github.com/marmos91/objectloader/pkg/store"
)

// Defaults used when a Config leaves fields unset.
const (
	DefaultCapacity = 1 << 20
	DefaultTimeout  = 30 * time.Second

	// pollInterval bounds how long the worker waits for a request before it
	// checks for shutdown.
	pollInterval = 100 * time.Millisecond

	dequeueChunk = 1024

	// errorType marks a terminator that carries a worker-side failure.
	errorType    = "objectloader.WorkerError"
	errorMessage = "message"
)

var (
	// ErrTimeout is returned when the peer does not drain or fill a queue in time.
	ErrTimeout = errors.New("worker transport timed out")

	// ErrWorker wraps a failure reported by the worker goroutine.
	ErrWorker = errors.New("worker failed")
)

// Config configures the transport.
type Config struct {
	// Capacity is the byte capacity of each ring buffer.
	Capacity int

	// Timeout bounds every wait on a queue.
	Timeout time.Duration

	// Metrics is optional.
	Metrics metrics.LoaderMetrics
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{Capacity: DefaultCapacity, Timeout: DefaultTimeout}
}

type worker struct {
	db        store.Database
	requests  *ringbuffer.StringQueue
	responses *ringbuffer.ItemQueue
	timeout   time.Duration
}

// Start launches the worker goroutine that owns db and returns the client
// side. The worker stops when ctx is done or the client is disposed.
func Start(ctx context.Context, db store.Database, cfg Config) (*Client, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	reqQ, err := ringbuffer.NewQueue(cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("create request queue: %w", err)
	}
	respQ, err := ringbuffer.NewQueue(cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("create response queue: %w", err)
	}

	requests := ringbuffer.NewStringQueue("worker-requests", reqQ, cfg.Metrics)
	responses := ringbuffer.NewItemQueue("worker-responses", respQ, cfg.Metrics)

	w := &worker{db: db, requests: requests, responses: responses, timeout: cfg.Timeout}

	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		db:        db,
		requests:  requests,
		responses: responses,
		timeout:   cfg.Timeout,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go func() {
		defer close(c.done)
		w.run(ctx)
	}()

	logger.Debug("Worker started", logger.KeyCapacity, cfg.Capacity)
	return c, nil
}

func (w *worker) run(ctx context.Context) {
	var pending []string
	for ctx.Err() == nil {
		for _, id := range w.requests.Dequeue(dequeueChunk, pollInterval) {
			if id != "" {
				pending = append(pending, id)
				continue
			}
			w.respond(ctx, pending)
			pending = pending[:0]
		}
	}
}

func (w *worker) respond(ctx context.Context, ids []string) {
	var out []objects.Item
	items, err := w.db.GetAll(ctx, ids)
	if err != nil {
		logger.Warn("Worker lookup failed", logger.KeyCount, len(ids), logger.Err(err))
		out = []objects.Item{errorTerminator(err)}
	} else {
		out = make([]objects.Item, 0, len(ids)+1)
		for _, item := range items {
			if item != nil && item.Resolved() {
				out = append(out, *item)
			}
		}
		out = append(out, objects.Item{})
	}

	for len(out) > 0 {
		n := w.responses.Enqueue(out, w.timeout)
		if n == 0 {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("Worker response not drained, dropping it", logger.KeyPending, len(out))
			return
		}
		out = out[n:]
	}
}

func errorTerminator(err error) objects.Item {
	return objects.Item{Base: &objects.Base{
		SpeckleType: errorType,
		Properties:  map[string]any{errorMessage: err.Error()},
	}}
}

// terminatorError returns the failure carried by a terminator, if any.
func terminatorError(item objects.Item) error {
	if item.Base == nil || item.Base.SpeckleType != errorType {
		return nil
	}
	msg, _ := item.Base.Properties[errorMessage].(string)
	return fmt.Errorf("%w: %s", ErrWorker, msg)
}
