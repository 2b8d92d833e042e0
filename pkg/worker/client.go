package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/internal/telemetry"
	"github.com/marmos91/objectloader/pkg/objects"
	"github.com/marmos91/objectloader/pkg/ringbuffer"
	"github.com/marmos91/objectloader/pkg/store"
)

// Client is the coordinating side of the transport. It implements
// store.Database: reads go through the worker, writes go straight to the
// store.
type Client struct {
	db        store.Database
	requests  *ringbuffer.StringQueue
	responses *ringbuffer.ItemQueue
	timeout   time.Duration

	// mu serialises requests: only one may be in flight.
	mu     sync.Mutex
	broken error

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// GetAll asks the worker for ids and waits for the response. A transport
// timeout breaks the client: the late response could otherwise be read as
// the answer to the next request.
func (c *Client) GetAll(ctx context.Context, ids []string) ([]*objects.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return nil, c.broken
	}
	select {
	case <-c.done:
		return nil, store.ErrClosed
	default:
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanWorkerGetAll, telemetry.BatchSize(len(ids)))
	items, err := c.roundTrip(ctx, ids)
	telemetry.EndSpan(span, err)
	return items, err
}

func (c *Client) roundTrip(ctx context.Context, ids []string) ([]*objects.Item, error) {
	msgs := make([]string, 0, len(ids)+1)
	msgs = append(msgs, ids...)
	msgs = append(msgs, "")

	deadline := time.Now().Add(c.timeout)
	for len(msgs) > 0 {
		if err := c.interrupted(ctx, deadline); err != nil {
			return nil, c.fail(fmt.Errorf("sending %d ids: %w", len(ids), err))
		}
		if n := c.requests.Enqueue(msgs, pollInterval); n > 0 {
			msgs = msgs[n:]
			deadline = time.Now().Add(c.timeout)
		}
	}

	byID := make(map[string]*objects.Item, len(ids))
	deadline = time.Now().Add(c.timeout)
	for {
		if err := c.interrupted(ctx, deadline); err != nil {
			return nil, c.fail(fmt.Errorf("waiting for %d ids: %w", len(ids), err))
		}
		batch := c.responses.Dequeue(dequeueChunk, pollInterval)
		if len(batch) > 0 {
			deadline = time.Now().Add(c.timeout)
		}
		for i := range batch {
			item := batch[i]
			if item.BaseID == "" {
				if err := terminatorError(item); err != nil {
					return nil, err
				}
				return align(ids, byID), nil
			}
			byID[item.BaseID] = &item
		}
	}
}

// interrupted reports why a wait must stop: cancellation, shutdown, or no
// progress before deadline.
func (c *Client) interrupted(ctx context.Context, deadline time.Time) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	select {
	case <-c.done:
		return store.ErrClosed
	default:
	}
	if time.Now().After(deadline) {
		return ErrTimeout
	}
	return nil
}

// fail marks the client unusable. c.mu must be held.
func (c *Client) fail(err error) error {
	c.broken = err
	logger.Warn("Worker transport broken", logger.Err(err))
	return err
}

func align(ids []string, byID map[string]*objects.Item) []*objects.Item {
	out := make([]*objects.Item, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out
}

// GetItem looks up a single id through the worker.
func (c *Client) GetItem(ctx context.Context, id string) (*objects.Item, error) {
	return store.GetItemFromAll(ctx, c, id)
}

// SaveBatch writes directly to the store.
func (c *Client) SaveBatch(ctx context.Context, items []objects.Item) error {
	return c.db.SaveBatch(ctx, items)
}

// Dispose stops the worker, then disposes the store. Safe to call more than
// once.
func (c *Client) Dispose() error {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		c.closeErr = c.db.Dispose()
	})
	return c.closeErr
}

var _ store.Database = (*Client)(nil)
