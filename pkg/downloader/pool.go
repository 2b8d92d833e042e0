package downloader

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// pool runs one worker per batch size. Each worker takes up to its size of
// pending ids, waiting at most maxWait for a batch to fill. A failed batch
// is reported and the worker moves on.
type pool struct {
	maxWait time.Duration
	process func(ctx context.Context, batch []string) error
	onError func(error)

	mu      sync.Mutex
	pending []string
	changed chan struct{}

	cancel context.CancelFunc
	group  *errgroup.Group
	once   sync.Once
}

func newPool(sizes []int, maxWait time.Duration, process func(context.Context, []string) error, onError func(error)) *pool {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	p := &pool{
		maxWait: maxWait,
		process: process,
		onError: onError,
		changed: make(chan struct{}),
		cancel:  cancel,
		group:   g,
	}
	for _, size := range sizes {
		g.Go(func() error { return p.work(gctx, size) })
	}
	return p
}

func (p *pool) add(id string) {
	p.mu.Lock()
	p.pending = append(p.pending, id)
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}

func (p *pool) work(ctx context.Context, size int) error {
	for {
		batch, ok := p.take(ctx, size)
		if !ok {
			return nil
		}
		if err := p.process(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var be *BatchError
			if !errors.As(err, &be) {
				err = &BatchError{IDs: batch, Err: err}
			}
			if p.onError != nil {
				p.onError(err)
			}
		}
	}
}

// take blocks until size ids are pending, or until some are pending and
// maxWait has passed since this worker first saw them.
func (p *pool) take(ctx context.Context, size int) ([]string, bool) {
	var (
		timer   *time.Timer
		timeout <-chan time.Time
		expired bool
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		p.mu.Lock()
		n := len(p.pending)
		if n >= size || (n > 0 && expired) {
			k := min(n, size)
			batch := make([]string, k)
			copy(batch, p.pending[:k])
			p.pending = p.pending[k:]
			p.mu.Unlock()
			return batch, true
		}
		changed := p.changed
		p.mu.Unlock()

		if n > 0 && timer == nil {
			timer = time.NewTimer(p.maxWait)
			timeout = timer.C
		}

		select {
		case <-changed:
		case <-timeout:
			expired = true
		case <-ctx.Done():
			return nil, false
		}
	}
}

// close stops the workers and waits for in-flight batches.
func (p *pool) close() {
	p.once.Do(func() {
		p.cancel()
		_ = p.group.Wait()
	})
}
