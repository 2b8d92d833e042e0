package deferment

import (
	"context"
	"sync"

	"github.com/marmos91/objectloader/pkg/objects"
)

// Future is the pending result of a deferred object lookup. It settles
// exactly once, either with a Base or with an error.
type Future struct {
	id   string
	done chan struct{}
	once sync.Once

	base *objects.Base
	err  error
}

func newFuture(id string) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// Resolved returns a future already settled with base.
func Resolved(id string, base *objects.Base) *Future {
	f := newFuture(id)
	f.resolve(base)
	return f
}

// Rejected returns a future already settled with err.
func Rejected(id string, err error) *Future {
	f := newFuture(id)
	f.reject(err)
	return f
}

// ID returns the object id the future waits for.
func (f *Future) ID() string { return f.id }

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Settled reports whether the future has a result.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (*objects.Base, error) {
	select {
	case <-f.done:
		return f.base, f.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

func (f *Future) resolve(base *objects.Base) bool {
	settled := false
	f.once.Do(func() {
		f.base = base
		close(f.done)
		settled = true
	})
	return settled
}

func (f *Future) reject(err error) bool {
	settled := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}
