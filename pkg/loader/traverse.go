package loader

import (
	"cmp"
	"context"
	"errors"
	"iter"
	"math"
	"slices"
	"time"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/internal/telemetry"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/objects"
)

// errStopped reports that the consumer stopped iterating.
var errStopped = errors.New("iteration stopped")

// Objects returns a single-pass sequence of every object reachable from the
// root, each unique id once and the root first. DataChunks are merged into
// the array properties that reference them and are never yielded. A failure
// of the cache or the downloader ends the sequence with that error.
//
// An object whose array property references other objects is held until
// that array is known to be mergeable or not: the first arrived target that
// is not a chunk releases it, while an array of chunks waits for all of
// them. Every later object waits behind the root.
func (l *Loader) Objects(ctx context.Context) iter.Seq2[*objects.Base, error] {
	return func(yield func(*objects.Base, error) bool) {
		if !l.iterated.CompareAndSwap(false, true) {
			yield(nil, ErrAlreadyIterated)
			return
		}

		ctx, cancel := context.WithCancelCause(l.withLogContext(ctx))
		defer cancel(nil)
		if err := l.attach(cancel); err != nil {
			yield(nil, err)
			return
		}
		defer l.attach(nil)

		ctx, span := telemetry.StartSpan(ctx, telemetry.SpanLoaderTraverse,
			telemetry.SessionID(l.sessionID), telemetry.RootID(l.rootID))
		var err error
		defer func() { telemetry.EndSpan(span, err) }()

		root, err := l.RootItem(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		l.ensureDownloader(ctx)

		l.inbox.setOpen(true)
		defer l.inbox.setOpen(false)

		start := time.Now()
		t := newTraversal(l, root)
		err = t.run(ctx, yield)
		switch {
		case errors.Is(err, errStopped):
			err = nil
			logger.DebugCtx(ctx, "Traversal stopped by consumer", logger.KeyCount, t.emitted)
		case err != nil:
			logger.WarnCtx(ctx, "Traversal failed", logger.KeyCount, t.emitted, logger.Err(err))
			yield(nil, err)
		default:
			logger.InfoCtx(ctx, "Traversal complete",
				logger.KeyCount, t.emitted,
				logger.KeyChunks, t.merged,
				logger.DurationMs(time.Since(start)))
		}
	}
}

// parent is an object waiting for the targets of its reference arrays, any
// of which may be a DataChunk to merge. An array is decided once one of its
// targets turns out not to be a chunk, or once all of them have arrived.
type parent struct {
	id     string
	base   *objects.Base
	arrays map[string][]string

	open     map[string]int      // undecided array -> targets not arrived
	targets  map[string][]string // target not arrived -> undecided arrays
	finished bool
}

type readyObject struct {
	base   *objects.Base
	merged int
}

// traversal is the state of one Objects call. It is only touched by the
// consuming goroutine.
type traversal struct {
	l      *Loader
	rootID string

	requested map[string]struct{}
	pending   map[string]struct{}
	arrived   map[string]struct{}
	chunks    map[string][]any
	waiters   map[string][]*parent

	root        *readyObject
	rootEmitted bool
	ready       []readyObject

	emitted int
	merged  int
}

func newTraversal(l *Loader, root *objects.Item) *traversal {
	t := &traversal{
		l:         l,
		rootID:    root.BaseID,
		requested: map[string]struct{}{root.BaseID: {}},
		pending:   make(map[string]struct{}),
		arrived:   map[string]struct{}{root.BaseID: {}},
		chunks:    make(map[string][]any),
		waiters:   make(map[string][]*parent),
	}
	t.visit(root.BaseID, root.Base)
	return t
}

func (t *traversal) run(ctx context.Context, yield func(*objects.Base, error) bool) error {
	for {
		if !t.rootEmitted && t.root != nil {
			if !t.emit(yield, *t.root) {
				return errStopped
			}
			t.rootEmitted = true
		}
		if t.rootEmitted {
			for len(t.ready) > 0 {
				next := t.ready[0]
				t.ready = t.ready[1:]
				if !t.emit(yield, next) {
					return errStopped
				}
			}
		}

		if len(t.pending) == 0 {
			return nil
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		items := t.l.inbox.drain()
		if len(items) == 0 {
			select {
			case <-t.l.inbox.notify:
			case <-ctx.Done():
				return context.Cause(ctx)
			}
			continue
		}
		for _, item := range items {
			t.arrive(item)
		}
	}
}

func (t *traversal) emit(yield func(*objects.Base, error) bool, obj readyObject) bool {
	t.emitted++
	t.merged += obj.merged
	metrics.RecordEmitted(t.l.metrics, obj.merged)
	return yield(obj.base, nil)
}

// arrive records a delivered item. Items that were not requested, or were
// already delivered, are ignored. Unresolved items count as delivered.
func (t *traversal) arrive(item objects.Item) {
	id := item.BaseID
	if _, ok := t.pending[id]; !ok {
		return
	}
	delete(t.pending, id)
	t.arrived[id] = struct{}{}

	if item.Resolved() {
		t.visit(id, item.Base)
	}
	t.release(id)
}

// visit requests the children of an arrived object and schedules it for
// emission once its reference arrays can be resolved. A DataChunk root is
// emitted like any other object.
func (t *traversal) visit(id string, base *objects.Base) {
	if base.IsChunk() && id != t.rootID {
		t.chunks[id] = base.ChunkData()
		t.request(childrenByCost(base))
		return
	}

	p := &parent{
		id:      id,
		base:    base,
		arrays:  base.ReferenceArrays(),
		open:    make(map[string]int),
		targets: make(map[string][]string),
	}
	var extra []string
	for name, ids := range p.arrays {
		missing, decided := t.pendingTargets(id, ids)
		extra = append(extra, missing...)
		if decided || len(missing) == 0 {
			continue
		}
		p.open[name] = len(missing)
		for _, child := range missing {
			if _, ok := p.targets[child]; !ok {
				t.waiters[child] = append(t.waiters[child], p)
			}
			p.targets[child] = append(p.targets[child], name)
		}
	}

	t.request(childrenByCost(base))
	t.request(extra)

	if len(p.open) == 0 {
		t.finish(p)
	}
}

// pendingTargets returns the distinct targets of an array of owner that have
// not arrived. decided is true when an arrived target is not a chunk, so the
// array can never be merged.
func (t *traversal) pendingTargets(owner string, ids []string) (missing []string, decided bool) {
	seen := make(map[string]struct{}, len(ids))
	for _, child := range ids {
		if _, ok := t.arrived[child]; ok || child == owner {
			if _, chunk := t.chunks[child]; !chunk {
				decided = true
			}
			continue
		}
		if _, ok := seen[child]; ok {
			continue
		}
		seen[child] = struct{}{}
		missing = append(missing, child)
	}
	return missing, decided
}

// request queues cache lookups for ids never requested before.
func (t *traversal) request(ids []string) {
	fresh := ids[:0:0]
	for _, id := range ids {
		if _, ok := t.requested[id]; ok {
			continue
		}
		t.requested[id] = struct{}{}
		t.pending[id] = struct{}{}
		fresh = append(fresh, id)
	}
	if len(fresh) > 0 {
		t.l.track(fresh)
		t.l.reader.RequestAll(fresh)
	}
}

// release settles the arrays waiting on id. A parent is finished once all
// of its arrays are decided, without waiting for the rest of their targets.
func (t *traversal) release(id string) {
	waiting := t.waiters[id]
	delete(t.waiters, id)
	_, chunk := t.chunks[id]
	for _, p := range waiting {
		for _, name := range p.targets[id] {
			n, ok := p.open[name]
			switch {
			case !ok:
			case !chunk || n == 1:
				delete(p.open, name)
			default:
				p.open[name] = n - 1
			}
		}
		delete(p.targets, id)
		if len(p.open) == 0 {
			t.finish(p)
		}
	}
}

func (t *traversal) finish(p *parent) {
	if p.finished {
		return
	}
	p.finished = true

	base, merged := t.merge(p)
	obj := readyObject{base: base, merged: merged}
	if p.id == t.rootID {
		t.root = &obj
		return
	}
	t.ready = append(t.ready, obj)
}

// merge replaces every reference array whose targets are all DataChunks
// with the concatenated chunk data, in closure order. The original object
// is left untouched.
func (t *traversal) merge(p *parent) (*objects.Base, int) {
	var (
		out    *objects.Base
		merged int
		order  map[string]int
	)
	for name, ids := range p.arrays {
		if !t.allChunks(ids) {
			continue
		}
		if order == nil {
			order = closureOrder(p.base)
		}

		sorted := slices.Clone(ids)
		slices.SortStableFunc(sorted, func(a, b string) int {
			return cmp.Compare(position(order, a), position(order, b))
		})

		var data []any
		for _, id := range sorted {
			data = append(data, t.chunks[id]...)
		}

		if out == nil {
			out = p.base.Clone()
		}
		out.Properties[name] = data
		merged += len(ids)
	}

	if out == nil {
		return p.base, 0
	}
	return out, merged
}

func (t *traversal) allChunks(ids []string) bool {
	for _, id := range ids {
		if _, ok := t.chunks[id]; !ok {
			return false
		}
	}
	return true
}

func closureOrder(b *objects.Base) map[string]int {
	ids := b.ClosureIDs()
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	return order
}

func position(order map[string]int, id string) int {
	if i, ok := order[id]; ok {
		return i
	}
	return math.MaxInt
}

// childrenByCost returns the closure ids, most expensive first. Equal costs
// keep declaration order.
func childrenByCost(b *objects.Base) []string {
	if b.Closure == nil {
		return nil
	}

	type child struct {
		id   string
		cost int
	}
	children := make([]child, 0, b.Closure.Len())
	for p := b.Closure.Oldest(); p != nil; p = p.Next() {
		children = append(children, child{p.Key, p.Value})
	}
	slices.SortStableFunc(children, func(a, b child) int {
		return cmp.Compare(b.cost, a.cost)
	})

	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.id
	}
	return ids
}
