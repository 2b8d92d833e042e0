package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/objectloader/pkg/deferment"
	"github.com/marmos91/objectloader/pkg/objects"
	"github.com/marmos91/objectloader/pkg/store"
	"github.com/marmos91/objectloader/pkg/store/memory"
)

// sinkRecorder collects items pushed by the reader.
type sinkRecorder struct {
	mu    sync.Mutex
	items []objects.Item
	ch    chan objects.Item
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{ch: make(chan objects.Item, 64)}
}

func (s *sinkRecorder) push(item objects.Item) {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
	s.ch <- item
}

func (s *sinkRecorder) next(t *testing.T) objects.Item {
	t.Helper()
	select {
	case item := <-s.ch:
		return item
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sink")
		return objects.Item{}
	}
}

// failingDB fails every call.
type failingDB struct{ err error }

func (f failingDB) GetAll(context.Context, []string) ([]*objects.Item, error) { return nil, f.err }
func (f failingDB) GetItem(context.Context, string) (*objects.Item, error)    { return nil, f.err }
func (f failingDB) SaveBatch(context.Context, []objects.Item) error            { return f.err }
func (f failingDB) Dispose() error                                             { return nil }

// blockingDB blocks SaveBatch until release is closed.
type blockingDB struct {
	*memory.Store
	release chan struct{}
}

func (b blockingDB) SaveBatch(ctx context.Context, items []objects.Item) error {
	<-b.release
	return b.Store.SaveBatch(ctx, items)
}

func resolvedItem(id string) objects.Item {
	return objects.Item{BaseID: id, Base: &objects.Base{ID: id, SpeckleType: "Base", Properties: map[string]any{}}}
}

func newManager(t *testing.T) *deferment.Manager {
	t.Helper()
	m, err := deferment.NewManager(deferment.Config{TTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(m.Dispose)
	return m
}

func fastReader(db store.Database, def deferment.Deferment, sink objects.ItemSink, onErr func(error)) *Reader {
	return NewReader(db, def, sink, ReaderConfig{BatchSize: 100, MaxWait: 5 * time.Millisecond, OnError: onErr})
}

func waitFuture(t *testing.T, f *deferment.Future) (*objects.Base, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

func TestReader_Hit(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	require.NoError(t, db.SaveBatch(ctx, []objects.Item{resolvedItem("a")}))

	sink := newSinkRecorder()
	r := fastReader(db, newManager(t), sink.push, nil)
	defer r.Dispose()

	f, err := r.GetObject(ctx, "a")
	require.NoError(t, err)

	base, err := waitFuture(t, f)
	require.NoError(t, err)
	assert.Equal(t, "a", base.ID)

	item := sink.next(t)
	assert.Equal(t, "a", item.BaseID)
	assert.True(t, item.Resolved())
}

func TestReader_SeededAliasResolvedByUndefer(t *testing.T) {
	ctx := context.Background()
	seeded := objects.Item{BaseID: "id1", Base: &objects.Base{ID: "id", SpeckleType: "type", Properties: map[string]any{}}}
	db := memory.New()
	require.NoError(t, db.SaveBatch(ctx, []objects.Item{seeded}))

	def := newManager(t)
	sink := newSinkRecorder()
	r := fastReader(db, def, sink.push, nil)
	defer r.Dispose()

	f, err := r.GetObject(ctx, "id1")
	require.NoError(t, err)
	def.Undefer(seeded)

	base, err := waitFuture(t, f)
	require.NoError(t, err)
	assert.Equal(t, "id", base.ID)
	assert.Equal(t, "type", base.SpeckleType)
}

func TestReader_MissYieldsStub(t *testing.T) {
	ctx := context.Background()
	def := newManager(t)
	sink := newSinkRecorder()
	r := fastReader(memory.New(), def, sink.push, nil)
	defer r.Dispose()

	f, err := r.GetObject(ctx, "missing")
	require.NoError(t, err)

	item := sink.next(t)
	assert.Equal(t, objects.Stub("missing"), item)
	assert.False(t, f.Settled())

	// A later arrival through the writer settles the same future.
	w := NewWriter(memory.New(), def, DefaultWriterConfig())
	defer w.Dispose()
	w.Add(resolvedItem("missing"))

	base, err := waitFuture(t, f)
	require.NoError(t, err)
	assert.Equal(t, "missing", base.ID)
}

func TestReader_DeduplicatesRequests(t *testing.T) {
	ctx := context.Background()
	sink := newSinkRecorder()
	r := NewReader(memory.New(), newManager(t), sink.push, ReaderConfig{BatchSize: 100, MaxWait: time.Hour})

	f1, err := r.GetObject(ctx, "a")
	require.NoError(t, err)
	f2, err := r.GetObject(ctx, "a")
	require.NoError(t, err)

	assert.Same(t, f1, f2)
	assert.Equal(t, 1, r.Pending())

	r.Dispose()
	assert.Len(t, sink.items, 1)
}

func TestReader_RequestAll(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	require.NoError(t, db.SaveBatch(ctx, []objects.Item{resolvedItem("a")}))

	sink := newSinkRecorder()
	r := fastReader(db, deferment.Disabled{}, sink.push, nil)
	defer r.Dispose()

	r.RequestAll([]string{"a", "b"})

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		item := sink.next(t)
		got[item.BaseID] = item.Resolved()
	}
	assert.Equal(t, map[string]bool{"a": true, "b": false}, got)
}

func TestReader_ErrorReachesOnError(t *testing.T) {
	boom := errors.New("disk gone")
	errs := make(chan error, 1)
	r := fastReader(failingDB{err: boom}, newManager(t), func(objects.Item) {}, func(err error) { errs <- err })
	defer r.Dispose()

	_, err := r.GetObject(context.Background(), "a")
	require.NoError(t, err)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("read error not reported")
	}
}

func TestReader_DisposedDeferment(t *testing.T) {
	def := newManager(t)
	def.Dispose()
	r := fastReader(memory.New(), def, func(objects.Item) {}, nil)
	defer r.Dispose()

	_, err := r.GetObject(context.Background(), "a")
	assert.ErrorIs(t, err, deferment.ErrDisposed)
}

func TestWriter_PersistsOnDispose(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	w := NewWriter(db, newManager(t), WriterConfig{BatchSize: 100, MaxWait: time.Hour})

	w.Add(resolvedItem("a"))
	w.Add(resolvedItem("b"))
	w.Add(objects.Stub("stub"))
	assert.Equal(t, 2, w.Pending())

	w.Dispose()
	w.Dispose()

	assert.Equal(t, 2, db.Len())
	_, err := db.GetItem(ctx, "a")
	assert.NoError(t, err)
}

func TestWriter_ReleasesWaitersBeforePersisting(t *testing.T) {
	def := newManager(t)
	db := blockingDB{Store: memory.New(), release: make(chan struct{})}
	w := NewWriter(db, def, WriterConfig{BatchSize: 1, MaxWait: time.Millisecond})

	f, known, err := def.Defer("a")
	require.NoError(t, err)
	require.False(t, known)

	w.Add(resolvedItem("a"))

	base, err := waitFuture(t, f)
	require.NoError(t, err)
	assert.Equal(t, "a", base.ID)
	assert.Zero(t, db.Len())

	close(db.release)
	w.Dispose()
	assert.Equal(t, 1, db.Len())
}

func TestWriter_ErrorReachesOnError(t *testing.T) {
	boom := errors.New("read-only")
	errs := make(chan error, 1)
	w := NewWriter(failingDB{err: boom}, newManager(t), WriterConfig{
		BatchSize: 1,
		OnError:   func(err error) { errs <- err },
	})
	defer w.Dispose()

	w.Add(resolvedItem("a"))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "cache write")
	case <-time.After(2 * time.Second):
		t.Fatal("write error not reported")
	}
}
