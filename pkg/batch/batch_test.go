package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects processed batches.
type recorder struct {
	mu      sync.Mutex
	batches [][]string
	calls   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{calls: make(chan struct{}, 64)}
}

func (r *recorder) process(_ context.Context, batch []string) error {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), batch...))
	r.mu.Unlock()
	r.calls <- struct{}{}
	return nil
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func waitCalls(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for batch %d of %d", i+1, n)
		}
	}
}

func TestFlushOnBatchSize(t *testing.T) {
	rec := newRecorder()
	q := New(Config[string]{Name: "size", BatchSize: 3, MaxWait: time.Hour, Process: rec.process})
	defer q.Dispose()

	q.Add("a", "A")
	q.Add("b", "B")
	q.Add("c", "C")

	waitCalls(t, rec.calls, 1)
	assert.Equal(t, [][]string{{"A", "B", "C"}}, rec.snapshot())
	assert.Zero(t, q.Count())
}

func TestFlushOnMaxWait(t *testing.T) {
	rec := newRecorder()
	q := New(Config[string]{Name: "wait", BatchSize: 100, MaxWait: 20 * time.Millisecond, Process: rec.process})
	defer q.Dispose()

	start := time.Now()
	q.AddAll([]string{"a", "b"}, []string{"A", "B"})

	waitCalls(t, rec.calls, 1)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, [][]string{{"A", "B"}}, rec.snapshot())
}

func TestLastWriteWinsKeepsPosition(t *testing.T) {
	rec := newRecorder()
	q := New(Config[string]{Name: "lww", BatchSize: 3, MaxWait: time.Hour, Process: rec.process})
	defer q.Dispose()

	q.Add("a", "A1")
	q.Add("b", "B")
	q.Add("a", "A2")

	v, ok := q.Get("a")
	require.True(t, ok)
	assert.Equal(t, "A2", v)
	assert.Equal(t, 2, q.Count())

	q.Add("c", "C")
	waitCalls(t, rec.calls, 1)
	assert.Equal(t, [][]string{{"A2", "B", "C"}}, rec.snapshot())

	_, ok = q.Get("a")
	assert.False(t, ok)
}

func TestOversizedAddAllSplitsIntoBatches(t *testing.T) {
	rec := newRecorder()
	q := New(Config[string]{Name: "split", BatchSize: 4, MaxWait: time.Hour, Process: rec.process})
	defer q.Dispose()

	keys := make([]string, 10)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%02d", i)
	}
	q.AddAll(keys, keys)

	waitCalls(t, rec.calls, 2)
	got := rec.snapshot()
	assert.Equal(t, keys[0:4], got[0])
	assert.Equal(t, keys[4:8], got[1])
	assert.Equal(t, 2, q.Count())
}

func TestProcessErrorDoesNotStopQueue(t *testing.T) {
	boom := errors.New("boom")
	var (
		calls  atomic.Int32
		errs   = make(chan error, 4)
		second = make(chan []string, 1)
	)
	q := New(Config[string]{
		Name:      "errors",
		BatchSize: 1,
		MaxWait:   time.Hour,
		Process: func(_ context.Context, batch []string) error {
			if calls.Add(1) == 1 {
				return boom
			}
			second <- batch
			return nil
		},
		OnError: func(err error) { errs <- err },
	})
	defer q.Dispose()

	q.Add("a", "A")
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("OnError not called")
	}

	q.Add("b", "B")
	select {
	case batch := <-second:
		assert.Equal(t, []string{"B"}, batch)
	case <-time.After(2 * time.Second):
		t.Fatal("second batch not processed")
	}
}

func TestProcessPanicIsReported(t *testing.T) {
	errs := make(chan error, 1)
	q := New(Config[string]{
		Name:      "panic",
		BatchSize: 1,
		Process:   func(context.Context, []string) error { panic("bad batch") },
		OnError:   func(err error) { errs <- err },
	})
	defer q.Dispose()

	q.Add("a", "A")
	select {
	case err := <-errs:
		var pe *PanicError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "panic", pe.Queue)
	case <-time.After(2 * time.Second):
		t.Fatal("panic not reported")
	}
}

func TestBatchesNeverOverlap(t *testing.T) {
	var (
		active  atomic.Int32
		overlap atomic.Bool
		total   atomic.Int32
	)
	q := New(Config[int]{
		Name:      "serial",
		BatchSize: 5,
		MaxWait:   time.Millisecond,
		Process: func(_ context.Context, batch []int) error {
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			total.Add(int32(len(batch)))
			active.Add(-1)
			return nil
		},
	})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				q.Add(fmt.Sprintf("%d-%d", g, i), i)
			}
		}(g)
	}
	wg.Wait()
	q.Dispose()

	assert.False(t, overlap.Load())
	assert.EqualValues(t, 200, total.Load())
}

func TestDisposeFlushesPending(t *testing.T) {
	rec := newRecorder()
	q := New(Config[string]{Name: "dispose", BatchSize: 100, MaxWait: time.Hour, Process: rec.process})

	q.AddAll([]string{"a", "b"}, []string{"A", "B"})
	q.Dispose()

	assert.Equal(t, [][]string{{"A", "B"}}, rec.snapshot())
}

func TestDisposeIsIdempotent(t *testing.T) {
	q := New(Config[string]{Name: "empty"})

	assert.NotPanics(t, func() {
		q.Dispose()
		q.Dispose()
	})

	q.Add("late", "x")
	q.AddAll([]string{"later"}, []string{"y"})
	assert.Zero(t, q.Count())
}

func TestDefaults(t *testing.T) {
	q := New(Config[string]{})
	defer q.Dispose()

	assert.Equal(t, DefaultBatchSize, q.cfg.BatchSize)
	assert.Equal(t, DefaultMaxWait, q.cfg.MaxWait)
	assert.Equal(t, "batch", q.cfg.Name)
}
