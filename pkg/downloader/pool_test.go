package downloader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolFillsBatchBeforeWait(t *testing.T) {
	var (
		mu      sync.Mutex
		batches [][]string
	)
	done := make(chan struct{})
	p := newPool([]int{3}, time.Hour, func(_ context.Context, b []string) error {
		mu.Lock()
		batches = append(batches, b)
		mu.Unlock()
		close(done)
		return nil
	}, nil)
	t.Cleanup(p.close)

	p.add("a")
	p.add("b")
	p.add("c")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("full batch was not processed")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"a", "b", "c"}}, batches)
}

func TestPoolFlushesPartialBatchAfterWait(t *testing.T) {
	got := make(chan []string, 1)
	p := newPool([]int{100}, 20*time.Millisecond, func(_ context.Context, b []string) error {
		got <- b
		return nil
	}, nil)
	t.Cleanup(p.close)

	p.add("a")
	select {
	case b := <-got:
		assert.Equal(t, []string{"a"}, b)
	case <-time.After(5 * time.Second):
		t.Fatal("partial batch was not processed")
	}
}

func TestPoolErrorKeepsWorkers(t *testing.T) {
	boom := errors.New("boom")
	errs := make(chan error, 4)
	done := make(chan []string, 4)
	p := newPool([]int{1}, time.Millisecond, func(_ context.Context, b []string) error {
		if b[0] == "bad" {
			return boom
		}
		done <- b
		return nil
	}, func(err error) { errs <- err })
	t.Cleanup(p.close)

	p.add("bad")
	select {
	case err := <-errs:
		require.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"bad"}, FailedIDs(err))
	case <-time.After(5 * time.Second):
		t.Fatal("error was not reported")
	}

	p.add("good")
	select {
	case b := <-done:
		assert.Equal(t, []string{"good"}, b)
	case <-time.After(5 * time.Second):
		t.Fatal("worker stopped after a failed batch")
	}
}

func TestPoolCloseWaitsForWorkers(t *testing.T) {
	p := newPool([]int{1, 1}, time.Millisecond, func(context.Context, []string) error {
		return nil
	}, nil)
	p.add("a")

	closed := make(chan struct{})
	go func() {
		p.close()
		p.close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("close did not return")
	}
}
