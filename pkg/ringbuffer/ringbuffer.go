// Package ringbuffer implements a fixed-capacity byte ring shared by exactly
// two goroutines (one producer, one consumer), a length-framed message queue
// on top of it, and typed string/item codecs.
//
// The ring is the only structure the loader's coordinating goroutine and its
// storage worker share: messages cross it as copied bytes, never as shared
// object graphs.
package ringbuffer

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// MinCapacity is the smallest usable ring: one data byte plus the marker slot.
const MinCapacity = 2

// ErrInvalidCapacity is returned for rings smaller than MinCapacity.
var ErrInvalidCapacity = errors.New("ring buffer capacity too small")

// RingBuffer is a circular byte store with atomic cursors.
//
// One slot is kept free to tell a full ring from an empty one, so a ring of
// capacity C holds at most C-1 bytes. Push and Shift block on a signal
// channel, never by polling, and every wait is bounded by its timeout.
type RingBuffer struct {
	buf      []byte
	capacity uint32

	writeIdx atomic.Uint32 // next byte to write, owned by the producer
	readIdx  atomic.Uint32 // next byte to read, owned by the consumer

	dataReady  chan struct{} // producer -> consumer
	spaceReady chan struct{} // consumer -> producer
}

// New creates a ring with the given capacity in bytes.
func New(capacity int) (*RingBuffer, error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &RingBuffer{
		buf:        make([]byte, capacity),
		capacity:   uint32(capacity),
		dataReady:  make(chan struct{}, 1),
		spaceReady: make(chan struct{}, 1),
	}, nil
}

// Capacity returns the ring size in bytes, marker slot included.
func (r *RingBuffer) Capacity() int {
	return int(r.capacity)
}

func (r *RingBuffer) length(w, rd uint32) uint32 {
	if w >= rd {
		return w - rd
	}
	return r.capacity - (rd - w)
}

// Len returns the number of buffered bytes.
func (r *RingBuffer) Len() int {
	return int(r.length(r.writeIdx.Load(), r.readIdx.Load()))
}

// Available returns the number of bytes that can be pushed right now.
func (r *RingBuffer) Available() int {
	return int(r.capacity) - 1 - r.Len()
}

// IsEmpty reports whether no bytes are buffered.
func (r *RingBuffer) IsEmpty() bool {
	return r.writeIdx.Load() == r.readIdx.Load()
}

// IsFull reports whether no byte can be pushed.
func (r *RingBuffer) IsFull() bool {
	return (r.writeIdx.Load()+1)%r.capacity == r.readIdx.Load()
}

// Push writes all of data or nothing. It waits up to timeout for enough free
// space; timeout <= 0 tries once. Data longer than Capacity()-1 never fits
// and fails immediately.
func (r *RingBuffer) Push(data []byte, timeout time.Duration) bool {
	n := uint32(len(data))
	if n == 0 {
		return true
	}
	if n > r.capacity-1 {
		return false
	}

	var deadline <-chan time.Time
	for {
		w, rd := r.writeIdx.Load(), r.readIdx.Load()
		if n <= r.capacity-1-r.length(w, rd) {
			first := min(n, r.capacity-w)
			copy(r.buf[w:w+first], data[:first])
			copy(r.buf, data[first:])
			r.writeIdx.Store((w + n) % r.capacity)
			notify(r.dataReady)
			return true
		}

		if deadline == nil {
			if timeout <= 0 {
				return false
			}
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			deadline = timer.C
		}
		select {
		case <-r.spaceReady:
		case <-deadline:
			return false
		}
	}
}

// Read fills dst from the ring, waiting up to timeout until len(dst) bytes
// are buffered. It consumes nothing on failure.
func (r *RingBuffer) Read(dst []byte, timeout time.Duration) bool {
	n := uint32(len(dst))
	if n == 0 {
		return true
	}
	if n > r.capacity-1 {
		return false
	}

	var deadline <-chan time.Time
	for {
		w, rd := r.writeIdx.Load(), r.readIdx.Load()
		if r.length(w, rd) >= n {
			first := min(n, r.capacity-rd)
			copy(dst[:first], r.buf[rd:rd+first])
			copy(dst[first:], r.buf[:n-first])
			r.readIdx.Store((rd + n) % r.capacity)
			notify(r.spaceReady)
			return true
		}

		if deadline == nil {
			if timeout <= 0 {
				return false
			}
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			deadline = timer.C
		}
		select {
		case <-r.dataReady:
		case <-deadline:
			return false
		}
	}
}

// Shift removes and returns n bytes, or reports false if they did not become
// available within timeout.
func (r *RingBuffer) Shift(n int, timeout time.Duration) ([]byte, bool) {
	out := make([]byte, n)
	if !r.Read(out, timeout) {
		return nil, false
	}
	return out, true
}

// notify leaves a wake-up token for the peer without ever blocking. A stale
// token only costs the peer one extra look at the cursors.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
