package ringbuffer

import (
	"encoding/binary"
	"time"

	"github.com/marmos91/objectloader/pkg/bufpool"
)

// HeaderSize is the length prefix written before every message.
const HeaderSize = 4

// Queue frames variable-length messages on a RingBuffer. Header and payload
// go in with a single Push, so the consumer never sees half a message.
type Queue struct {
	rb *RingBuffer
}

// NewQueue creates a message queue over a ring of capacity bytes.
func NewQueue(capacity int) (*Queue, error) {
	rb, err := New(capacity)
	if err != nil {
		return nil, err
	}
	return &Queue{rb: rb}, nil
}

// MaxMessageSize is the largest payload that fits in an empty queue.
func (q *Queue) MaxMessageSize() int {
	return q.rb.Capacity() - 1 - HeaderSize
}

// Enqueue writes one message. It returns false, leaving the queue untouched,
// when the framed message cannot fit in the free space within timeout.
func (q *Queue) Enqueue(data []byte, timeout time.Duration) bool {
	if len(data) > q.MaxMessageSize() {
		return false
	}

	frame := bufpool.Get(HeaderSize + len(data))
	defer bufpool.Put(frame)

	binary.LittleEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[HeaderSize:], data)
	return q.rb.Push(frame, timeout)
}

// EnqueueMany writes messages in order until one does not fit and returns
// how many were written. The timeout covers the whole call.
func (q *Queue) EnqueueMany(items [][]byte, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for i, item := range items {
		if !q.Enqueue(item, time.Until(deadline)) {
			return i
		}
	}
	return len(items)
}

// Dequeue returns the next message, or (nil, false) when nothing arrived
// within timeout.
func (q *Queue) Dequeue(timeout time.Duration) ([]byte, bool) {
	var hdr [HeaderSize]byte
	if !q.rb.Read(hdr[:], timeout) {
		return nil, false
	}

	n := binary.LittleEndian.Uint32(hdr[:])
	payload := make([]byte, n)
	// Header and payload were pushed together, so the payload is already here.
	if !q.rb.Read(payload, 0) {
		return nil, false
	}
	return payload, true
}

// IsEmpty reports whether no message is buffered.
func (q *Queue) IsEmpty() bool {
	return q.rb.IsEmpty()
}

// IsFull reports whether the underlying ring has no free byte.
func (q *Queue) IsFull() bool {
	return q.rb.IsFull()
}

// Len returns the number of buffered bytes, headers included.
func (q *Queue) Len() int {
	return q.rb.Len()
}
