package ringbuffer

import (
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/objects"
)

// maxDiagnosticBytes bounds how much of a bad payload is written to the log.
const maxDiagnosticBytes = 256

var errInvalidUTF8 = errors.New("payload is not valid UTF-8")

// Codec converts messages to and from their byte form.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// StringCodec carries UTF-8 text.
type StringCodec struct{}

func (StringCodec) Encode(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, errInvalidUTF8
	}
	return []byte(s), nil
}

func (StringCodec) Decode(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errInvalidUTF8
	}
	return string(data), nil
}

// ItemCodec carries objects.Item as JSON.
type ItemCodec struct{}

func (ItemCodec) Encode(item objects.Item) ([]byte, error) {
	return json.Marshal(item)
}

func (ItemCodec) Decode(data []byte) (objects.Item, error) {
	var item objects.Item
	err := json.Unmarshal(data, &item)
	return item, err
}

// MessageQueue layers a Codec on a Queue. Messages that fail to encode or
// decode are logged and dropped one at a time; the rest of the batch goes on.
type MessageQueue[T any] struct {
	name    string
	queue   *Queue
	codec   Codec[T]
	metrics metrics.LoaderMetrics
}

// StringQueue is a MessageQueue of UTF-8 strings.
type StringQueue = MessageQueue[string]

// ItemQueue is a MessageQueue of objects.Item.
type ItemQueue = MessageQueue[objects.Item]

// NewMessageQueue wraps q with codec. m may be nil.
func NewMessageQueue[T any](name string, q *Queue, codec Codec[T], m metrics.LoaderMetrics) *MessageQueue[T] {
	return &MessageQueue[T]{name: name, queue: q, codec: codec, metrics: m}
}

// NewStringQueue wraps q with the UTF-8 codec.
func NewStringQueue(name string, q *Queue, m metrics.LoaderMetrics) *StringQueue {
	return NewMessageQueue[string](name, q, StringCodec{}, m)
}

// NewItemQueue wraps q with the JSON item codec.
func NewItemQueue(name string, q *Queue, m metrics.LoaderMetrics) *ItemQueue {
	return NewMessageQueue[objects.Item](name, q, ItemCodec{}, m)
}

// Enqueue writes msgs in order and returns how many were consumed. A message
// that cannot be encoded, or that is larger than the queue could ever hold,
// is dropped and still counts as consumed. The call stops at the first
// message that does not fit within timeout.
func (mq *MessageQueue[T]) Enqueue(msgs []T, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for i, msg := range msgs {
		data, err := mq.codec.Encode(msg)
		if err != nil {
			logger.Warn("Dropping message that failed to encode",
				logger.Queue(mq.name), logger.Err(err))
			metrics.RecordTransportDrop(mq.metrics, mq.name, "encode")
			continue
		}
		if len(data) > mq.queue.MaxMessageSize() {
			logger.Warn("Dropping message larger than queue capacity",
				logger.Queue(mq.name),
				logger.KeySize, len(data),
				logger.KeyCapacity, mq.queue.MaxMessageSize())
			metrics.RecordTransportDrop(mq.metrics, mq.name, "oversize")
			continue
		}
		if !mq.queue.Enqueue(data, time.Until(deadline)) {
			return i
		}
	}
	return len(msgs)
}

// Dequeue returns up to maxItems messages. It waits up to timeout for the first
// one and then only takes messages that are already buffered.
func (mq *MessageQueue[T]) Dequeue(maxItems int, timeout time.Duration) []T {
	var out []T
	wait := timeout
	for len(out) < maxItems {
		data, ok := mq.queue.Dequeue(wait)
		if !ok {
			break
		}
		wait = 0

		v, err := mq.codec.Decode(data)
		if err != nil {
			logger.Warn("Dropping message that failed to decode",
				logger.Queue(mq.name),
				logger.Err(err),
				logger.KeyPayload, logger.Truncate(string(data), maxDiagnosticBytes))
			metrics.RecordTransportDrop(mq.metrics, mq.name, "decode")
			continue
		}
		out = append(out, v)
	}
	return out
}

// Raw exposes the underlying framed queue.
func (mq *MessageQueue[T]) Raw() *Queue {
	return mq.queue
}
