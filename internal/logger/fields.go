package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging. Use them consistently so
// log lines from the reader, writer, downloader and traversal can be joined.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Load session
	KeySessionID = "session_id"
	KeyStreamID  = "stream_id"
	KeyRootID    = "root_id"
	KeyServerURL = "server_url"

	// Objects
	KeyObjectID    = "object_id"
	KeySpeckleType = "speckle_type"
	KeySize        = "size"
	KeyChunks      = "chunks"

	// Queues and batches
	KeyQueue     = "queue"
	KeyBatchSize = "batch_size"
	KeyPending   = "pending"
	KeyCount     = "count"
	KeyTotal     = "total"
	KeyCapacity  = "capacity"
	KeyPayload   = "payload"

	// Cache and deferment
	KeyStore     = "store"
	KeyHits      = "hits"
	KeyMisses    = "misses"
	KeyRequests  = "requests"
	KeyEvicted   = "evicted"
	KeyDeferment = "deferment"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeySource     = "source" // cache, server, memory
	KeyOperation  = "operation"
	KeyStatus     = "status"
	KeyURL        = "url"
)

// Err returns a slog.Attr for an error. A nil error yields an empty attr.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ObjectID returns a slog.Attr for an object id.
func ObjectID(id string) slog.Attr {
	return slog.String(KeyObjectID, id)
}

// RootID returns a slog.Attr for the traversal root id.
func RootID(id string) slog.Attr {
	return slog.String(KeyRootID, id)
}

// Queue returns a slog.Attr naming a batching or ring queue.
func Queue(name string) slog.Attr {
	return slog.String(KeyQueue, name)
}

// BatchSize returns a slog.Attr for the number of entries in a batch.
func BatchSize(n int) slog.Attr {
	return slog.Int(KeyBatchSize, n)
}

// DurationMs returns a slog.Attr for an elapsed time in milliseconds.
func DurationMs(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMs, float64(d.Microseconds())/1000.0)
}

// Truncate shortens s to at most n bytes for diagnostic output.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
