package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys used on loader spans.
const (
	AttrSessionID   = "loader.session_id"
	AttrServerURL   = "loader.server_url"
	AttrStreamID    = "loader.stream_id"
	AttrRootID      = "loader.root_id"
	AttrObjectID    = "object.id"
	AttrObjectCount = "object.count"
	AttrQueue       = "batch.queue"
	AttrBatchSize   = "batch.size"
	AttrStoreType   = "store.type"
	AttrCacheHits   = "cache.hits"
	AttrCacheMisses = "cache.misses"
	AttrBytes       = "io.bytes"
)

// Span names. Format: <component>.<operation>
const (
	SpanLoaderTraverse = "loader.traverse"
	SpanLoaderRoot     = "loader.root"
	SpanBatchProcess   = "batch.process"
	SpanCacheRead      = "cache.read_batch"
	SpanCacheWrite     = "cache.write_batch"
	SpanDownloadRoot   = "download.root"
	SpanDownloadBatch  = "download.batch"
	SpanWorkerGetAll   = "worker.get_all"
)

// SessionID returns an attribute for the loader session.
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// StreamID returns an attribute for the stream id.
func StreamID(id string) attribute.KeyValue {
	return attribute.String(AttrStreamID, id)
}

// RootID returns an attribute for the traversal root id.
func RootID(id string) attribute.KeyValue {
	return attribute.String(AttrRootID, id)
}

// ObjectID returns an attribute for a single object id.
func ObjectID(id string) attribute.KeyValue {
	return attribute.String(AttrObjectID, id)
}

// ObjectCount returns an attribute for a number of objects.
func ObjectCount(n int) attribute.KeyValue {
	return attribute.Int(AttrObjectCount, n)
}

// Queue returns an attribute naming a batching queue.
func Queue(name string) attribute.KeyValue {
	return attribute.String(AttrQueue, name)
}

// BatchSize returns an attribute for a batch length.
func BatchSize(n int) attribute.KeyValue {
	return attribute.Int(AttrBatchSize, n)
}

// StoreType returns an attribute for the cache backend type.
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// CacheResult returns hit and miss attributes of a bulk lookup.
func CacheResult(hits, misses int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrCacheHits, hits),
		attribute.Int(AttrCacheMisses, misses),
	}
}

// Bytes returns an attribute for a payload size.
func Bytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}
