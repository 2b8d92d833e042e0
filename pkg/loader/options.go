package loader

import (
	"github.com/marmos91/objectloader/pkg/cache"
	"github.com/marmos91/objectloader/pkg/deferment"
	"github.com/marmos91/objectloader/pkg/downloader"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/store"
)

// Options configures a Loader.
type Options struct {
	// RootID is the object the traversal starts from. Required.
	RootID string

	// StreamID is only used to label logs and spans.
	StreamID string

	// Downloader fetches objects missing from the cache. Required.
	Downloader downloader.Downloader

	// Database is the persistent cache. Defaults to an in-memory store.
	Database store.Database

	// Deferment tracks objects requested through GetObject. Defaults to a
	// Manager with deferment.DefaultConfig.
	Deferment deferment.Deferment

	Reader cache.ReaderConfig
	Writer cache.WriterConfig

	// Metrics is optional.
	Metrics metrics.LoaderMetrics
}

// Option customizes the Options built by the New* constructors.
type Option func(*Options)

// WithDatabase replaces the default in-memory cache.
func WithDatabase(db store.Database) Option {
	return func(o *Options) { o.Database = db }
}

// WithDeferment replaces the default deferment manager.
func WithDeferment(d deferment.Deferment) Option {
	return func(o *Options) { o.Deferment = d }
}

// WithMetrics enables metrics collection.
func WithMetrics(m metrics.LoaderMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithReaderConfig tunes the cache read batches.
func WithReaderConfig(cfg cache.ReaderConfig) Option {
	return func(o *Options) { o.Reader = cfg }
}

// WithWriterConfig tunes the cache write batches.
func WithWriterConfig(cfg cache.WriterConfig) Option {
	return func(o *Options) { o.Writer = cfg }
}

// ServerOptions identifies a root object on a Speckle server.
type ServerOptions struct {
	ServerURL string
	StreamID  string
	ObjectID  string
	Token     string
	Headers   map[string]string

	// Download tunes the HTTP downloader. Its identity fields are filled
	// from the fields above.
	Download downloader.ServerOptions
}
