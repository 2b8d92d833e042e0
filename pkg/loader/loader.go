// Package loader walks an object graph from its root, serving objects from
// the local cache when possible and downloading the rest.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/internal/telemetry"
	"github.com/marmos91/objectloader/pkg/cache"
	"github.com/marmos91/objectloader/pkg/deferment"
	"github.com/marmos91/objectloader/pkg/downloader"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/objects"
	"github.com/marmos91/objectloader/pkg/store"
	"github.com/marmos91/objectloader/pkg/store/memory"
)

// Loader streams the objects reachable from one root.
type Loader struct {
	rootID    string
	sessionID string
	logCtx    *logger.LogContext

	db         store.Database
	deferments deferment.Deferment
	downloader downloader.Downloader
	reader     *cache.Reader
	writer     *cache.Writer
	metrics    metrics.LoaderMetrics

	inbox    *inbox
	iterated atomic.Bool

	// walking holds the ids requested by the traversal. Download failures
	// of other ids only fail their GetObject callers.
	walkMu  sync.Mutex
	walking map[string]struct{}

	rootMu   sync.Mutex
	rootItem *objects.Item

	dlOnce sync.Once

	failMu  sync.Mutex
	failErr error
	failed  chan struct{} // closed with the first failure
	cancel  context.CancelCauseFunc

	disposeOnce sync.Once
}

// New creates a Loader from fully specified options.
func New(opts Options) (*Loader, error) {
	if opts.RootID == "" {
		return nil, ErrNoRoot
	}
	if opts.Downloader == nil {
		return nil, errors.New("loader: downloader is required")
	}
	if opts.Database == nil {
		opts.Database = memory.New()
	}
	if opts.Deferment == nil {
		cfg := deferment.DefaultConfig()
		cfg.Metrics = opts.Metrics
		m, err := deferment.NewManager(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create deferment manager: %w", err)
		}
		opts.Deferment = m
	}
	if opts.Reader.Metrics == nil {
		opts.Reader.Metrics = opts.Metrics
	}
	if opts.Writer.Metrics == nil {
		opts.Writer.Metrics = opts.Metrics
	}

	sessionID := uuid.NewString()
	l := &Loader{
		rootID:     opts.RootID,
		sessionID:  sessionID,
		logCtx:     logger.NewLogContext(sessionID).WithRoot(opts.StreamID, opts.RootID),
		db:         opts.Database,
		deferments: opts.Deferment,
		downloader: opts.Downloader,
		metrics:    opts.Metrics,
		inbox:      newInbox(),
		walking:    make(map[string]struct{}),
		failed:     make(chan struct{}),
	}

	readerCfg := opts.Reader
	readerCfg.OnError = l.chainError(opts.Reader.OnError)
	writerCfg := opts.Writer
	writerCfg.OnError = l.chainError(opts.Writer.OnError)

	l.reader = cache.NewReader(l.db, l.deferments, l.onCacheLookup, readerCfg)
	l.writer = cache.NewWriter(l.db, l.deferments, writerCfg)

	logger.Debug("Loader created",
		logger.KeySessionID, sessionID,
		logger.RootID(opts.RootID),
		logger.KeyStreamID, opts.StreamID)
	return l, nil
}

// NewFromObjects creates an offline Loader over objs. The first object is
// the root.
func NewFromObjects(objs []*objects.Base, opts ...Option) (*Loader, error) {
	if len(objs) == 0 || objs[0] == nil {
		return nil, ErrNoRoot
	}

	index := make(map[string]*objects.Base, len(objs))
	for _, b := range objs {
		if b != nil {
			index[b.ID] = b
		}
	}

	o := Options{
		RootID:     objs[0].ID,
		Downloader: downloader.NewMemory(objs[0].ID, index),
		Deferment:  deferment.NewMemoryOnly(index),
		Reader:     cache.DefaultReaderConfig(),
		Writer:     cache.DefaultWriterConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return New(o)
}

// NewFromJSON creates an offline Loader from a JSON array of objects. The
// first object is the root.
func NewFromJSON(data string, opts ...Option) (*Loader, error) {
	objs, err := objects.ParseBaseArray(data)
	if err != nil {
		return nil, err
	}
	return NewFromObjects(objs, opts...)
}

// NewFromServer creates a Loader that downloads from a Speckle server.
func NewFromServer(server ServerOptions, opts ...Option) (*Loader, error) {
	dl := server.Download
	dl.ServerURL = server.ServerURL
	dl.StreamID = server.StreamID
	dl.ObjectID = server.ObjectID
	dl.Token = server.Token
	dl.Headers = server.Headers

	o := Options{
		RootID:   server.ObjectID,
		StreamID: server.StreamID,
		Reader:   cache.DefaultReaderConfig(),
		Writer:   cache.DefaultWriterConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	dl.Metrics = o.Metrics
	o.Downloader = downloader.NewServer(dl)
	return New(o)
}

// SessionID identifies this loader in logs and traces.
func (l *Loader) SessionID() string {
	return l.sessionID
}

// RootItem returns the root object, from the cache when present, otherwise
// downloaded and queued for caching. A missing root yields ErrNoRoot.
func (l *Loader) RootItem(ctx context.Context) (item *objects.Item, err error) {
	l.rootMu.Lock()
	defer l.rootMu.Unlock()

	if l.rootItem != nil {
		return l.rootItem, nil
	}

	ctx = l.withLogContext(ctx)
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanLoaderRoot,
		telemetry.SessionID(l.sessionID), telemetry.RootID(l.rootID))
	defer func() { telemetry.EndSpan(span, err) }()

	cached, err := l.db.GetItem(ctx, l.rootID)
	switch {
	case err == nil && cached.Resolved():
		logger.DebugCtx(ctx, "Root object found in cache")
		l.rootItem = cached
		return cached, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("read root from cache: %w", err)
	}

	downloaded, err := l.downloader.DownloadSingle(ctx)
	if err != nil {
		return nil, fmt.Errorf("download root %s: %w", l.rootID, err)
	}
	if downloaded == nil || !downloaded.Resolved() {
		return nil, ErrNoRoot
	}

	logger.DebugCtx(ctx, "Root object downloaded", logger.KeySize, downloaded.Size)
	l.writer.Add(*downloaded)
	l.rootItem = downloaded
	return downloaded, nil
}

// TotalObjectCount returns the number of objects reachable from the root,
// the root included. The root closure lists every descendant.
func (l *Loader) TotalObjectCount(ctx context.Context) (int, error) {
	root, err := l.RootItem(ctx)
	if err != nil {
		return 0, err
	}
	return root.Base.ClosureLen() + 1, nil
}

// GetObject resolves a single object: from memory or the cache first, then
// from the downloader. A download that leaves id unresolved fails this call
// only; a running or later traversal is unaffected.
func (l *Loader) GetObject(ctx context.Context, id string) (*objects.Base, error) {
	ctx = l.withLogContext(ctx)
	l.ensureDownloader(ctx)

	f, err := l.reader.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	select {
	case <-f.Done():
	case <-l.failed:
		if !f.Settled() {
			return nil, l.failure()
		}
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
	base, err := f.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	return base, nil
}

// Dispose stops every component and releases the database. Queued cache
// writes are flushed first. Safe to call more than once.
func (l *Loader) Dispose() error {
	var err error
	l.disposeOnce.Do(func() {
		l.fail(ErrDisposed)

		// The reader flushes its queued lookups into the downloader.
		l.reader.Dispose()
		l.downloader.Dispose()
		l.writer.Dispose()
		l.deferments.Dispose()
		err = l.db.Dispose()

		logger.Debug("Loader disposed", logger.KeySessionID, l.sessionID, logger.RootID(l.rootID))
	})
	return err
}

// ensureDownloader starts the download pool, sized by the expected object
// count when the root is available.
func (l *Loader) ensureDownloader(ctx context.Context) {
	l.dlOnce.Do(func() {
		total, err := l.TotalObjectCount(ctx)
		if err != nil {
			logger.WarnCtx(ctx, "Object count unavailable, using a single download worker", logger.Err(err))
			total = 1
		}
		l.downloader.Initialize(l.onDownloaded, total, l.onDownloadError)
	})
}

// onCacheLookup receives every cache read result. Misses go to the
// downloader.
func (l *Loader) onCacheLookup(item objects.Item) {
	if !item.Resolved() {
		l.downloader.Add(item.BaseID)
		return
	}
	l.inbox.push(item)
}

// onDownloaded caches each downloaded object, releasing its waiters.
func (l *Loader) onDownloaded(item objects.Item) {
	l.writer.Add(item)
	l.inbox.push(item)
}

// onDownloadError settles the futures of the ids a download left without a
// result. The traversal fails only when it asked for one of them.
func (l *Loader) onDownloadError(err error) {
	ids := downloader.FailedIDs(err)
	for _, id := range ids {
		l.deferments.Reject(id, err)
	}
	if len(ids) == 0 || l.walks(ids) {
		l.fail(err)
		return
	}
	logger.Warn("Object lookup failed", logger.KeySessionID, l.sessionID, logger.KeyCount, len(ids), logger.Err(err))
}

// track marks ids as requested by the traversal.
func (l *Loader) track(ids []string) {
	l.walkMu.Lock()
	defer l.walkMu.Unlock()
	for _, id := range ids {
		l.walking[id] = struct{}{}
	}
}

func (l *Loader) walks(ids []string) bool {
	l.walkMu.Lock()
	defer l.walkMu.Unlock()
	for _, id := range ids {
		if _, ok := l.walking[id]; ok {
			return true
		}
	}
	return false
}

func (l *Loader) chainError(next func(error)) func(error) {
	return func(err error) {
		if next != nil {
			next(err)
		}
		l.fail(err)
	}
}

// fail records the first asynchronous failure and interrupts the running
// traversal.
func (l *Loader) fail(err error) {
	l.failMu.Lock()
	if l.failErr == nil {
		l.failErr = err
		close(l.failed)
	}
	cancel := l.cancel
	l.failMu.Unlock()

	if cancel != nil {
		cancel(err)
	}
	if !errors.Is(err, ErrDisposed) {
		logger.Error("Loader failure", logger.KeySessionID, l.sessionID, logger.Err(err))
	}
}

func (l *Loader) failure() error {
	l.failMu.Lock()
	defer l.failMu.Unlock()
	return l.failErr
}

// attach installs cancel as the target of later failures. It returns the
// failure recorded so far, if any.
func (l *Loader) attach(cancel context.CancelCauseFunc) error {
	l.failMu.Lock()
	defer l.failMu.Unlock()
	l.cancel = cancel
	return l.failErr
}

func (l *Loader) withLogContext(ctx context.Context) context.Context {
	if logger.FromContext(ctx) != nil {
		return ctx
	}
	return logger.WithContext(ctx, l.logCtx)
}
