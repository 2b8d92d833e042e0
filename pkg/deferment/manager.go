package deferment

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/objects"
)

// Defaults used when a Config leaves fields unset.
const (
	DefaultTTL             = 60 * time.Second
	DefaultMaxEntries      = 50000
	DefaultMemoryCacheSize = 200 << 20

	// defaultObjectCost is charged to the memory cache for items of unknown size.
	defaultObjectCost = 1 << 10

	// evictionScan bounds how far eviction looks for a settled entry before
	// falling back to the least recently used one.
	evictionScan = 64
)

// Config configures a Manager.
type Config struct {
	// TTL is how long an entry may go unaccessed before the sweeper drops it.
	// The sweeper also runs once per TTL.
	TTL time.Duration

	// MaxEntries caps the number of tracked ids.
	MaxEntries int

	// MemoryCacheSize is the cost budget, in bytes, of the decoded object cache.
	MemoryCacheSize int64

	// Metrics is optional.
	Metrics metrics.LoaderMetrics
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		TTL:             DefaultTTL,
		MaxEntries:      DefaultMaxEntries,
		MemoryCacheSize: DefaultMemoryCacheSize,
	}
}

type entry struct {
	future     *Future
	lastAccess time.Time
	requests   int
}

// Manager tracks one future per requested id, backed by a size-bounded
// in-memory cache of decoded objects.
type Manager struct {
	cfg   Config
	cache *ristretto.Cache[string, *objects.Base]
	now   func() time.Time

	mu            sync.Mutex
	entries       *orderedmap.OrderedMap[string, *entry] // least recently accessed first
	totalRequests int
	disposed      bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewManager creates a Manager and starts its sweeper.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MemoryCacheSize <= 0 {
		cfg.MemoryCacheSize = DefaultMemoryCacheSize
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *objects.Base]{
		NumCounters: max(int64(cfg.MaxEntries)*10, 1e4),
		MaxCost:     cfg.MemoryCacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	m := &Manager{
		cfg:     cfg,
		cache:   cache,
		now:     time.Now,
		entries: orderedmap.New[string, *entry](),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go m.sweepLoop()
	return m, nil
}

// Defer returns the future for id. An id already tracked gets its access
// time refreshed and shares the existing future. Otherwise the memory cache
// is consulted once; a miss registers a new pending future.
func (m *Manager) Defer(id string) (*Future, bool, error) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil, false, ErrDisposed
	}

	m.totalRequests++
	if e, ok := m.entries.Get(id); ok {
		e.lastAccess = m.now()
		e.requests++
		_ = m.entries.MoveToBack(id)
		m.mu.Unlock()
		metrics.RecordDeferment(m.cfg.Metrics, metrics.DefermentCollapsed)
		return e.future, true, nil
	}

	if base, ok := m.cache.Get(id); ok {
		m.mu.Unlock()
		metrics.RecordDeferment(m.cfg.Metrics, metrics.DefermentCached)
		return Resolved(id, base), true, nil
	}

	f := newFuture(id)
	m.entries.Set(id, &entry{future: f, lastAccess: m.now(), requests: 1})
	evicted := m.evictOverflow()
	n := m.entries.Len()
	m.mu.Unlock()

	m.rejectAll(evicted, ErrEvicted, metrics.DefermentEvicted)
	metrics.RecordDeferment(m.cfg.Metrics, metrics.DefermentCreated)
	metrics.SetPendingDeferments(m.cfg.Metrics, n)
	return f, false, nil
}

// Undefer settles the future for item.BaseID. A resolved item is always
// offered to the memory cache, and is tracked so later Defer calls find it
// even if the cache declines it.
func (m *Manager) Undefer(item objects.Item) {
	if item.Base != nil {
		m.cache.Set(item.BaseID, item.Base, cost(item))
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	e, ok := m.entries.Get(item.BaseID)
	if ok {
		e.lastAccess = m.now()
		_ = m.entries.MoveToBack(item.BaseID)
	} else {
		e = &entry{future: newFuture(item.BaseID), lastAccess: m.now()}
		m.entries.Set(item.BaseID, e)
	}
	evicted := m.evictOverflow()
	m.mu.Unlock()

	m.rejectAll(evicted, ErrEvicted, metrics.DefermentEvicted)
	if e.future.resolve(item.Base) && ok {
		metrics.RecordDeferment(m.cfg.Metrics, metrics.DefermentResolved)
	}
}

// Reject fails the pending future for id. Settled entries are left alone.
func (m *Manager) Reject(id string, err error) {
	m.mu.Lock()
	e, ok := m.entries.Get(id)
	if !ok || e.future.Settled() {
		m.mu.Unlock()
		return
	}
	m.entries.Delete(id)
	n := m.entries.Len()
	m.mu.Unlock()

	if e.future.reject(err) {
		metrics.RecordDeferment(m.cfg.Metrics, metrics.DefermentRejected)
	}
	metrics.SetPendingDeferments(m.cfg.Metrics, n)
}

// evictOverflow drops entries beyond MaxEntries, settled ones first. It
// returns the pending futures that were dropped. m.mu must be held.
func (m *Manager) evictOverflow() []*Future {
	var evicted []*Future
	for m.entries.Len() > m.cfg.MaxEntries {
		victim := m.entries.Oldest()
		scanned := 0
		for p := victim; p != nil && scanned < evictionScan; p = p.Next() {
			if p.Value.future.Settled() {
				victim = p
				break
			}
			scanned++
		}
		m.entries.Delete(victim.Key)
		if !victim.Value.future.Settled() {
			evicted = append(evicted, victim.Value.future)
		}
	}
	return evicted
}

func (m *Manager) rejectAll(futures []*Future, err error, event string) {
	for _, f := range futures {
		if f.reject(fmt.Errorf("%w: %s", err, f.ID())) {
			metrics.RecordDeferment(m.cfg.Metrics, event)
		}
	}
	if len(futures) > 0 {
		logger.Debug("Rejected deferred objects", logger.KeyCount, len(futures), logger.Err(err))
	}
}

func (m *Manager) sweepLoop() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.TTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

// sweep drops every entry not accessed within the TTL.
func (m *Manager) sweep() {
	m.mu.Lock()
	cutoff := m.now().Add(-m.cfg.TTL)
	var (
		expired []*Future
		dropped int
	)
	for p := m.entries.Oldest(); p != nil; {
		if p.Value.lastAccess.After(cutoff) {
			break
		}
		next := p.Next()
		if !p.Value.future.Settled() {
			expired = append(expired, p.Value.future)
		}
		m.entries.Delete(p.Key)
		dropped++
		p = next
	}
	n := m.entries.Len()
	m.mu.Unlock()

	if dropped > 0 {
		logger.Debug("Deferment sweep", logger.KeyEvicted, dropped, logger.KeyPending, n)
	}
	m.rejectAll(expired, ErrExpired, metrics.DefermentExpired)
	metrics.SetPendingDeferments(m.cfg.Metrics, n)
}

// RequestCount returns how many times id was deferred while tracked.
func (m *Manager) RequestCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries.Get(id); ok {
		return e.requests
	}
	return 0
}

// TotalRequests returns the number of Defer calls so far.
func (m *Manager) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalRequests
}

// Len returns the number of tracked ids.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}

// Dispose stops the sweeper, rejects pending futures with ErrDisposed and
// closes the memory cache. Safe to call more than once.
func (m *Manager) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true

	var pending []*Future
	for p := m.entries.Oldest(); p != nil; p = p.Next() {
		if !p.Value.future.Settled() {
			pending = append(pending, p.Value.future)
		}
	}
	m.entries = orderedmap.New[string, *entry]()
	m.mu.Unlock()

	close(m.stopCh)
	<-m.doneCh

	for _, f := range pending {
		f.reject(ErrDisposed)
	}
	m.cache.Close()
	metrics.SetPendingDeferments(m.cfg.Metrics, 0)
}

func cost(item objects.Item) int64 {
	if item.Size > 0 {
		return int64(item.Size)
	}
	return defaultObjectCost
}
