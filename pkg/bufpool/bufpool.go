// Package bufpool provides a tiered pool of byte slices used for framing
// ring buffer messages and encoding cache records.
//
// Each tier is a sync.Pool of fixed-size buffers. A request is served from
// the smallest tier that fits; requests larger than the largest tier are
// allocated directly and never pooled, so occasional huge objects do not
// pin memory.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sort"
	"sync"
)

// Default tier sizes.
const (
	// DefaultSmallSize fits framed ids and stub items (1KB)
	DefaultSmallSize = 1 << 10

	// DefaultMediumSize fits a typical decoded object (16KB)
	DefaultMediumSize = 16 << 10

	// DefaultLargeSize fits a full ring buffer frame (1MB)
	DefaultLargeSize = 1 << 20
)

type tier struct {
	size int
	pool sync.Pool
}

// Pool manages a set of byte slice pools organized by size class.
type Pool struct {
	tiers []*tier
}

// Config holds the tier sizes of a pool. Zero values take the defaults.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

// NewPool creates a buffer pool. A nil config uses the defaults.
func NewPool(cfg *Config) *Pool {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.SmallSize > 0 {
			c.SmallSize = cfg.SmallSize
		}
		if cfg.MediumSize > 0 {
			c.MediumSize = cfg.MediumSize
		}
		if cfg.LargeSize > 0 {
			c.LargeSize = cfg.LargeSize
		}
	}

	sizes := []int{c.SmallSize, c.MediumSize, c.LargeSize}
	sort.Ints(sizes)

	p := &Pool{}
	for _, size := range sizes {
		if len(p.tiers) > 0 && p.tiers[len(p.tiers)-1].size == size {
			continue
		}
		t := &tier{size: size}
		t.pool.New = func() any {
			buf := make([]byte, t.size)
			return &buf
		}
		p.tiers = append(p.tiers, t)
	}
	return p
}

// Get returns a slice of length size. Its capacity may be larger.
// Callers should hand it back with Put once done.
func (p *Pool) Get(size int) []byte {
	for _, t := range p.tiers {
		if size <= t.size {
			buf := *(t.pool.Get().(*[]byte))
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns a buffer obtained from Get. Buffers whose capacity does not
// match a tier are left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for _, t := range p.tiers {
		if cap(buf) == t.size {
			full := buf[:cap(buf)]
			t.pool.Put(&full)
			return
		}
	}
}

// MaxPooledSize returns the size of the largest tier.
func (p *Pool) MaxPooledSize() int {
	return p.tiers[len(p.tiers)-1].size
}

var globalPool = NewPool(nil)

// Get returns a buffer from the package-level pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the package-level pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
