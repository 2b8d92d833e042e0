package bufpool

import (
	"sync"
	"testing"
)

func TestGetReturnsRequestedLength(t *testing.T) {
	for _, size := range []int{0, 1, 100, DefaultSmallSize, DefaultSmallSize + 1, DefaultMediumSize, DefaultLargeSize} {
		buf := Get(size)
		if len(buf) != size {
			t.Errorf("Get(%d) len = %d", size, len(buf))
		}
		Put(buf)
	}
}

func TestTierSelection(t *testing.T) {
	p := NewPool(nil)

	tests := []struct {
		size    int
		wantCap int
	}{
		{10, DefaultSmallSize},
		{DefaultSmallSize, DefaultSmallSize},
		{DefaultSmallSize + 1, DefaultMediumSize},
		{DefaultMediumSize + 1, DefaultLargeSize},
		{DefaultLargeSize + 1, DefaultLargeSize + 1},
	}
	for _, tt := range tests {
		buf := p.Get(tt.size)
		if cap(buf) != tt.wantCap {
			t.Errorf("Get(%d) cap = %d, want %d", tt.size, cap(buf), tt.wantCap)
		}
		p.Put(buf)
	}
}

func TestCustomPool(t *testing.T) {
	p := NewPool(&Config{SmallSize: 64, MediumSize: 64, LargeSize: 256})

	if got := p.MaxPooledSize(); got != 256 {
		t.Fatalf("MaxPooledSize = %d, want 256", got)
	}
	if len(p.tiers) != 2 {
		t.Fatalf("duplicate tier sizes should collapse, got %d tiers", len(p.tiers))
	}

	buf := p.Get(65)
	if cap(buf) != 256 {
		t.Errorf("Get(65) cap = %d, want 256", cap(buf))
	}
}

func TestPutIgnoresForeignBuffers(t *testing.T) {
	p := NewPool(nil)
	p.Put(nil)
	p.Put(make([]byte, 3))
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				buf := Get(n*64 + j)
				buf[0] = byte(j)
				Put(buf)
			}
		}(i + 1)
	}
	wg.Wait()
}
