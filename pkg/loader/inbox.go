package loader

import (
	"sync"

	"github.com/marmos91/objectloader/pkg/objects"
)

// inbox collects items delivered by cache and download goroutines for the
// traversal. push never blocks; items pushed while no traversal is open are
// dropped.
type inbox struct {
	mu     sync.Mutex
	open   bool
	items  []objects.Item
	notify chan struct{}
}

func newInbox() *inbox {
	return &inbox{notify: make(chan struct{}, 1)}
}

func (b *inbox) push(item objects.Item) {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return
	}
	b.items = append(b.items, item)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// drain returns everything pushed since the last call.
func (b *inbox) drain() []objects.Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}

func (b *inbox) setOpen(open bool) {
	b.mu.Lock()
	b.open = open
	if !open {
		b.items = nil
	}
	b.mu.Unlock()
}
