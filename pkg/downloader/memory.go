package downloader

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/objectloader/pkg/objects"
)

// Memory serves objects from an in-memory map. It backs loaders built from
// already decoded objects.
type Memory struct {
	rootID  string
	objects map[string]*objects.Base

	mu      sync.Mutex
	results objects.ItemSink
	onError func(error)
}

var _ Downloader = (*Memory)(nil)

// NewMemory creates a Memory downloader whose root is rootID.
func NewMemory(rootID string, objs map[string]*objects.Base) *Memory {
	return &Memory{rootID: rootID, objects: objs}
}

func (m *Memory) Initialize(results objects.ItemSink, _ int, onError func(error)) {
	m.mu.Lock()
	m.results = results
	m.onError = onError
	m.mu.Unlock()
}

// Add delivers id synchronously. Unknown ids are reported to onError.
func (m *Memory) Add(id string) {
	m.mu.Lock()
	results, onError := m.results, m.onError
	m.mu.Unlock()

	if results == nil {
		return
	}
	if base, ok := m.objects[id]; ok {
		results(objects.Item{BaseID: id, Base: base})
		return
	}
	if onError != nil {
		onError(&BatchError{IDs: []string{id}, Err: fmt.Errorf("%w: %s", ErrNotFound, id)})
	}
}

func (m *Memory) DownloadSingle(_ context.Context) (*objects.Item, error) {
	base, ok := m.objects[m.rootID]
	if !ok {
		return nil, fmt.Errorf("root %w: %s", ErrNotFound, m.rootID)
	}
	return &objects.Item{BaseID: m.rootID, Base: base}, nil
}

func (m *Memory) Dispose() {}
