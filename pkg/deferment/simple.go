package deferment

import (
	"fmt"

	"github.com/marmos91/objectloader/pkg/objects"
)

// MemoryOnly serves futures from a fixed set of objects. It is used when the
// whole graph is already in memory, so every future it returns is settled.
type MemoryOnly struct {
	objects map[string]*objects.Base
}

// NewMemoryOnly indexes objs by id.
func NewMemoryOnly(objs map[string]*objects.Base) *MemoryOnly {
	return &MemoryOnly{objects: objs}
}

func (m *MemoryOnly) Defer(id string) (*Future, bool, error) {
	if base, ok := m.objects[id]; ok {
		return Resolved(id, base), true, nil
	}
	return Rejected(id, fmt.Errorf("%w: %s", ErrNotCached, id)), true, nil
}

func (m *MemoryOnly) Undefer(objects.Item) {}

func (m *MemoryOnly) Reject(string, error) {}

func (m *MemoryOnly) Dispose() {}

// Disabled rejects every request.
type Disabled struct{}

func (Disabled) Defer(id string) (*Future, bool, error) {
	return Rejected(id, fmt.Errorf("%w: %s", ErrDisabled, id)), true, nil
}

func (Disabled) Undefer(objects.Item) {}

func (Disabled) Reject(string, error) {}

func (Disabled) Dispose() {}

var (
	_ Deferment = (*MemoryOnly)(nil)
	_ Deferment = Disabled{}
	_ Deferment = (*Manager)(nil)
)
