// Package memory provides an in-memory object cache for tests and offline
// loads.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/objectloader/pkg/objects"
	"github.com/marmos91/objectloader/pkg/store"
)

// Store keeps encoded objects in a map. Values are stored encoded so callers
// never share decoded Bases with the cache.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	closed  bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// GetAll looks up ids under one read lock.
func (s *Store) GetAll(_ context.Context, ids []string) ([]*objects.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	out := make([]*objects.Item, len(ids))
	for i, id := range ids {
		data, ok := s.objects[id]
		if !ok {
			continue
		}
		item, err := store.Decode(id, data)
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

// GetItem looks up a single id.
func (s *Store) GetItem(ctx context.Context, id string) (*objects.Item, error) {
	return store.GetItemFromAll(ctx, s, id)
}

// SaveBatch stores every resolved item.
func (s *Store) SaveBatch(_ context.Context, items []objects.Item) error {
	encoded := make(map[string][]byte, len(items))
	for _, item := range items {
		if !item.Resolved() {
			continue
		}
		data, err := store.Encode(item)
		if err != nil {
			return err
		}
		encoded[item.BaseID] = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	for id, data := range encoded {
		s.objects[id] = data
	}
	return nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Dispose drops every object.
func (s *Store) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.objects = nil
	return nil
}

var _ store.Database = (*Store)(nil)
