// Package store defines the persistent object cache interface and the
// encoding shared by its backends.
//
// Backends live in subpackages:
//   - memory: in-process map, for tests and offline loads
//   - badger: embedded BadgerDB on local disk
//   - redis:  shared Redis instance
//   - s3:     S3 or S3-compatible bucket
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marmos91/objectloader/pkg/objects"
)

// Common errors returned by Database implementations.
var (
	// ErrNotFound is returned by GetItem when the id is not cached.
	ErrNotFound = errors.New("object not found")

	// ErrClosed is returned when operations are attempted on a disposed store.
	ErrClosed = errors.New("store is closed")
)

// Database is a key-value cache of resolved objects keyed by id.
type Database interface {
	// GetAll looks up ids in one round trip. The result is aligned with ids
	// and holds nil for every id that is not cached.
	GetAll(ctx context.Context, ids []string) ([]*objects.Item, error)

	// GetItem looks up a single id. Returns ErrNotFound on a miss.
	GetItem(ctx context.Context, id string) (*objects.Item, error)

	// SaveBatch persists every resolved item of the batch. Items without a
	// Base are skipped.
	SaveBatch(ctx context.Context, items []objects.Item) error

	// Dispose releases the backend. Safe to call more than once.
	Dispose() error
}

// Encode returns the stored form of an item: the JSON of its Base.
func Encode(item objects.Item) ([]byte, error) {
	if item.Base == nil {
		return nil, fmt.Errorf("encode %s: item is not resolved", item.BaseID)
	}
	data, err := json.Marshal(item.Base)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", item.BaseID, err)
	}
	return data, nil
}

// Decode rebuilds an item from its stored form.
func Decode(id string, data []byte) (*objects.Item, error) {
	base, err := objects.ParseBase(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return &objects.Item{BaseID: id, Base: base, Size: len(data)}, nil
}

// GetItemFromAll implements GetItem on top of GetAll.
func GetItemFromAll(ctx context.Context, db Database, id string) (*objects.Item, error) {
	items, err := db.GetAll(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 || items[0] == nil {
		return nil, ErrNotFound
	}
	return items[0], nil
}
