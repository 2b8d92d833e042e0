// Package badger provides an object cache backed by an embedded BadgerDB.
//
// Key layout:
//   - obj:{id} - encoded Base
package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/pkg/objects"
	"github.com/marmos91/objectloader/pkg/store"
)

const objectPrefix = "obj:"

// Config holds configuration for the Badger store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `mapstructure:"path"`

	// InMemory keeps the database in RAM only.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every write batch.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// Store is a BadgerDB implementation of store.Database.
type Store struct {
	db     *badgerdb.DB
	mu     sync.RWMutex
	closed bool
}

// New opens (or creates) the database described by cfg.
func New(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger store requires a path")
	}

	opts := badgerdb.DefaultOptions(cfg.Path).
		WithLogger(nil).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	logger.Debug("Badger store opened", "path", cfg.Path, "in_memory", cfg.InMemory)
	return &Store{db: db}, nil
}

func objectKey(id string) []byte {
	return []byte(objectPrefix + id)
}

// GetAll reads every id inside a single read transaction.
func (s *Store) GetAll(_ context.Context, ids []string) ([]*objects.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	out := make([]*objects.Item, len(ids))
	err := s.db.View(func(txn *badgerdb.Txn) error {
		for i, id := range ids {
			item, err := txn.Get(objectKey(id))
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", id, err)
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", id, err)
			}
			if out[i], err = store.Decode(id, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetItem reads a single id.
func (s *Store) GetItem(ctx context.Context, id string) (*objects.Item, error) {
	return store.GetItemFromAll(ctx, s, id)
}

// SaveBatch writes every resolved item through a WriteBatch, which splits
// large batches into transactions of acceptable size.
func (s *Store) SaveBatch(_ context.Context, items []objects.Item) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrClosed
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, item := range items {
		if !item.Resolved() {
			continue
		}
		data, err := store.Encode(item)
		if err != nil {
			return err
		}
		if err := wb.Set(objectKey(item.BaseID), data); err != nil {
			return fmt.Errorf("set %s: %w", item.BaseID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush write batch: %w", err)
	}
	return nil
}

// HealthCheck verifies the database accepts reads.
func (s *Store) HealthCheck(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrClosed
	}
	return s.db.View(func(*badgerdb.Txn) error { return nil })
}

// Dispose closes the database.
func (s *Store) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ store.Database = (*Store)(nil)
