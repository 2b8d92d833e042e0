package store

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/objects"
)

// Instrumented wraps a Database and reports latency, item counts and bytes
// of every call.
type Instrumented struct {
	Database
	name    string
	metrics metrics.StoreMetrics
}

// Instrument wraps db. name labels the backend in logs and metrics.
func Instrument(db Database, name string, m metrics.StoreMetrics) *Instrumented {
	return &Instrumented{Database: db, name: name, metrics: m}
}

// Name returns the backend label.
func (s *Instrumented) Name() string { return s.name }

func (s *Instrumented) GetAll(ctx context.Context, ids []string) ([]*objects.Item, error) {
	start := time.Now()
	items, err := s.Database.GetAll(ctx, ids)
	elapsed := time.Since(start)

	var (
		hits  int
		bytes int64
	)
	for _, item := range items {
		if item != nil {
			hits++
			bytes += int64(item.Size)
		}
	}
	metrics.ObserveStoreOperation(s.metrics, s.name, "get_all", len(ids), elapsed, err)
	metrics.RecordStoreBytes(s.metrics, s.name, "get_all", bytes)
	logger.Debug("Store lookup",
		logger.KeyStore, s.name, logger.KeyCount, len(ids), logger.KeyHits, hits,
		logger.DurationMs(elapsed), logger.Err(err))
	return items, err
}

func (s *Instrumented) GetItem(ctx context.Context, id string) (*objects.Item, error) {
	start := time.Now()
	item, err := s.Database.GetItem(ctx, id)
	opErr := err
	if errors.Is(err, ErrNotFound) {
		opErr = nil
	}
	metrics.ObserveStoreOperation(s.metrics, s.name, "get_item", 1, time.Since(start), opErr)
	if item != nil {
		metrics.RecordStoreBytes(s.metrics, s.name, "get_item", int64(item.Size))
	}
	return item, err
}

func (s *Instrumented) SaveBatch(ctx context.Context, items []objects.Item) error {
	start := time.Now()
	err := s.Database.SaveBatch(ctx, items)
	elapsed := time.Since(start)

	var bytes int64
	for _, item := range items {
		bytes += int64(item.Size)
	}
	metrics.ObserveStoreOperation(s.metrics, s.name, "save_batch", len(items), elapsed, err)
	metrics.RecordStoreBytes(s.metrics, s.name, "save_batch", bytes)
	logger.Debug("Store save",
		logger.KeyStore, s.name, logger.BatchSize(len(items)), logger.DurationMs(elapsed), logger.Err(err))
	return err
}
