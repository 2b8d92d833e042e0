package config

import (
	"context"
	"fmt"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/marmos91/objectloader/pkg/store"
	"github.com/marmos91/objectloader/pkg/store/badger"
	"github.com/marmos91/objectloader/pkg/store/memory"
	"github.com/marmos91/objectloader/pkg/store/redis"
	"github.com/marmos91/objectloader/pkg/store/s3"
	"github.com/marmos91/objectloader/pkg/worker"
	"github.com/mitchellh/mapstructure"
)

// CreateDatabase creates the cache backend selected by cfg.Type.
func CreateDatabase(ctx context.Context, cfg CacheConfig) (store.Database, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "badger":
		return createBadgerDatabase(cfg)
	case "redis":
		return createRedisDatabase(ctx, cfg)
	case "s3":
		return createS3Database(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown cache type: %q", cfg.Type)
	}
}

// createBadgerDatabase opens a BadgerDB cache.
func createBadgerDatabase(cfg CacheConfig) (store.Database, error) {
	var badgerCfg badger.Config
	if err := decodeSection(cfg.Badger, &badgerCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}
	if badgerCfg.Path == "" && !badgerCfg.InMemory {
		return nil, fmt.Errorf("badger cache requires path to be set")
	}

	db, err := badger.New(badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return db, nil
}

// createRedisDatabase connects to Redis. Unset keys keep redis.DefaultConfig.
func createRedisDatabase(ctx context.Context, cfg CacheConfig) (store.Database, error) {
	redisCfg := redis.DefaultConfig()
	if err := decodeSection(cfg.Redis, &redisCfg); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}
	if err := validate.Struct(redisCfg); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", formatValidationError(err))
	}

	db, err := redis.New(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return db, nil
}

// createS3Database creates an S3 cache.
func createS3Database(ctx context.Context, cfg CacheConfig) (store.Database, error) {
	var s3Cfg s3.Config
	if err := decodeSection(cfg.S3, &s3Cfg); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}
	if err := validate.Struct(s3Cfg); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", formatValidationError(err))
	}

	db, err := s3.NewFromConfig(ctx, s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 store: %w", err)
	}
	return db, nil
}

// decodeSection decodes a backend section with the same hooks as the main
// config, so "ttl: 10m" works inside cache.redis too.
func decodeSection(section map[string]any, out any) error {
	if section == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       configDecodeHooks(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(section)
}

// OpenDatabase creates the configured backend, instruments it and, when
// loader.use_worker is set, moves its reads behind the worker transport.
// Both metrics arguments may be nil.
func OpenDatabase(ctx context.Context, cfg *Config, sm metrics.StoreMetrics, lm metrics.LoaderMetrics) (store.Database, error) {
	db, err := CreateDatabase(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	var out store.Database = store.Instrument(db, cfg.Cache.Type, sm)

	if cfg.Loader.UseWorker {
		client, err := worker.Start(ctx, out, cfg.WorkerConfig(lm))
		if err != nil {
			_ = db.Dispose()
			return nil, fmt.Errorf("failed to start worker: %w", err)
		}
		out = client
	}

	logger.Debug("Cache opened", logger.KeyStore, cfg.Cache.Type, "worker", cfg.Loader.UseWorker)
	return out, nil
}
