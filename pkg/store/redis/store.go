// Package redis provides an object cache shared through Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/marmos91/objectloader/internal/logger"
	"github.com/marmos91/objectloader/pkg/objects"
	"github.com/marmos91/objectloader/pkg/store"
)

// Config holds configuration for the Redis store.
type Config struct {
	// Addr is the host:port of the Redis server.
	Addr string `mapstructure:"addr" validate:"required"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// KeyPrefix is prepended to every object id.
	KeyPrefix string `mapstructure:"key_prefix"`

	// TTL expires cached objects. Zero keeps them forever.
	TTL time.Duration `mapstructure:"ttl"`

	PoolSize     int `mapstructure:"pool_size"`
	MaxRetries   int `mapstructure:"max_retries"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// DefaultConfig returns local defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		KeyPrefix:    "objectloader:obj:",
		PoolSize:     10,
		MaxRetries:   3,
		MinIdleConns: 2,
	}
}

// Store is a Redis implementation of store.Database.
type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		MinIdleConns: cfg.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Debug("Redis store connected", "addr", cfg.Addr, "db", cfg.DB)
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client. The store takes ownership of it.
func NewWithClient(client *goredis.Client, cfg Config) *Store {
	return &Store{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// GetAll fetches every id with a single MGET.
func (s *Store) GetAll(ctx context.Context, ids []string) ([]*objects.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	out := make([]*objects.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		if out[i], err = store.Decode(ids[i], []byte(raw)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetItem fetches a single id.
func (s *Store) GetItem(ctx context.Context, id string) (*objects.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return store.Decode(id, data)
}

// SaveBatch writes every resolved item in one pipeline.
func (s *Store) SaveBatch(ctx context.Context, items []objects.Item) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrClosed
	}

	pipe := s.client.Pipeline()
	queued := 0
	for _, item := range items {
		if !item.Resolved() {
			continue
		}
		data, err := store.Encode(item)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.key(item.BaseID), data, s.ttl)
		queued++
	}
	if queued == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// HealthCheck pings the server.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrClosed
	}
	return s.client.Ping(ctx).Err()
}

// Dispose closes the client.
func (s *Store) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

var _ store.Database = (*Store)(nil)
