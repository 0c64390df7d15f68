// Package redis provides the Redis-backed implementation of the store.Cache
// interface used for caching list responses and counters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taskforge/taskforge/internal/store"
)

// Config holds the connection settings for the cache backend.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// setDefaults fills in zero-valued settings.
func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port <= 0 {
		c.Port = 6379
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 20
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// Cache implements store.Cache on top of a go-redis client. The client
// maintains its own connection pool and reconnects transparently when a
// connection drops, so construction never dials; Ping is available for a
// startup health check.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache creates a Cache from the given configuration.
// If logger is nil, a default logger will be used.
func NewCache(cfg Config, logger *slog.Logger) *Cache {
	cfg.setDefaults()

	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &Cache{
		client: client,
		logger: logger.With(slog.String("component", "redis_cache")),
	}
}

// Ensure Cache implements store.Cache interface
var _ store.Cache = (*Cache)(nil)

// Get implements store.Cache.Get
// Returns store.ErrCacheMiss when the key is absent or expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}
	return value, nil
}

// Set implements store.Cache.Set
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Delete implements store.Cache.Delete
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

// DeleteByPrefix implements store.Cache.DeleteByPrefix
// It walks the key space with SCAN (never KEYS) and deletes each match.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache delete %q during prefix scan: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %q: %w", prefix, err)
	}

	c.logger.Debug("cache prefix invalidated",
		slog.String("prefix", prefix),
		slog.Int("deleted", deleted))
	return nil
}

// Exists implements store.Cache.Exists
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists %q: %w", key, err)
	}
	return n == 1, nil
}

// Ping verifies connectivity to the cache backend.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache ping: %w", err)
	}
	return nil
}

// Close releases the client's connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
