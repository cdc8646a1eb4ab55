package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"careplan/internal/config"

	"github.com/redis/go-redis/v9"
)

// Namespaces invalidated together when the underlying data changes.
const (
	NamespaceOccupations = "occupations"
	NamespaceKPI         = "kpi"
)

// Client is the subset of the redis client used by Cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Cache stores JSON values in redis under a common prefix. A Cache without a
// client never hits and never fails, so callers always fall through to the database.
type Cache struct {
	client Client
	prefix string
	logger *slog.Logger
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func New(logger *slog.Logger, client Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix, logger: logger}
}

// Disabled returns a Cache that does nothing.
func Disabled() *Cache {
	return &Cache{}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Cache) key(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}

func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// GetJSON decodes the value stored under key into dest and reports whether it was found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}

	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("cache: failed to get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache: failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache: failed to set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache: failed to delete %v: %w", keys, err)
	}
	return nil
}

// Generation returns the current generation of a namespace. Keys built with
// NamespacedKey become unreachable once the namespace is bumped.
func (c *Cache) Generation(ctx context.Context, namespace string) int64 {
	if !c.Enabled() {
		return 0
	}
	gen, err := c.client.Get(ctx, c.key(namespace, "gen")).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "Failed to read cache generation", "namespace", namespace, "error", err)
	}
	return gen
}

func (c *Cache) NamespacedKey(ctx context.Context, namespace string, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", namespace, c.Generation(ctx, namespace), strings.Join(parts, ":"))
}

// Invalidate bumps the generation of each namespace.
func (c *Cache) Invalidate(ctx context.Context, namespaces ...string) {
	if !c.Enabled() {
		return
	}
	for _, ns := range namespaces {
		if err := c.client.Incr(ctx, c.key(ns, "gen")).Err(); err != nil {
			c.logger.WarnContext(ctx, "Failed to invalidate cache namespace", "namespace", ns, "error", err)
		}
	}
}

// Remember returns the cached value for key, computing and storing it on a miss.
// Cache failures are logged and never fail the call.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	hit, err := c.GetJSON(ctx, key, &cached)
	if err != nil {
		c.logger.WarnContext(ctx, "Cache read failed", "key", key, "error", err)
	}
	if hit {
		return cached, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	if err := c.SetJSON(ctx, key, value, ttl); err != nil {
		c.logger.WarnContext(ctx, "Cache write failed", "key", key, "error", err)
	}
	return value, nil
}
