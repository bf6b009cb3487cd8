package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/infra/observability"
)

const redisOpTimeout = 500 * time.Millisecond

// Redis is a JSON-encoded TTL cache in Redis. Failures are logged and treated
// as misses so the cache never fails a request.
type Redis[T any] struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRedis creates a cache storing keys under prefix.
func NewRedis[T any](client redis.UniversalClient, prefix string, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Redis[T] {
	return &Redis[T]{client: client, prefix: prefix, ttl: ttl, metrics: metrics, logger: logger}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *Redis[T]) Get(key string) (T, bool) {
	var zero T
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.fail("get", key, err)
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.fail("decode", key, err)
		return zero, false
	}
	return v, true
}

func (c *Redis[T]) Set(key string, value T) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.fail("encode", key, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		c.fail("set", key, err)
	}
}

func (c *Redis[T]) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.fail("delete", key, err)
	}
}

// Name and Ping make the cache a readiness dependency.
func (c *Redis[T]) Name() string { return "redis" }

func (c *Redis[T]) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis[T]) fail(op, key string, err error) {
	if c.metrics != nil {
		c.metrics.IncrExternalError("redis")
	}
	c.logger.Warn("redis cache operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
