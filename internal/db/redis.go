package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore persists visitor state in Redis. Every key expires after TTL and
// is refreshed on each write.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
	TTL    time.Duration
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string, ttl time.Duration) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
		TTL:    ttl,
	}

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr), zap.Duration("visitor_ttl", ttl))
	return rs, nil
}

// NewRedisStore wraps an existing client. Used with miniredis in tests.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: client, Ctx: context.Background(), TTL: ttl}
}

func visitorKey(visitorID, key string) string {
	return fmt.Sprintf("visitor:%s:%s", visitorID, key)
}

func (r *RedisStore) ctx(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return r.Ctx
}

// Get returns the stored value. A missing key is not an error.
func (r *RedisStore) Get(ctx context.Context, visitorID, key string) (string, bool, error) {
	val, err := r.Client.Get(r.ctx(ctx), visitorKey(visitorID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value and resets the key's expiry.
func (r *RedisStore) Set(ctx context.Context, visitorID, key, value string) error {
	if err := r.Client.Set(r.ctx(ctx), visitorKey(visitorID, key), value, r.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove deletes the key. Removing a missing key succeeds.
func (r *RedisStore) Remove(ctx context.Context, visitorID, key string) error {
	if err := r.Client.Del(r.ctx(ctx), visitorKey(visitorID, key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close shuts down the redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
