package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
type RedisConfig struct {
	Addr string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 5
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

var leaseReleaseScript = redis.NewScript(`
-- KEYS[1] = lease key
-- ARGV[1] = owner token
-- Delete only when the caller still owns the lease.
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

var (
	ErrNilRedis     = errors.New("redis client is nil")
	ErrLeaseKey     = errors.New("lease key is required")
	ErrLeaseTTL     = errors.New("lease ttl must be > 0")
	ErrLeaseNotHeld = errors.New("lease not held by this owner")
)

// RedisLeaser hands out exclusive, expiring leases keyed by name.
// A lease is owned by the process that acquired it; the TTL frees it if the
// owner crashes before releasing.
type RedisLeaser struct {
	client *redis.Client
	owner  string
}

func NewRedisLeaser(client *redis.Client) *RedisLeaser {
	return &RedisLeaser{client: client, owner: uuid.NewString()}
}

// Acquire returns true when the lease was taken, false when someone else holds it.
func (l *RedisLeaser) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil || l.client == nil {
		return false, ErrNilRedis
	}
	if key == "" {
		return false, ErrLeaseKey
	}
	if ttl <= 0 {
		return false, ErrLeaseTTL
	}
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return ok, nil
}

// Release frees a lease previously acquired by this leaser.
func (l *RedisLeaser) Release(ctx context.Context, key string) error {
	if l == nil || l.client == nil {
		return ErrNilRedis
	}
	if key == "" {
		return ErrLeaseKey
	}
	n, err := leaseReleaseScript.Run(ctx, l.client, []string{key}, l.owner).Int()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	if n == 0 {
		return ErrLeaseNotHeld
	}
	return nil
}
