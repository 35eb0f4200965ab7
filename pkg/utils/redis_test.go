package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLeaseScriptCompiles(t *testing.T) {
	if leaseReleaseScript == nil {
		t.Fatalf("expected release script to be initialized")
	}
}

func TestRedisLeaser_RejectsInvalidArgs(t *testing.T) {
	var nilLeaser *RedisLeaser
	if _, err := nilLeaser.Acquire(context.Background(), "k", time.Second); !errors.Is(err, ErrNilRedis) {
		t.Fatalf("expected ErrNilRedis, got %v", err)
	}

	// Argument validation runs before any network round trip.
	l := NewRedisLeaser(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	defer l.client.Close()

	if _, err := l.Acquire(context.Background(), "", time.Second); !errors.Is(err, ErrLeaseKey) {
		t.Fatalf("expected ErrLeaseKey, got %v", err)
	}
	if _, err := l.Acquire(context.Background(), "billing:lease:2026-10", 0); !errors.Is(err, ErrLeaseTTL) {
		t.Fatalf("expected ErrLeaseTTL, got %v", err)
	}
	if err := l.Release(context.Background(), ""); !errors.Is(err, ErrLeaseKey) {
		t.Fatalf("expected ErrLeaseKey, got %v", err)
	}
}

func TestNewRedisLeaser_UniqueOwners(t *testing.T) {
	a := NewRedisLeaser(nil)
	b := NewRedisLeaser(nil)
	if a.owner == "" || a.owner == b.owner {
		t.Fatalf("expected distinct owner tokens")
	}
}
