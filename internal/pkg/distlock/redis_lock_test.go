package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLockMutualExclusion(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "sweep", time.Minute)
	b := NewRedisLock(client, "sweep", time.Minute)

	ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = b.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Error("second holder acquired a held lock")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = b.Acquire(ctx)
	if err != nil || !ok {
		t.Errorf("acquire after release = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestRedisLockReleaseOnlyByOwner(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	owner := NewRedisLock(client, "reset", time.Minute)
	intruder := NewRedisLock(client, "reset", time.Minute)

	if ok, _ := owner.Acquire(ctx); !ok {
		t.Fatal("owner could not acquire")
	}

	// A different instance's release must not free the owner's lock.
	if err := intruder.Release(ctx); err != nil {
		t.Fatalf("intruder release: %v", err)
	}
	if ok, _ := intruder.Acquire(ctx); ok {
		t.Error("lock was freed by a non-owner")
	}
}

func TestRedisLockExtend(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	lock := NewRedisLock(client, "scan", time.Minute)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	if err := lock.Extend(ctx, 2*time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}

	ttl, err := client.TTL(ctx, "lock:scan").Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= time.Minute {
		t.Errorf("ttl = %s, want above the original minute", ttl)
	}
}
