package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupRedis(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	l, mr, _ := setupObservedRedis(t)
	return l, mr
}

func setupObservedRedis(t *testing.T) (*RedisLocker, *miniredis.Miniredis, *observer.ObservedLogs) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	core, logs := observer.New(zapcore.WarnLevel)
	return NewRedisLocker(client, zap.New(core)), mr, logs
}

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	l, _ := setupRedis(t)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "T1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}

	if _, ok, _ := l.Acquire(ctx, "T1", time.Minute); ok {
		t.Error("Second acquire must fail while the lock is held")
	}
	if _, ok, _ := l.Acquire(ctx, "T2", time.Minute); !ok {
		t.Error("Other keys must not be blocked")
	}

	release()

	if _, ok, _ := l.Acquire(ctx, "T1", time.Minute); !ok {
		t.Error("Acquire must succeed after release")
	}
}

func TestRedisLocker_ExpiredLockNotReleasedByPreviousHolder(t *testing.T) {
	l, mr, logs := setupObservedRedis(t)
	ctx := context.Background()

	staleRelease, ok, _ := l.Acquire(ctx, "T1", time.Second)
	if !ok {
		t.Fatal("Expected acquire to succeed")
	}
	mr.FastForward(2 * time.Second)

	_, ok, _ = l.Acquire(ctx, "T1", time.Minute)
	if !ok {
		t.Fatal("Expected acquire after expiry to succeed")
	}

	staleRelease()

	if !mr.Exists(keyPrefix + "T1") {
		t.Error("Stale release must not delete a lock owned by someone else")
	}
	if logs.FilterMessage("Lock expired before release").Len() != 1 {
		t.Errorf("Expected an expired-lock warning, got %v", logs.All())
	}
}

func TestRedisLocker_ReleaseFailureIsLogged(t *testing.T) {
	l, mr, logs := setupObservedRedis(t)

	release, ok, err := l.Acquire(context.Background(), "T1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Expected acquire to succeed, got ok=%v err=%v", ok, err)
	}
	mr.Close()

	release()

	entries := logs.FilterMessage("Failed to release lock, it stays held until its TTL").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one release warning, got %v", logs.All())
	}
	if entries[0].ContextMap()["key"] != keyPrefix+"T1" {
		t.Errorf("Unexpected log fields %v", entries[0].ContextMap())
	}
}

func TestRedisLocker_CleanReleaseLogsNothing(t *testing.T) {
	l, _, logs := setupObservedRedis(t)

	release, _, _ := l.Acquire(context.Background(), "T1", time.Minute)
	release()

	if logs.Len() != 0 {
		t.Errorf("Expected no warnings, got %v", logs.All())
	}
}

func TestRedisLocker_ErrorWhenRedisDown(t *testing.T) {
	l, mr := setupRedis(t)
	mr.Close()

	if _, _, err := l.Acquire(context.Background(), "T1", time.Minute); err == nil {
		t.Error("Expected error when redis is unreachable")
	}
}

func TestNoopLocker(t *testing.T) {
	release, ok, err := NoopLocker{}.Acquire(context.Background(), "T1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("NoopLocker must always grant, got ok=%v err=%v", ok, err)
	}
	release()
}
