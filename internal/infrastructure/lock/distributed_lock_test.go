package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestApprovalLockKey(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	l := NewApprovalLock(client, 42, "owner-a", time.Minute)
	if err := l.Lock(ctx, 10*time.Millisecond, 3); err != nil {
		t.Fatalf("lock: %v", err)
	}

	key := "mlm:lock:package_request:42"
	if got, err := mr.Get(key); err != nil || got != "owner-a" {
		t.Fatalf("key value = %q, %v", got, err)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v", ttl)
	}

	if err := l.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if mr.Exists(key) {
		t.Error("key should be deleted after unlock")
	}
}

func TestLockHeldByOtherOwner(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	a := NewApprovalLock(client, 1, "owner-a", time.Minute)
	b := NewApprovalLock(client, 1, "owner-b", time.Minute)
	if err := a.Lock(ctx, 10*time.Millisecond, 3); err != nil {
		t.Fatalf("lock a: %v", err)
	}

	if err := b.Lock(ctx, 10*time.Millisecond, 3); !errors.Is(err, ErrLockFailed) {
		t.Fatalf("lock b err = %v, want ErrLockFailed", err)
	}

	// 不同申请互不影响
	other := NewApprovalLock(client, 2, "owner-b", time.Minute)
	if ok, err := other.TryLock(ctx); err != nil || !ok {
		t.Errorf("lock other request = %v, %v", ok, err)
	}
}

func TestUnlockChecksOwner(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	a := NewApprovalLock(client, 7, "owner-a", time.Minute)
	if err := a.Lock(ctx, 10*time.Millisecond, 1); err != nil {
		t.Fatalf("lock: %v", err)
	}

	b := NewApprovalLock(client, 7, "owner-b", time.Minute)
	if err := b.Unlock(ctx); err != nil {
		t.Fatalf("unlock by other owner: %v", err)
	}
	if got, _ := mr.Get("mlm:lock:package_request:7"); got != "owner-a" {
		t.Fatalf("lock released by non-owner, value = %q", got)
	}

	if err := a.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if ok, err := b.TryLock(ctx); err != nil || !ok {
		t.Errorf("lock after release = %v, %v", ok, err)
	}
}

func TestLockExpires(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	a := NewApprovalLock(client, 9, "owner-a", 5*time.Second)
	if err := a.Lock(ctx, 10*time.Millisecond, 1); err != nil {
		t.Fatalf("lock: %v", err)
	}
	mr.FastForward(6 * time.Second)

	b := NewApprovalLock(client, 9, "owner-b", 5*time.Second)
	if ok, err := b.TryLock(ctx); err != nil || !ok {
		t.Fatalf("lock after expiry = %v, %v", ok, err)
	}

	// 过期后旧持有者的 Unlock 不能删掉新锁
	if err := a.Unlock(ctx); err != nil {
		t.Fatalf("stale unlock: %v", err)
	}
	if got, _ := mr.Get("mlm:lock:package_request:9"); got != "owner-b" {
		t.Errorf("value = %q, want owner-b", got)
	}
}

func TestLockStopsOnContextCancel(t *testing.T) {
	_, client := setupRedis(t)

	a := NewApprovalLock(client, 3, "owner-a", time.Minute)
	if err := a.Lock(context.Background(), 10*time.Millisecond, 1); err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	b := NewApprovalLock(client, 3, "owner-b", time.Minute)
	start := time.Now()
	err := b.Lock(ctx, 20*time.Millisecond, 1000)
	if err == nil || errors.Is(err, ErrLockFailed) {
		t.Errorf("err = %v, want context error", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("lock returned after %v", elapsed)
	}
}
