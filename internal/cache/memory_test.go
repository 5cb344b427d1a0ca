package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetSetRemove(t *testing.T) {
	m := NewMemory(8)
	ctx := context.Background()

	if _, ok, err := m.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss on empty cache, got ok=%v err=%v", ok, err)
	}
	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("Get after Set = %q, %v, %v", v, ok, err)
	}
	if err := m.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected miss after Remove")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(8)
	ctx := context.Background()
	if err := m.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestMemoryRemovePrefix(t *testing.T) {
	m := NewMemory(8)
	ctx := context.Background()
	_ = m.Set(ctx, "endpoint:orders:a", []byte("1"), time.Minute)
	_ = m.Set(ctx, "endpoint:orders:b", []byte("2"), time.Minute)
	_ = m.Set(ctx, "endpoint:customers:a", []byte("3"), time.Minute)

	if err := m.RemovePrefix(ctx, "endpoint:orders:"); err != nil {
		t.Fatalf("RemovePrefix: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "endpoint:orders:a"); ok {
		t.Fatal("orders:a should have been removed")
	}
	if _, ok, _ := m.Get(ctx, "endpoint:customers:a"); !ok {
		t.Fatal("customers:a should survive an unrelated prefix removal")
	}
}

func TestMemoryAcquireLockExcludes(t *testing.T) {
	m := NewMemory(8)
	ctx := context.Background()

	lock, ok, err := m.AcquireLock(ctx, "k", time.Minute, 0, 0)
	if err != nil || !ok {
		t.Fatalf("first acquire should succeed, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := m.AcquireLock(ctx, "k", time.Minute, 0, 0); ok {
		t.Fatal("second acquire should fail while held, with wait=0 acquire-or-skip")
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok, _ := m.AcquireLock(ctx, "k", time.Minute, 0, 0); !ok {
		t.Fatal("acquire should succeed again after release")
	}
}
