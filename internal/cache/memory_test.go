package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	c := NewMemory("t")
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := c.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("get: %q %v", v, err)
	}

	ok, err := c.Exists(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("exists: %v %v", ok, err)
	}
}

func TestMemoryGetDelSingleUse(t *testing.T) {
	c := NewMemory("")
	ctx := context.Background()

	if err := c.Set(ctx, "state", "payload", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	v, err := c.GetDel(ctx, "state")
	if err != nil || v != "payload" {
		t.Fatalf("first getdel: %q %v", v, err)
	}

	// Segunda lectura debe fallar: el valor es single-use.
	if _, err := c.GetDel(ctx, "state"); !IsNotFound(err) {
		t.Fatalf("expected not found on replay, got %v", err)
	}
}

func TestMemoryGetDelConcurrent(t *testing.T) {
	c := NewMemory("")
	ctx := context.Background()

	if err := c.Set(ctx, "once", "x", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetDel(ctx, "once"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	c := NewMemory("")
	ctx := context.Background()

	if err := c.Set(ctx, "short", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := c.Get(ctx, "short"); !IsNotFound(err) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
