package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewWithClock[int64](clock.Now)

	c.Set(BalanceKey("user1"), 42, 100*time.Millisecond)

	clock.Advance(50 * time.Millisecond)
	if v, ok := c.Get(BalanceKey("user1")); !ok || v != 42 {
		t.Fatalf("Expected hit with 42 at 50ms, got %d (ok=%v)", v, ok)
	}

	clock.Advance(100 * time.Millisecond)
	if _, ok := c.Get(BalanceKey("user1")); ok {
		t.Fatal("Expected miss at 150ms")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be evicted, Len=%d", c.Len())
	}
}

func TestCache_BoundaryIsInclusive(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewWithClock[string](clock.Now)

	c.Set("k", "v", time.Second)
	clock.Advance(time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("Expected entry to still be valid exactly at its TTL")
	}
}

func TestCache_RealClock(t *testing.T) {
	c := New[int]()
	c.Set("k", 1, 100*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after the TTL elapsed")
	}
}

func TestCache_OverwriteAndInvalidate(t *testing.T) {
	c := New[string]()

	c.Set("k", "old", time.Minute)
	c.Set("k", "new", time.Minute)
	if v, _ := c.Get("k"); v != "new" {
		t.Errorf("Expected overwrite to win, got %q", v)
	}

	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after Invalidate")
	}

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, Len=%d", c.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("user%d", i%4)
			for j := 0; j < 100; j++ {
				c.Set(key, j, time.Minute)
				c.Get(key)
				if j%10 == 0 {
					c.Invalidate(key)
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 4 {
		t.Errorf("Expected at most 4 keys, got %d", c.Len())
	}
}

func TestKeys(t *testing.T) {
	if BalanceKey("u1") != "balance:u1" {
		t.Errorf("Unexpected balance key %q", BalanceKey("u1"))
	}
	if TransactionsKey("u1") != "transactions:u1" {
		t.Errorf("Unexpected transactions key %q", TransactionsKey("u1"))
	}
}

func TestCache_SetIfUnchanged(t *testing.T) {
	c := New[int]()
	key := BalanceKey("user1")

	gen := c.Generation(key)
	if !c.SetIfUnchanged(key, 50, time.Minute, gen) {
		t.Fatal("Expected store with an unchanged generation")
	}

	// A load that read before the invalidation must not repopulate
	stale := c.Generation(key)
	c.Invalidate(key)
	if c.SetIfUnchanged(key, 50, time.Minute, stale) {
		t.Error("Expected store to be refused after Invalidate")
	}
	if _, ok := c.Get(key); ok {
		t.Error("Expected no entry after a refused store")
	}

	fresh := c.Generation(key)
	if !c.SetIfUnchanged(key, 10, time.Minute, fresh) {
		t.Error("Expected store with the post-invalidation generation")
	}
	if v, _ := c.Get(key); v != 10 {
		t.Errorf("Expected 10, got %d", v)
	}
}

func TestCache_ClearAdvancesEveryGeneration(t *testing.T) {
	c := New[int]()
	a, b := c.Generation("a"), c.Generation("b")

	c.Clear()

	if c.SetIfUnchanged("a", 1, time.Minute, a) || c.SetIfUnchanged("b", 1, time.Minute, b) {
		t.Error("Expected stores captured before Clear to be refused")
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, Len=%d", c.Len())
	}
}

func TestCache_InvalidateOtherKeyKeepsGeneration(t *testing.T) {
	c := New[int]()
	gen := c.Generation("a")
	c.Invalidate("b")
	if !c.SetIfUnchanged("a", 1, time.Minute, gen) {
		t.Error("Expected invalidating another key not to affect this one")
	}
}
