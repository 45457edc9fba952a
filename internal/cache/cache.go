// Package cache holds short-lived copies of ledger reads keyed by user.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	data     V
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry[V]) valid(now time.Time) bool {
	return now.Sub(e.storedAt) <= e.ttl
}

// Cache is a TTL map safe for concurrent use. Expired entries are removed on
// the Get that finds them; nothing runs in the background.
//
// Every Invalidate and Clear advances a generation. A loader that captured
// the generation before reading its source stores through SetIfUnchanged,
// which refuses the write once the key has been invalidated since.
type Cache[V any] struct {
	entries sync.Map
	now     func() time.Time

	mu      sync.Mutex
	seq     uint64
	cleared uint64
	gens    map[string]uint64
}

func New[V any]() *Cache[V] {
	return NewWithClock[V](time.Now)
}

// NewWithClock is New with an injected time source
func NewWithClock[V any](now func() time.Time) *Cache[V] {
	return &Cache[V]{now: now, gens: map[string]uint64{}}
}

// Set stores v under key, replacing any previous value
func (c *Cache[V]) Set(key string, v V, ttl time.Duration) {
	c.entries.Store(key, &entry[V]{data: v, storedAt: c.now(), ttl: ttl})
}

// Get returns the value for key if it has not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	raw, ok := c.entries.Load(key)
	if !ok {
		return zero, false
	}

	e := raw.(*entry[V])
	if !e.valid(c.now()) {
		// Only drop the entry we looked at; a concurrent Set may have replaced it
		c.entries.CompareAndDelete(key, raw)
		return zero, false
	}
	return e.data, true
}

// Generation identifies the current invalidation state of key
func (c *Cache[V]) Generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation(key)
}

func (c *Cache[V]) generation(key string) uint64 {
	return max(c.gens[key], c.cleared)
}

// SetIfUnchanged stores v only if key was not invalidated after gen was read.
// It reports whether the value was stored.
func (c *Cache[V]) SetIfUnchanged(key string, v V, ttl time.Duration, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(key) != gen {
		return false
	}
	c.Set(key, v, ttl)
	return true
}

func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens == nil {
		c.gens = map[string]uint64{}
	}
	c.seq++
	c.gens[key] = c.seq
	c.entries.Delete(key)
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.cleared = c.seq
	clear(c.gens)
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
}

// Len counts stored entries, including expired ones not yet evicted
func (c *Cache[V]) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// BalanceKey and TransactionsKey name the per-user entries kept by the ledger
func BalanceKey(userId string) string {
	return "balance:" + userId
}

func TransactionsKey(userId string) string {
	return "transactions:" + userId
}
