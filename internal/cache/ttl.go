package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a mutex-guarded map with per-entry absolute expiration. Expired
// entries are removed lazily on the read that finds them, so no background
// sweeper is required for correctness. Writes replace whole entries.
type Cache[K comparable, V any] struct {
	clock     func() time.Time
	normalize func(K) K

	mu      sync.Mutex
	entries map[K]entry[V]
}

// Option customizes a Cache at construction time.
type Option[K comparable, V any] func(*Cache[K, V])

// WithClock substitutes the wall clock, letting tests drive expiration
// deterministically instead of sleeping.
func WithClock[K comparable, V any](clock func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithKeyNormalizer installs a per-instance key canonicalizer. The identity
// cache case-folds player names; content caches keep their natural keys.
func WithKeyNormalizer[K comparable, V any](normalize func(K) K) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.normalize = normalize
	}
}

// New constructs an empty cache ready for concurrent use.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		clock:   time.Now,
		entries: make(map[K]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache[K, V]) key(k K) K {
	if c.normalize != nil {
		return c.normalize(k)
	}
	return k
}

// Get returns the value when present and unexpired. An expired entry is
// deleted as a side effect and reported as a miss; a stale value is never
// returned.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	key = c.key(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put unconditionally inserts or replaces the entry. A zero or negative ttl
// produces an already-expired entry, so the next Get acts as a miss.
func (c *Cache[K, V]) Put(key K, value V, ttl time.Duration) {
	key = c.key(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.clock().Add(ttl)}
}

// Delete removes an entry regardless of its expiration state.
func (c *Cache[K, V]) Delete(key K) {
	key = c.key(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// EvictExpired sweeps the full map and returns how many expired entries were
// removed. Laziness on Get already guarantees correctness; this exists for
// the statistics surface.
func (c *Cache[K, V]) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len counts every stored entry, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ActiveLen counts only the entries that would still be returned by Get.
func (c *Cache[K, V]) ActiveLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	active := 0
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			active++
		}
	}
	return active
}

// Clear drops every entry unconditionally.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}
