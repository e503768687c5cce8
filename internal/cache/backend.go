package cache

import (
	"context"
	"time"
)

// PlayerIdentity binds a display name to its account id. Identity bindings
// are near-immutable, so the identity cache carries the longest TTL.
type PlayerIdentity struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// PlayerProfile is the per-player payload fetched from the tier API: the
// current tier label per category plus best-effort metadata.
type PlayerProfile struct {
	UUID   string            `json:"uuid"`
	Name   string            `json:"name"`
	Region string            `json:"region,omitempty"`
	Tiers  map[string]string `json:"tiers"`
}

// RankedPlayer is one row of a fetched tier listing.
type RankedPlayer struct {
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Tier   string `json:"tier"`
	Points int    `json:"points"`
}

// Listing is an ordered tier-list page for one game mode or filter.
type Listing struct {
	Mode    string         `json:"mode"`
	Players []RankedPlayer `json:"players"`
}

// Backend abstracts one namespaced sub-cache. The memory implementation is
// the default; the valkey implementation shares entries between instances
// for deployments that opt in.
type Backend[V any] interface {
	Lookup(ctx context.Context, key string) (V, bool, error)
	Store(ctx context.Context, key string, value V) error
	Clear(ctx context.Context) error
	ActiveCount(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}

type memoryBackend[V any] struct {
	ttl   time.Duration
	cache *Cache[string, V]
}

// NewMemory wraps the in-process TTL cache behind the Backend contract with
// a fixed per-instance TTL.
func NewMemory[V any](ttl time.Duration, opts ...Option[string, V]) Backend[V] {
	return &memoryBackend[V]{ttl: ttl, cache: New[string, V](opts...)}
}

func (b *memoryBackend[V]) Lookup(_ context.Context, key string) (V, bool, error) {
	value, ok := b.cache.Get(key)
	return value, ok, nil
}

func (b *memoryBackend[V]) Store(_ context.Context, key string, value V) error {
	b.cache.Put(key, value, b.ttl)
	return nil
}

func (b *memoryBackend[V]) Clear(context.Context) error {
	b.cache.Clear()
	return nil
}

func (b *memoryBackend[V]) ActiveCount(context.Context) (int64, error) {
	return int64(b.cache.ActiveLen()), nil
}

func (b *memoryBackend[V]) Close(context.Context) error {
	return nil
}
