package storage

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is used when a cache is built with a non-positive TTL
const DefaultCacheTTL = 5 * time.Minute

// RecordCache holds the last full read of a store together with its expiry.
// It is owned by a single adapter; there is no package-level cache.
type RecordCache[T any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	value     T
	valid     bool
	expiresAt time.Time
}

// NewRecordCache creates an empty cache whose entries live for ttl
func NewRecordCache[T any](ttl time.Duration) *RecordCache[T] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RecordCache[T]{ttl: ttl, now: time.Now}
}

// SetClock replaces the time source, for tests
func (c *RecordCache[T]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the cached value if present and not expired
func (c *RecordCache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || !c.now().Before(c.expiresAt) {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Set stores v and restarts the expiry window
func (c *RecordCache[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.valid = true
	c.expiresAt = c.now().Add(c.ttl)
}

// Refresh loads a fresh value unconditionally and caches it.
// On error the previous entry is invalidated.
func (c *RecordCache[T]) Refresh(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	v, err := load(ctx)
	if err != nil {
		c.Invalidate()
		var zero T
		return zero, err
	}
	c.Set(v)
	return v, nil
}

// GetOrRefresh returns the cached value, loading it when missing or expired
func (c *RecordCache[T]) GetOrRefresh(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(); ok {
		return v, nil
	}
	return c.Refresh(ctx, load)
}

// Update applies fn to a valid cached value without touching the expiry.
// It is a no-op when nothing is cached.
func (c *RecordCache[T]) Update(fn func(T) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid {
		c.value = fn(c.value)
	}
}

// Invalidate drops the cached value
func (c *RecordCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.valid = false
	c.expiresAt = time.Time{}
}

// ExpiresAt returns when the cached value expires, zero if nothing is cached
func (c *RecordCache[T]) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}
