// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mfleet/stockpile/internal/logging"
	"github.com/mfleet/stockpile/internal/metrics"
)

// Entry is one cached value with its timestamps.
type Entry[V any] struct {
	Value     V
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Age returns how long ago the entry was stored.
func (e Entry[V]) Age() time.Duration {
	return time.Since(e.StoredAt)
}

// Stats is a point-in-time snapshot of cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// Cache is a thread-safe in-memory cache with TTL expiration.
//
// Expiration is checked lazily on reads: a Get that finds an expired entry
// evicts it and reports a miss, so expired data is never returned even when
// no sweep is running. StartCleanup adds an optional periodic sweep for
// memory hygiene under write-heavy loads.
type Cache[V any] struct {
	mu      sync.RWMutex
	name    string
	entries map[string]Entry[V]
	ttl     time.Duration

	statsMu sync.Mutex
	stats   Stats
}

// New creates a cache with the given name (used as the metrics label) and
// default TTL for entries stored via Set.
//
// Example:
//
//	quotes := cache.New[source.Payload]("quotes", 5*time.Minute)
//	quotes.Set(cache.Key("quote", "AAPL"), payload)
//	if entry, ok := quotes.GetEntry(cache.Key("quote", "AAPL")); ok {
//	    // entry.Value is typed, entry.Age() gives staleness
//	}
func New[V any](name string, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		name:    name,
		entries: make(map[string]Entry[V]),
		ttl:     ttl,
	}
}

// Get retrieves a value by key.
//
// Behavior:
//   - Returns (zero, false) if the key does not exist
//   - Returns (zero, false) if the entry has expired (the entry is evicted)
//   - Returns (value, true) otherwise
func (c *Cache[V]) Get(key string) (V, bool) {
	entry, ok := c.GetEntry(key)
	return entry.Value, ok
}

// GetEntry retrieves a value together with its timestamps, applying the same
// lazy eviction as Get. Callers that surface cached data use the entry's age
// as the staleness indicator.
func (c *Cache[V]) GetEntry(key string) (Entry[V], bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return Entry[V]{}, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have renewed
		// the entry.
		if current, still := c.entries[key]; still && time.Now().After(current.ExpiresAt) {
			delete(c.entries, key)
			c.setTotalKeysLocked()
			c.recordEviction()
		}
		c.mu.Unlock()
		c.recordMiss()
		return Entry[V]{}, false
	}

	c.recordHit()
	return entry, true
}

// Set stores a value with the cache's default TTL, overwriting any existing
// entry under the same key.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	now := time.Now()
	c.mu.Lock()
	c.entries[key] = Entry[V]{
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	c.setTotalKeysLocked()
	c.mu.Unlock()
}

// Delete removes a specific entry. It is a no-op for absent keys.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	if _, exists := c.entries[key]; exists {
		delete(c.entries, key)
		c.setTotalKeysLocked()
		c.recordEviction()
	}
	c.mu.Unlock()
}

// Clear removes all entries in a single map replacement.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	evicted := int64(len(c.entries))
	c.entries = make(map[string]Entry[V])
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Evictions += evicted
	c.stats.TotalKeys = 0
	c.statsMu.Unlock()
	metrics.CacheEvictions.WithLabelValues(c.name).Add(float64(evicted))
	metrics.CacheSize.WithLabelValues(c.name).Set(0)
}

// Len returns the number of stored entries, expired ones included until they
// are evicted by a read or a sweep.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of all unexpired entries keyed as stored.
func (c *Cache[V]) Entries() map[string]Entry[V] {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Entry[V], len(c.entries))
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			continue
		}
		out[key] = entry
	}
	return out
}

// GetStats returns a snapshot of the performance counters.
func (c *Cache[V]) GetStats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// HitRate returns the cache hit rate as a percentage.
func (c *Cache[V]) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// StartCleanup runs a periodic sweep that evicts expired entries until ctx
// is canceled. Reads never depend on the sweep; it only bounds memory when
// many keys are written once and never read again.
func (c *Cache[V]) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				evicted := c.cleanup()
				if evicted > 0 {
					logging.Debug().
						Str("cache", c.name).
						Int64("evicted", evicted).
						Msg("Cache sweep evicted expired entries")
				}
			}
		}
	}()
}

// cleanup removes all expired entries and returns how many were evicted.
func (c *Cache[V]) cleanup() int64 {
	now := time.Now()
	c.mu.Lock()
	evicted := int64(0)
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	c.setTotalKeysLocked()
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Evictions += evicted
	c.stats.LastCleanup = now
	c.statsMu.Unlock()
	metrics.CacheEvictions.WithLabelValues(c.name).Add(float64(evicted))
	return evicted
}

// setTotalKeysLocked refreshes the key count. Must be called with mu held.
func (c *Cache[V]) setTotalKeysLocked() {
	n := int64(len(c.entries))
	c.statsMu.Lock()
	c.stats.TotalKeys = n
	c.statsMu.Unlock()
	metrics.CacheSize.WithLabelValues(c.name).Set(float64(n))
}

// recordHit increments the hit counter.
func (c *Cache[V]) recordHit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
	metrics.CacheHits.WithLabelValues(c.name).Inc()
}

// recordMiss increments the miss counter.
func (c *Cache[V]) recordMiss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
	metrics.CacheMisses.WithLabelValues(c.name).Inc()
}

// recordEviction increments the eviction counter.
func (c *Cache[V]) recordEviction() {
	c.statsMu.Lock()
	c.stats.Evictions++
	c.statsMu.Unlock()
	metrics.CacheEvictions.WithLabelValues(c.name).Inc()
}
