// Package cache holds the most recently fetched snapshot with an explicit
// time-to-live, so consumers can reuse a fresh fetch instead of hitting the
// upstream API again inside one poll interval.
package cache

import (
	"sync"
	"time"

	"github.com/skywatch/opensky-scope/pkg/opensky"
)

// DefaultTTL matches the anonymous-account time resolution of the upstream
// API. Data fetched more often than this is identical anyway.
const DefaultTTL = 10 * time.Second

// SnapshotCache is a single-slot cache for the latest snapshot.
// Safe for concurrent use.
type SnapshotCache struct {
	mu       sync.RWMutex
	snapshot opensky.Snapshot
	storedAt time.Time
	valid    bool

	ttl time.Duration
	now func() time.Time
}

// New returns a cache with the given TTL. A non-positive TTL falls back
// to DefaultTTL.
func New(ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{
		ttl: ttl,
		now: time.Now,
	}
}

// Put stores snap as the current snapshot and restarts its TTL.
func (c *SnapshotCache) Put(snap opensky.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snap
	c.storedAt = c.now()
	c.valid = true
}

// Get returns the cached snapshot. The second return is false when the
// cache is empty or the entry has outlived its TTL.
func (c *SnapshotCache) Get() (opensky.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid || c.now().Sub(c.storedAt) > c.ttl {
		return opensky.Snapshot{}, false
	}
	return c.snapshot, true
}

// Age returns how long ago the cached snapshot was stored, and false when
// nothing is cached.
func (c *SnapshotCache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid {
		return 0, false
	}
	return c.now().Sub(c.storedAt), true
}

// Invalidate drops the cached snapshot immediately.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.snapshot = opensky.Snapshot{}
}
