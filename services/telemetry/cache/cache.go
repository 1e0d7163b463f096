// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"sync"
	"time"

	"github.com/qapulse/qapulse/services/telemetry/datatypes"
)

// DefaultTTL is the snapshot lifetime used when the caller passes 0.
const DefaultTTL = 60 * time.Second

// entry pairs a snapshot with its production time. An entry older than
// the TTL is treated as absent on read.
type entry struct {
	storedAt time.Time
	snapshot datatypes.Snapshot
}

// SnapshotCache memoizes one snapshot per data-source mode.
//
// Thread safety: safe for concurrent use. Racing writers for the same
// mode resolve last-writer-wins, which is acceptable because entries are
// idempotent snapshots, not accumulators.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   Clock
}

// New creates a cache with the given TTL (0 means DefaultTTL) and clock
// (nil means SystemClock).
func New(ttl time.Duration, clock Clock) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &SnapshotCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached snapshot for mode if one exists and is younger
// than the TTL.
func (c *SnapshotCache) Get(mode string) (datatypes.Snapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[mode]
	c.mu.RUnlock()

	if !ok {
		return datatypes.Snapshot{}, false
	}
	if c.clock.Now().Sub(e.storedAt) >= c.ttl {
		return datatypes.Snapshot{}, false
	}
	return e.snapshot, true
}

// Put stores a snapshot for mode, replacing any previous entry.
func (c *SnapshotCache) Put(mode string, snap datatypes.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[mode] = entry{storedAt: c.clock.Now(), snapshot: snap}
}

// Invalidate drops the entry for mode, if any.
func (c *SnapshotCache) Invalidate(mode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, mode)
}

// InvalidateAll drops every entry.
func (c *SnapshotCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}
