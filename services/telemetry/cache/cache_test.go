// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qapulse/qapulse/services/telemetry/datatypes"
)

func snapshotAt(ts time.Time, notes string) datatypes.Snapshot {
	return datatypes.Snapshot{
		GeneratedAt: ts,
		Summary:     datatypes.Summary{OverallStatus: datatypes.HealthHealthy, Notes: notes},
	}
}

func TestCache_MissWhenEmpty(t *testing.T) {
	c := New(time.Minute, nil)
	_, ok := c.Get("live")
	assert.False(t, ok)
}

func TestCache_HitWithinTTL(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC))
	c := New(time.Minute, clock)

	snap := snapshotAt(clock.Now(), "fresh")
	c.Put("live", snap)

	clock.Advance(59 * time.Second)
	got, ok := c.Get("live")
	require.True(t, ok)
	assert.Equal(t, snap, got)
}

func TestCache_ExpiresAtTTL(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC))
	c := New(time.Minute, clock)

	c.Put("live", snapshotAt(clock.Now(), "fresh"))

	clock.Advance(60 * time.Second)
	_, ok := c.Get("live")
	assert.False(t, ok, "entry exactly at TTL age must read as absent")
}

func TestCache_ModesAreIndependent(t *testing.T) {
	clock := NewManualClock(time.Now())
	c := New(time.Minute, clock)

	c.Put("live", snapshotAt(clock.Now(), "live"))
	c.Put("static", snapshotAt(clock.Now(), "static"))

	live, ok := c.Get("live")
	require.True(t, ok)
	static, ok := c.Get("static")
	require.True(t, ok)
	assert.NotEqual(t, live.Summary.Notes, static.Summary.Notes)

	c.Invalidate("live")
	_, ok = c.Get("live")
	assert.False(t, ok)
	_, ok = c.Get("static")
	assert.True(t, ok)
}

func TestCache_PutReplaces(t *testing.T) {
	clock := NewManualClock(time.Now())
	c := New(time.Minute, clock)

	c.Put("live", snapshotAt(clock.Now(), "first"))
	c.Put("live", snapshotAt(clock.Now(), "second"))

	got, ok := c.Get("live")
	require.True(t, ok)
	assert.Equal(t, "second", got.Summary.Notes)
}

func TestCache_InvalidateAll(t *testing.T) {
	c := New(time.Minute, NewManualClock(time.Now()))
	c.Put("live", datatypes.Snapshot{})
	c.Put("cloud", datatypes.Snapshot{})

	c.InvalidateAll()

	_, ok := c.Get("live")
	assert.False(t, ok)
	_, ok = c.Get("cloud")
	assert.False(t, ok)
}

func TestCache_ZeroTTLUsesDefault(t *testing.T) {
	clock := NewManualClock(time.Now())
	c := New(0, clock)

	c.Put("live", datatypes.Snapshot{})
	clock.Advance(DefaultTTL - time.Second)
	_, ok := c.Get("live")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("live")
	assert.False(t, ok)
}

func TestCache_ConcurrentReadersAndWriters(t *testing.T) {
	c := New(time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			mode := fmt.Sprintf("mode-%d", n%3)
			for j := 0; j < 200; j++ {
				c.Put(mode, datatypes.Snapshot{})
				c.Get(mode)
			}
		}(i)
	}
	wg.Wait()
}
