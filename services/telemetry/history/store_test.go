// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qapulse/qapulse/services/telemetry/datatypes"
)

func openTestStore(t *testing.T, retention int) *Store {
	t.Helper()
	store, err := Open(Config{InMemory: true, Retention: retention})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func snapshotAt(ts time.Time, notes string) datatypes.Snapshot {
	return datatypes.Snapshot{
		GeneratedAt: ts,
		Summary:     datatypes.Summary{OverallStatus: datatypes.HealthHealthy, Notes: notes},
	}
}

func TestStore_AppendAndRecent(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()
	base := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		snap := snapshotAt(base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("collection-%d", i))
		require.NoError(t, store.Append(ctx, snap))
	}

	got, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, "collection-2", got[0].Summary.Notes)
	assert.Equal(t, "collection-1", got[1].Summary.Notes)
	assert.Equal(t, "collection-0", got[2].Summary.Notes)
}

func TestStore_RecentHonorsLimit(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()
	base := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, snapshotAt(base.Add(time.Duration(i)*time.Second), "s")))
	}

	got, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStore_RecentEmpty(t *testing.T) {
	store := openTestStore(t, 0)

	got, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_RetentionPrunesOldest(t *testing.T) {
	store := openTestStore(t, 3)
	ctx := context.Background()
	base := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		snap := snapshotAt(base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("collection-%d", i))
		require.NoError(t, store.Append(ctx, snap))
	}

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "collection-5", got[0].Summary.Notes)
	assert.Equal(t, "collection-3", got[2].Summary.Notes)
}

func TestStore_RoundTripsProjectDetail(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()

	total, pass := 120, 118
	rate := 0.9833
	snap := datatypes.Snapshot{
		GeneratedAt: time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC),
		Summary:     datatypes.Summary{OverallStatus: datatypes.HealthDegraded},
		Projects: []datatypes.ProjectMetric{{
			Name:   "API Gateway",
			RepoID: "acme/gateway",
			Type:   datatypes.ProjectTypeService,
			Status: datatypes.HealthDegraded,
			Tests:  &datatypes.TestStats{Total: &total, Pass: &pass, PassRate: &rate},
		}},
	}
	require.NoError(t, store.Append(ctx, snap))

	got, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Projects, 1)

	project := got[0].Projects[0]
	assert.Equal(t, "acme/gateway", project.RepoID)
	require.NotNil(t, project.Tests)
	require.NotNil(t, project.Tests.PassRate)
	assert.InDelta(t, 0.9833, *project.Tests.PassRate, 1e-9)
}

func TestStore_AppendRespectsContextCancellation(t *testing.T) {
	store := openTestStore(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Append(ctx, snapshotAt(time.Now(), "late"))
	assert.ErrorIs(t, err, context.Canceled)
}
