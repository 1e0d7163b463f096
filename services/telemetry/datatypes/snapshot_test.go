// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_Worse(t *testing.T) {
	assert.Equal(t, HealthDown, HealthHealthy.Worse(HealthDown))
	assert.Equal(t, HealthDown, HealthDown.Worse(HealthHealthy))
	assert.Equal(t, HealthDegraded, HealthHealthy.Worse(HealthDegraded))
	assert.Equal(t, HealthDegraded, HealthDegraded.Worse(HealthDegraded))
	assert.Equal(t, HealthHealthy, HealthHealthy.Worse(HealthHealthy))
	assert.Equal(t, HealthDown, HealthDegraded.Worse(HealthDown))
}

func TestHealth_Valid(t *testing.T) {
	assert.True(t, HealthHealthy.Valid())
	assert.True(t, HealthDegraded.Valid())
	assert.True(t, HealthDown.Valid())
	assert.False(t, Health("ok").Valid())
	assert.False(t, Health("").Valid())
}

// TestSnapshot_WireShape pins the JSON field names the dashboard depends
// on. Renaming any of these is a breaking change.
func TestSnapshot_WireShape(t *testing.T) {
	ts := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	pass := 0.98
	total := 100

	snap := Snapshot{
		GeneratedAt: ts,
		Summary: Summary{
			OverallStatus: HealthDegraded,
			Notes:         "live source unavailable, served static snapshot",
		},
		Projects: []ProjectMetric{
			{
				Name:    "API Gateway",
				RepoID:  "acme/api",
				Type:    ProjectTypeService,
				Status:  HealthHealthy,
				LastRun: &ts,
				Tests:   &TestStats{Total: &total, PassRate: &pass},
				CI:      CIInfo{RunsURL: "https://github.com/acme/api/actions"},
				Debug: &DebugInfo{
					ScannedRuns:         2,
					MatchedRunID:        991,
					MatchedArtifactName: "qa-metrics",
				},
			},
		},
	}

	buf, err := json.Marshal(snap)
	require.NoError(t, err)

	body := string(buf)
	for _, field := range []string{
		`"generatedAt"`, `"summary"`, `"overallStatus"`, `"notes"`,
		`"projects"`, `"repoId"`, `"lastRun"`, `"passRate"`, `"runsUrl"`,
		`"scannedRuns"`, `"matchedRunId"`, `"matchedArtifactName"`,
	} {
		assert.Contains(t, body, field)
	}
	// Optional sections absent from the struct must be absent on the wire.
	assert.NotContains(t, body, `"performance"`)
	assert.NotContains(t, body, `"security"`)
	assert.NotContains(t, body, `"targets"`)
	assert.NotContains(t, body, `"reportUrl"`)
}

func TestRunArtifactContext_Debug(t *testing.T) {
	ctx := RunArtifactContext{
		RunsURL:             "https://github.com/acme/api/actions",
		RunID:               1002,
		RunURL:              "https://github.com/acme/api/actions/runs/1002",
		ScannedRuns:         4,
		MatchedRunID:        998,
		MatchedRunURL:       "https://github.com/acme/api/actions/runs/998",
		MatchedArtifactName: "qa-metrics",
	}

	dbg := ctx.Debug()
	assert.Equal(t, 4, dbg.ScannedRuns)
	assert.Equal(t, int64(1002), dbg.LatestRunID)
	assert.Equal(t, int64(998), dbg.MatchedRunID)
	assert.Equal(t, "qa-metrics", dbg.MatchedArtifactName)
}
