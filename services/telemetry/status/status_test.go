// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package status

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qapulse/qapulse/services/telemetry/datatypes"
)

func strp(s string) *string { return &s }

func TestFromConclusion(t *testing.T) {
	cases := []struct {
		name       string
		conclusion *string
		want       datatypes.Health
	}{
		{"success is healthy", strp("success"), datatypes.HealthHealthy},
		{"failure is degraded", strp("failure"), datatypes.HealthDegraded},
		{"cancelled is degraded", strp("cancelled"), datatypes.HealthDegraded},
		{"timed_out is degraded", strp("timed_out"), datatypes.HealthDegraded},
		{"action_required is degraded", strp("action_required"), datatypes.HealthDegraded},
		{"no run is down", nil, datatypes.HealthDown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FromConclusion(tc.conclusion))
		})
	}
}

func withStatus(statuses ...datatypes.Health) []datatypes.ProjectMetric {
	projects := make([]datatypes.ProjectMetric, len(statuses))
	for i, s := range statuses {
		projects[i] = datatypes.ProjectMetric{Status: s}
	}
	return projects
}

func TestOverall_WorstCaseFold(t *testing.T) {
	assert.Equal(t, datatypes.HealthHealthy,
		Overall(withStatus(datatypes.HealthHealthy, datatypes.HealthHealthy)))
	assert.Equal(t, datatypes.HealthDegraded,
		Overall(withStatus(datatypes.HealthHealthy, datatypes.HealthDegraded)))
	assert.Equal(t, datatypes.HealthDown,
		Overall(withStatus(datatypes.HealthDegraded, datatypes.HealthDown, datatypes.HealthHealthy)))
}

func TestOverall_EmptyListIsHealthy(t *testing.T) {
	assert.Equal(t, datatypes.HealthHealthy, Overall(nil))
}

// TestOverall_OrderIndependent shuffles a fixed multiset of statuses and
// asserts the fold result never changes.
func TestOverall_OrderIndependent(t *testing.T) {
	statuses := []datatypes.Health{
		datatypes.HealthHealthy, datatypes.HealthHealthy,
		datatypes.HealthDegraded, datatypes.HealthDown,
		datatypes.HealthHealthy,
	}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		rng.Shuffle(len(statuses), func(a, b int) {
			statuses[a], statuses[b] = statuses[b], statuses[a]
		})
		assert.Equal(t, datatypes.HealthDown, Overall(withStatus(statuses...)))
	}
}

func TestOverall_DegradedWithoutDown(t *testing.T) {
	statuses := []datatypes.Health{
		datatypes.HealthDegraded, datatypes.HealthHealthy, datatypes.HealthDegraded,
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(statuses), func(a, b int) {
			statuses[a], statuses[b] = statuses[b], statuses[a]
		})
		assert.Equal(t, datatypes.HealthDegraded, Overall(withStatus(statuses...)))
	}
}
