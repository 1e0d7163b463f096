// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qapulse/qapulse/services/telemetry/datatypes"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func baseMetric() datatypes.ProjectMetric {
	return datatypes.ProjectMetric{
		Name:   "API",
		RepoID: "acme/api",
		Type:   datatypes.ProjectTypeService,
		Status: datatypes.HealthHealthy,
		Tests: &datatypes.TestStats{
			Total:    intp(100),
			Pass:     intp(99),
			PassRate: floatp(0.99),
		},
		Security: &datatypes.SecurityCounts{High: intp(2)},
		CI:       datatypes.CIInfo{RunsURL: "https://github.com/acme/api/actions"},
	}
}

func TestMerge_NilPayloadReturnsBaseUnchanged(t *testing.T) {
	base := baseMetric()
	merged := Merge(base, nil)

	assert.Equal(t, base, merged)
}

func TestMerge_PayloadOverridesPresentFields(t *testing.T) {
	base := baseMetric()
	payload := &datatypes.RawMetrics{
		Tests: &datatypes.RawTestStats{
			Total:    intp(120),
			PassRate: floatp(0.95),
		},
	}

	merged := Merge(base, payload)

	assert.Equal(t, 120, *merged.Tests.Total)
	assert.InDelta(t, 0.95, *merged.Tests.PassRate, 1e-9)
	// Fields the payload omitted keep their base values.
	assert.Equal(t, 99, *merged.Tests.Pass)
	assert.Equal(t, 2, *merged.Security.High)
}

// TestMerge_AbsenceNeverOverwrites is the non-destruction property: any
// field absent from the payload equals the base field after merging.
func TestMerge_AbsenceNeverOverwrites(t *testing.T) {
	base := baseMetric()
	payload := &datatypes.RawMetrics{
		Security: &datatypes.RawSecurity{Critical: intp(1)},
	}

	merged := Merge(base, payload)

	require.NotNil(t, merged.Tests)
	assert.Equal(t, *base.Tests.Total, *merged.Tests.Total)
	assert.Equal(t, *base.Tests.Pass, *merged.Tests.Pass)
	assert.InDelta(t, *base.Tests.PassRate, *merged.Tests.PassRate, 1e-9)
	assert.Equal(t, 1, *merged.Security.Critical)
	assert.Equal(t, 2, *merged.Security.High)
}

func TestMerge_NewSectionOnEmptyBase(t *testing.T) {
	base := datatypes.ProjectMetric{Name: "Web", RepoID: "acme/web"}
	payload := &datatypes.RawMetrics{
		Performance: &datatypes.RawPerformance{
			Lighthouse: &datatypes.RawLighthouse{
				Performance: floatp(0.91),
				SEO:         floatp(1),
			},
		},
	}

	merged := Merge(base, payload)

	require.NotNil(t, merged.Performance)
	require.NotNil(t, merged.Performance.Lighthouse)
	assert.InDelta(t, 0.91, *merged.Performance.Lighthouse.Performance, 1e-9)
	assert.Nil(t, merged.Performance.Lighthouse.Accessibility)
	assert.Nil(t, merged.Tests)
}

func TestMerge_DoesNotMutateBase(t *testing.T) {
	base := baseMetric()
	payload := &datatypes.RawMetrics{
		Tests: &datatypes.RawTestStats{Total: intp(500)},
	}

	merged := Merge(base, payload)

	assert.Equal(t, 100, *base.Tests.Total, "base must not be mutated")
	assert.Equal(t, 500, *merged.Tests.Total)

	// The result must not alias base's pointers either.
	*merged.Tests.Pass = 1
	assert.Equal(t, 99, *base.Tests.Pass)
}

func TestMerge_NeverDerivesPassRate(t *testing.T) {
	base := datatypes.ProjectMetric{Name: "Svc", RepoID: "acme/svc"}
	payload := &datatypes.RawMetrics{
		Tests: &datatypes.RawTestStats{Total: intp(10), Pass: intp(9)},
	}

	merged := Merge(base, payload)

	require.NotNil(t, merged.Tests)
	assert.Nil(t, merged.Tests.PassRate, "passRate must not be fabricated from pass/total")
}
