// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the wire model for quality telemetry snapshots.
//
// A Snapshot is the unit returned to callers: one immutable telemetry
// result covering all tracked repositories at a point in time. The JSON
// shapes in this package are consumed by existing dashboards and must not
// change field names or casing.
package datatypes

import "time"

// =============================================================================
// Health
// =============================================================================

// Health is the per-project and overall health classification.
//
// Values are totally ordered for worst-case aggregation:
// HealthDown < HealthDegraded < HealthHealthy.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthDown     Health = "down"
)

// healthRank orders Health values for worst-case folding. Lower is worse.
var healthRank = map[Health]int{
	HealthDown:     0,
	HealthDegraded: 1,
	HealthHealthy:  2,
}

// Worse returns the worse of two Health values.
func (h Health) Worse(other Health) Health {
	if healthRank[other] < healthRank[h] {
		return other
	}
	return h
}

// Valid reports whether h is one of the three known values.
func (h Health) Valid() bool {
	_, ok := healthRank[h]
	return ok
}

// =============================================================================
// Project identity
// =============================================================================

// ProjectType classifies a tracked repository.
type ProjectType string

const (
	ProjectTypePortfolio ProjectType = "portfolio"
	ProjectTypeProject   ProjectType = "project"
	ProjectTypeService   ProjectType = "service"
)

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is one complete telemetry result. It is immutable after
// creation: cached and historical copies are replaced, never edited.
type Snapshot struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Summary     Summary         `json:"summary"`
	Projects    []ProjectMetric `json:"projects"`
}

// Summary carries snapshot-level health and provenance.
//
// Notes is human-readable: it records which data source produced the
// snapshot and, on degradation, why the preferred source was unusable.
type Summary struct {
	OverallStatus Health              `json:"overallStatus"`
	Notes         string              `json:"notes"`
	Targets       *ReliabilityTargets `json:"targets,omitempty"`
}

// ReliabilityTargets are the published targets the dashboard renders
// alongside measured values. Both are fractions in [0,1].
type ReliabilityTargets struct {
	Availability *float64 `json:"availability,omitempty"`
	TestPassRate *float64 `json:"testPassRate,omitempty"`
}

// =============================================================================
// ProjectMetric
// =============================================================================

// ProjectMetric is one row per tracked repository.
//
// Optional sections are nil when unknown. A nil section means "no
// evidence", never "zero": absence is preserved through merging.
type ProjectMetric struct {
	Name    string      `json:"name"`
	RepoID  string      `json:"repoId"` // owner/repo
	Type    ProjectType `json:"type"`
	Status  Health      `json:"status"`
	LastRun *time.Time  `json:"lastRun,omitempty"`

	Tests       *TestStats       `json:"tests,omitempty"`
	Performance *Performance     `json:"performance,omitempty"`
	Security    *SecurityCounts  `json:"security,omitempty"`
	CI          CIInfo           `json:"ci"`
	Debug       *DebugInfo       `json:"debug,omitempty"`
}

// TestStats holds test-suite outcomes. Every field is individually
// optional; rates are fractions in [0,1] and are never recomputed from
// pass/total by this layer.
type TestStats struct {
	Total     *int     `json:"total,omitempty"`
	Pass      *int     `json:"pass,omitempty"`
	Fail      *int     `json:"fail,omitempty"`
	PassRate  *float64 `json:"passRate,omitempty"`
	FlakeRate *float64 `json:"flakeRate,omitempty"`
}

// Performance holds performance-budget measurements.
type Performance struct {
	Lighthouse *Lighthouse `json:"lighthouse,omitempty"`
}

// Lighthouse category scores, each a fraction in [0,1] or absent.
type Lighthouse struct {
	Performance    *float64 `json:"performance,omitempty"`
	Accessibility  *float64 `json:"accessibility,omitempty"`
	BestPractices  *float64 `json:"bestPractices,omitempty"`
	SEO            *float64 `json:"seo,omitempty"`
}

// SecurityCounts holds open findings by severity, non-negative.
type SecurityCounts struct {
	Critical *int `json:"critical,omitempty"`
	High     *int `json:"high,omitempty"`
	Medium   *int `json:"medium,omitempty"`
	Low      *int `json:"low,omitempty"`
}

// CIInfo links back to the upstream CI provider.
type CIInfo struct {
	RunsURL   string `json:"runsUrl"`
	ReportURL string `json:"reportUrl,omitempty"`
}

// DebugInfo carries scan provenance for live-mode snapshots only.
// It holds identifiers and URLs, never credentials.
type DebugInfo struct {
	ScannedRuns         int    `json:"scannedRuns"`
	LatestRunID         int64  `json:"latestRunId,omitempty"`
	LatestRunURL        string `json:"latestRunUrl,omitempty"`
	MatchedRunID        int64  `json:"matchedRunId,omitempty"`
	MatchedRunURL       string `json:"matchedRunUrl,omitempty"`
	MatchedArtifactName string `json:"matchedArtifactName,omitempty"`
}

// =============================================================================
// Scanner output
// =============================================================================

// RunArtifactContext is returned by the artifact scanner regardless of
// whether a matching artifact was found. It feeds DebugInfo.
type RunArtifactContext struct {
	RunsURL             string
	RunID               int64  // newest run seen, 0 if none
	RunURL              string // newest run seen
	ScannedRuns         int    // runs actually examined
	MatchedRunID        int64  // 0 unless a match was found
	MatchedRunURL       string
	MatchedArtifactName string
}

// Debug converts the scan context into the snapshot's debug block.
func (c RunArtifactContext) Debug() *DebugInfo {
	return &DebugInfo{
		ScannedRuns:         c.ScannedRuns,
		LatestRunID:         c.RunID,
		LatestRunURL:        c.RunURL,
		MatchedRunID:        c.MatchedRunID,
		MatchedRunURL:       c.MatchedRunURL,
		MatchedArtifactName: c.MatchedArtifactName,
	}
}
