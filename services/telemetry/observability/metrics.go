// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the telemetry
// service.
//
// Metrics cover the collection pipeline (upstream API calls, scan
// depth), the snapshot cache, and the fallback chain. They are exposed
// via the /metrics endpoint.
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "qapulse"

const telemetrySubsystem = "telemetry"

// TelemetryMetrics holds all Prometheus metrics for snapshot
// production and serving.
type TelemetryMetrics struct {
	// SnapshotRequestsTotal counts snapshot requests by requested mode
	// and the mode actually served.
	// Labels: requested (live, cloud, static), served (live, cloud, static, synthetic)
	SnapshotRequestsTotal *prometheus.CounterVec

	// UpstreamCallsTotal counts CI provider API calls by operation and
	// outcome.
	// Labels: operation (list_runs, list_artifacts, fetch_archive), status (success, error)
	UpstreamCallsTotal *prometheus.CounterVec

	// CacheEventsTotal counts cache lookups by mode and result.
	// Labels: mode, result (hit, miss)
	CacheEventsTotal *prometheus.CounterVec

	// FallbacksTotal counts tier transitions in the fallback chain.
	// Labels: from (live, cloud, static), to (cloud, static, synthetic)
	FallbacksTotal *prometheus.CounterVec

	// ScanDepth measures how many workflow runs were examined before a
	// collection settled, matched or not.
	ScanDepth prometheus.Histogram

	// CollectionDurationSeconds measures end-to-end live collection
	// time across all tracked repositories.
	CollectionDurationSeconds prometheus.Histogram

	// ProjectStatusTotal counts per-repository outcomes of each live
	// collection.
	// Labels: status (healthy, degraded, down)
	ProjectStatusTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of TelemetryMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *TelemetryMetrics

// InitMetrics creates and registers all metrics on the default
// Prometheus registry. Call once at startup; a second call panics on
// duplicate registration.
func InitMetrics() *TelemetryMetrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates the metric bundle on an explicit registerer.
// Tests pass a private registry to avoid duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *TelemetryMetrics {
	factory := promauto.With(reg)

	return &TelemetryMetrics{
		SnapshotRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: telemetrySubsystem,
				Name:      "snapshot_requests_total",
				Help:      "Total snapshot requests by requested and served mode",
			},
			[]string{"requested", "served"},
		),

		UpstreamCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: telemetrySubsystem,
				Name:      "upstream_calls_total",
				Help:      "Total CI provider API calls by operation and status",
			},
			[]string{"operation", "status"},
		),

		CacheEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: telemetrySubsystem,
				Name:      "cache_events_total",
				Help:      "Total snapshot cache lookups by mode and result",
			},
			[]string{"mode", "result"},
		),

		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: telemetrySubsystem,
				Name:      "fallbacks_total",
				Help:      "Total data-source fallbacks by tier transition",
			},
			[]string{"from", "to"},
		),

		ScanDepth: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: telemetrySubsystem,
				Name:      "scan_depth_runs",
				Help:      "Workflow runs examined per repository collection",
				Buckets:   []float64{1, 2, 3, 5, 10, 20},
			},
		),

		CollectionDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: telemetrySubsystem,
				Name:      "collection_duration_seconds",
				Help:      "End-to-end live collection duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 45},
			},
		),

		ProjectStatusTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: telemetrySubsystem,
				Name:      "project_status_total",
				Help:      "Per-repository status outcomes of live collections",
			},
			[]string{"status"},
		),
	}
}
