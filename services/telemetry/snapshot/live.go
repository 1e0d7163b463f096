// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/qapulse/qapulse/services/telemetry/archive"
	"github.com/qapulse/qapulse/services/telemetry/config"
	"github.com/qapulse/qapulse/services/telemetry/datatypes"
	"github.com/qapulse/qapulse/services/telemetry/normalize"
	"github.com/qapulse/qapulse/services/telemetry/observability"
	"github.com/qapulse/qapulse/services/telemetry/scanner"
	"github.com/qapulse/qapulse/services/telemetry/status"
)

var liveTracer = otel.Tracer("qapulse.telemetry")

// metricsEntryName is the file looked up inside the evidence artifact
// archive. Matching is by base name, so CI uploads may nest it.
const metricsEntryName = "metrics.json"

// maxConcurrentRepos bounds the collection fan-out so a long repository
// list cannot stampede the provider API.
const maxConcurrentRepos = 4

// ErrAllRepositoriesFailed marks a live collection in which no tracked
// repository could be reached. The tier is considered failed and the
// fallback chain advances.
var ErrAllRepositoriesFailed = errors.New("live collection failed for all repositories")

// ArchiveFetcher is the slice of the CI client the collector needs
// beyond scanning.
type ArchiveFetcher interface {
	FetchArtifactArchive(ctx context.Context, url string) ([]byte, error)
}

// TokenValidator is implemented by clients that can check their
// credentials cheaply before a collection fans out.
type TokenValidator interface {
	ValidateToken(ctx context.Context) error
}

// Collector assembles a live snapshot from the CI provider.
//
// Collection is total per repository: a repo whose evidence cannot be
// fetched still appears in the snapshot, marked down or degraded, with
// whatever provenance the scan produced. Only when every repository
// fails does the tier itself fail.
type Collector struct {
	Repos     []config.Repo
	Scanner   *scanner.Scanner
	Fetcher   ArchiveFetcher
	ScanDepth int

	// RepoTimeout bounds one repository's collection; BatchDeadline
	// bounds the whole fan-out. When the batch deadline expires the tier
	// fails and the fallback chain advances.
	RepoTimeout   time.Duration
	BatchDeadline time.Duration

	Targets *datatypes.ReliabilityTargets
	Metrics *observability.TelemetryMetrics
	Logger  *slog.Logger

	// Validator, when set, is consulted before fanning out. A revoked
	// token fails the whole tier in one request instead of once per
	// repository.
	Validator TokenValidator
}

// Mode identifies the live tier.
func (c *Collector) Mode() Mode { return ModeLive }

// Fetch runs one full collection across all tracked repositories.
//
// Repositories are collected concurrently with a bounded fan-out; each
// gets its own timeout so one slow provider call cannot consume the
// whole batch deadline. Results keep the configured repository order.
func (c *Collector) Fetch(ctx context.Context) (datatypes.Snapshot, error) {
	ctx, span := liveTracer.Start(ctx, "telemetry.Collect")
	defer span.End()
	span.SetAttributes(attribute.Int("repos", len(c.Repos)))

	if c.BatchDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.BatchDeadline)
		defer cancel()
	}

	if c.Validator != nil {
		if err := c.Validator.ValidateToken(ctx); err != nil {
			return datatypes.Snapshot{}, fmt.Errorf("credential check failed: %w", err)
		}
	}

	started := time.Now()
	projects := make([]datatypes.ProjectMetric, len(c.Repos))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRepos)
	for i, repo := range c.Repos {
		i, repo := i, repo
		g.Go(func() error {
			repoCtx := gctx
			if c.RepoTimeout > 0 {
				var cancel context.CancelFunc
				repoCtx, cancel = context.WithTimeout(gctx, c.RepoTimeout)
				defer cancel()
			}

			metric, ok := c.collectOne(repoCtx, repo)
			projects[i] = metric
			if !ok {
				failed.Add(1)
			}
			return nil
		})
	}
	// Workers never return errors; per-repo failures are folded into
	// the snapshot instead.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return datatypes.Snapshot{}, err
	}
	if len(c.Repos) > 0 && failed.Load() == int64(len(c.Repos)) {
		return datatypes.Snapshot{}, ErrAllRepositoriesFailed
	}

	if c.Metrics != nil {
		c.Metrics.CollectionDurationSeconds.Observe(time.Since(started).Seconds())
	}

	return datatypes.Snapshot{
		GeneratedAt: time.Now().UTC(),
		Summary: datatypes.Summary{
			OverallStatus: status.Overall(projects),
			Targets:       c.Targets,
		},
		Projects: projects,
	}, nil
}

// collectOne builds the metric row for a single repository. The second
// return is false when the repository could not be reached at all.
func (c *Collector) collectOne(ctx context.Context, repo config.Repo) (datatypes.ProjectMetric, bool) {
	ctx, span := liveTracer.Start(ctx, "telemetry.CollectRepo")
	defer span.End()
	span.SetAttributes(attribute.String("repo", repo.RepoID))

	metric := datatypes.ProjectMetric{
		Name:   repo.Name,
		RepoID: repo.RepoID,
		Type:   repo.Type,
		Status: datatypes.HealthDown,
		CI:     datatypes.CIInfo{ReportURL: repo.ReportURL},
	}

	result, scanErr := c.Scanner.Scan(ctx, repo.RepoID, repo.Artifact, c.ScanDepth)
	metric.CI.RunsURL = result.Context.RunsURL
	metric.Debug = result.Context.Debug()
	c.observeScan(result)

	if scanErr != nil {
		c.logger().WarnContext(ctx, "run scan failed",
			"repo", repo.RepoID, "scanned_runs", result.Context.ScannedRuns, "error", scanErr)
		c.countStatus(metric.Status)
		return metric, false
	}

	if result.Newest != nil {
		metric.Status = status.FromConclusion(result.Newest.Conclusion)
		lastRun := result.Newest.UpdatedAt
		metric.LastRun = &lastRun
	}

	if result.Location != nil {
		metric = c.enrichFromArtifact(ctx, repo, metric, result.Location)
	}

	c.countStatus(metric.Status)
	return metric, true
}

// enrichFromArtifact downloads the evidence archive and merges its
// metrics document into the row. Any failure here leaves the row as-is;
// the CI conclusion already determined its status.
func (c *Collector) enrichFromArtifact(ctx context.Context, repo config.Repo, metric datatypes.ProjectMetric, loc *scanner.ArtifactLocation) datatypes.ProjectMetric {
	archiveBytes, err := c.Fetcher.FetchArtifactArchive(ctx, loc.Artifact.ArchiveDownloadURL)
	c.countUpstream("fetch_archive", err)
	if err != nil {
		c.logger().WarnContext(ctx, "artifact download failed",
			"repo", repo.RepoID, "run_id", loc.RunID, "error", err)
		return metric
	}

	content, found, err := archive.ExtractEntry(archiveBytes, metricsEntryName)
	if err != nil {
		c.logger().WarnContext(ctx, "artifact archive unreadable",
			"repo", repo.RepoID, "run_id", loc.RunID, "error", err)
		return metric
	}
	if !found {
		c.logger().WarnContext(ctx, "artifact has no metrics document",
			"repo", repo.RepoID, "run_id", loc.RunID, "entry", metricsEntryName)
		return metric
	}

	raw, droppedFields, err := datatypes.ParseRawMetrics([]byte(content))
	if err != nil {
		c.logger().WarnContext(ctx, "metrics document rejected",
			"repo", repo.RepoID, "run_id", loc.RunID, "error", err)
		return metric
	}
	if rejected := raw.Sanitize(); len(rejected) > 0 {
		droppedFields = append(droppedFields, rejected...)
	}
	if len(droppedFields) > 0 {
		c.logger().WarnContext(ctx, "metrics fields dropped",
			"repo", repo.RepoID, "run_id", loc.RunID, "fields", droppedFields)
	}

	return normalize.Merge(metric, raw)
}

func (c *Collector) observeScan(result scanner.Result) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.ScanDepth.Observe(float64(result.Context.ScannedRuns))
}

func (c *Collector) countUpstream(operation string, err error) {
	if c.Metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.Metrics.UpstreamCallsTotal.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) countStatus(health datatypes.Health) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.ProjectStatusTotal.WithLabelValues(string(health)).Inc()
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
