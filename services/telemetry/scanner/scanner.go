// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scanner locates the newest CI run that produced a named
// evidence artifact.
//
// CI histories are noisy: unrelated workflows, cancelled runs, and runs
// that simply never uploaded the artifact sit between valid evidence
// runs. The scanner walks a bounded window of recent runs newest-first
// and stops at the first exact name match, which both minimizes upstream
// calls and guarantees "most recent available evidence" semantics.
package scanner

import (
	"context"
	"fmt"

	"github.com/qapulse/qapulse/pkg/validation"
	"github.com/qapulse/qapulse/services/telemetry/datatypes"
	"github.com/qapulse/qapulse/services/telemetry/ghclient"
)

// DefaultMaxRuns is the scan depth used when the caller passes 0.
const DefaultMaxRuns = 20

// RunLister is the slice of the CI client the scanner needs.
type RunLister interface {
	ListRecentRuns(ctx context.Context, repo string, limit int) ([]ghclient.WorkflowRun, error)
	ListArtifacts(ctx context.Context, repo string, runID int64) ([]ghclient.Artifact, error)
}

// ArtifactLocation identifies a downloadable evidence artifact.
type ArtifactLocation struct {
	RunID    int64
	RunURL   string
	Artifact ghclient.Artifact
}

// Result is everything a scan learned, populated regardless of whether
// a match was found so callers always have provenance to report.
type Result struct {
	// Location is nil when no run in the window exposed the artifact.
	Location *ArtifactLocation

	// Context carries scan provenance for the snapshot's debug block.
	Context datatypes.RunArtifactContext

	// Newest is the most recent run seen, nil when the repository has
	// no runs at all. Its conclusion drives the project's status.
	Newest *ghclient.WorkflowRun
}

// Scanner drives bounded artifact discovery over a RunLister.
type Scanner struct {
	Client RunLister
}

// New creates a Scanner over the given client.
func New(client RunLister) *Scanner {
	return &Scanner{Client: client}
}

// Scan walks up to maxRuns recent runs of repo, newest first, and stops
// at the first run exposing an unexpired artifact named artifactName.
//
// The returned Result.Context is always populated: RunsURL, the newest
// run's id and url, and ScannedRuns (how many runs were actually
// examined, never more than maxRuns). The scan is sequential by
// contract: parallelizing run inspection would break "stop at first
// match, newest first".
func (s *Scanner) Scan(ctx context.Context, repo, artifactName string, maxRuns int) (Result, error) {
	result := Result{
		Context: datatypes.RunArtifactContext{
			RunsURL: fmt.Sprintf("https://github.com/%s/actions", repo),
		},
	}

	if err := validation.ValidateArtifactName(artifactName); err != nil {
		return result, err
	}
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}

	runs, err := s.Client.ListRecentRuns(ctx, repo, maxRuns)
	if err != nil {
		return result, fmt.Errorf("listing runs for %s: %w", repo, err)
	}
	if len(runs) == 0 {
		return result, nil
	}
	if len(runs) > maxRuns {
		// The provider should honor per_page, but the cap is ours to enforce.
		runs = runs[:maxRuns]
	}

	newest := runs[0]
	result.Newest = &newest
	result.Context.RunID = newest.ID
	result.Context.RunURL = newest.HTMLURL

	for i, run := range runs {
		result.Context.ScannedRuns = i + 1

		artifacts, err := s.Client.ListArtifacts(ctx, repo, run.ID)
		if err != nil {
			return result, fmt.Errorf("listing artifacts for %s run %d: %w", repo, run.ID, err)
		}
		for _, artifact := range artifacts {
			if artifact.Name != artifactName || artifact.Expired {
				continue
			}
			result.Location = &ArtifactLocation{
				RunID:    run.ID,
				RunURL:   run.HTMLURL,
				Artifact: artifact,
			}
			result.Context.MatchedRunID = run.ID
			result.Context.MatchedRunURL = run.HTMLURL
			result.Context.MatchedArtifactName = artifact.Name
			return result, nil
		}
	}

	// Window exhausted without a match; context still reports how far
	// the scan got.
	return result, nil
}
