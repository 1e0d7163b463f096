// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/qapulse/qapulse/services/telemetry/config"
	"github.com/qapulse/qapulse/services/telemetry/datatypes"
)

// StaticSource serves the bundled snapshot file, the last real tier in
// the fallback chain.
type StaticSource struct {
	Path string
}

// Mode identifies the static tier.
func (s *StaticSource) Mode() Mode { return ModeStatic }

// Fetch reads and validates the static snapshot file.
func (s *StaticSource) Fetch(ctx context.Context) (datatypes.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Snapshot{}, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return datatypes.Snapshot{}, fmt.Errorf("static snapshot read: %w", err)
	}

	var snap datatypes.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return datatypes.Snapshot{}, &datatypes.ValidationError{Reason: "static snapshot is not valid JSON: " + err.Error()}
	}
	if err := validateSnapshot(&snap); err != nil {
		return datatypes.Snapshot{}, err
	}
	return snap, nil
}

// Synthetic builds the terminal snapshot served when every tier failed.
// Each tracked repository is listed as down so dashboards render a
// complete, honest picture instead of an error page.
func Synthetic(repos []config.Repo, reason string) datatypes.Snapshot {
	projects := make([]datatypes.ProjectMetric, len(repos))
	for i, repo := range repos {
		projects[i] = datatypes.ProjectMetric{
			Name:   repo.Name,
			RepoID: repo.RepoID,
			Type:   repo.Type,
			Status: datatypes.HealthDown,
			CI: datatypes.CIInfo{
				RunsURL:   fmt.Sprintf("https://github.com/%s/actions", repo.RepoID),
				ReportURL: repo.ReportURL,
			},
		}
	}
	return datatypes.Snapshot{
		GeneratedAt: time.Now().UTC(),
		Summary: datatypes.Summary{
			OverallStatus: datatypes.HealthDown,
			Notes:         reason,
		},
		Projects: projects,
	}
}
