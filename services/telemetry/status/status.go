// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package status derives health classifications from CI outcomes.
package status

import "github.com/qapulse/qapulse/services/telemetry/datatypes"

// FromConclusion maps a provider run conclusion to project health.
//
// success means the latest run is green. Any other non-nil conclusion
// (failure, cancelled, timed_out, action_required, …) means the project
// produced a run that did not succeed. A nil conclusion means no
// completed run was found at all, which is the worst signal.
func FromConclusion(conclusion *string) datatypes.Health {
	switch {
	case conclusion == nil:
		return datatypes.HealthDown
	case *conclusion == "success":
		return datatypes.HealthHealthy
	default:
		return datatypes.HealthDegraded
	}
}

// Overall folds per-project statuses into snapshot health: down if any
// project is down, else degraded if any is degraded, else healthy.
//
// The fold is order-independent and derivable purely from the projects
// list; there is no hidden state. An empty list is healthy by
// definition (nothing tracked, nothing broken); callers producing
// empty snapshots for error reasons set their own status.
func Overall(projects []datatypes.ProjectMetric) datatypes.Health {
	overall := datatypes.HealthHealthy
	for _, p := range projects {
		overall = overall.Worse(p.Status)
	}
	return overall
}
