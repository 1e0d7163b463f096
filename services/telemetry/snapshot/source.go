// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package snapshot produces telemetry snapshots and serves them through
// a fixed fallback chain.
//
// Three data sources exist, ordered by freshness: live (collect from
// the CI provider now), cloud (a snapshot previously published to
// object storage), and static (a bundled file). A request names its
// preferred source; when that source fails, the chain advances one
// tier at a time and never climbs back up. The static tier is terminal:
// if it also fails, a minimal synthetic snapshot is served so callers
// always receive a well-formed document.
package snapshot

import (
	"context"

	"github.com/qapulse/qapulse/services/telemetry/datatypes"
)

// Mode names a snapshot data source.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeCloud  Mode = "cloud"
	ModeStatic Mode = "static"

	// ModeSynthetic is never requestable; it labels the terminal
	// last-resort snapshot in responses and metrics.
	ModeSynthetic Mode = "synthetic"
)

// ParseMode maps a request parameter to a Mode. Empty defaults to live.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", string(ModeLive):
		return ModeLive, true
	case string(ModeCloud):
		return ModeCloud, true
	case string(ModeStatic):
		return ModeStatic, true
	default:
		return "", false
	}
}

// next returns the tier below m, or false at the bottom of the chain.
func (m Mode) next() (Mode, bool) {
	switch m {
	case ModeLive:
		return ModeCloud, true
	case ModeCloud:
		return ModeStatic, true
	default:
		return "", false
	}
}

// Source produces one snapshot from a single tier.
type Source interface {
	Mode() Mode
	Fetch(ctx context.Context) (datatypes.Snapshot, error)
}

// validateSnapshot rejects decoded documents that would confuse
// downstream consumers. Cloud and static tiers share it; a tier whose
// document fails here is treated as failed, which advances the chain.
func validateSnapshot(snap *datatypes.Snapshot) error {
	if snap.GeneratedAt.IsZero() {
		return &datatypes.ValidationError{Field: "generatedAt", Reason: "missing or zero"}
	}
	if !snap.Summary.OverallStatus.Valid() {
		return &datatypes.ValidationError{Field: "summary.overallStatus", Reason: "unknown health value"}
	}
	for i := range snap.Projects {
		if !snap.Projects[i].Status.Valid() {
			return &datatypes.ValidationError{Field: "projects[].status", Reason: "unknown health value"}
		}
	}
	return nil
}
