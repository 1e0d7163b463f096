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

	"github.com/qapulse/qapulse/services/telemetry/config"
	"github.com/qapulse/qapulse/services/telemetry/datatypes"
)

// ObjectReader is the slice of the storage client the cloud tier needs.
type ObjectReader interface {
	ReadObject(ctx context.Context, objectPath string) ([]byte, error)
}

// CloudSource serves the snapshot previously published to object
// storage by the upload CLI.
//
// An unconfigured cloud tier (no bucket) fails with a
// ConfigurationError rather than being skipped silently, so the
// fallback is visible in notes and logs.
type CloudSource struct {
	Reader ObjectReader
	Object string
}

// Mode identifies the cloud tier.
func (s *CloudSource) Mode() Mode { return ModeCloud }

// Fetch downloads and validates the published snapshot object.
func (s *CloudSource) Fetch(ctx context.Context) (datatypes.Snapshot, error) {
	if s == nil || s.Reader == nil {
		return datatypes.Snapshot{}, &config.ConfigurationError{
			Field:  "QAPULSE_GCS_BUCKET",
			Reason: "cloud snapshot source is not configured",
		}
	}

	data, err := s.Reader.ReadObject(ctx, s.Object)
	if err != nil {
		return datatypes.Snapshot{}, fmt.Errorf("cloud snapshot read: %w", err)
	}

	var snap datatypes.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return datatypes.Snapshot{}, &datatypes.ValidationError{Reason: "cloud snapshot is not valid JSON: " + err.Error()}
	}
	if err := validateSnapshot(&snap); err != nil {
		return datatypes.Snapshot{}, err
	}
	return snap, nil
}
