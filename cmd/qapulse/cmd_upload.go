// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/qapulse/qapulse/services/telemetry/datatypes"
	"github.com/qapulse/qapulse/services/telemetry/gcs"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Publish a snapshot file to cloud storage",
	Long: `Uploads a snapshot JSON file to the GCS bucket the service's cloud
tier reads from. The file is validated before upload so a broken
document never replaces a good one.`,
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", snapshotPath, err)
	}

	var snap datatypes.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%s is not a valid snapshot: %w", snapshotPath, err)
	}
	if snap.GeneratedAt.IsZero() {
		return fmt.Errorf("%s is not a valid snapshot: generatedAt is missing", snapshotPath)
	}
	if !snap.Summary.OverallStatus.Valid() {
		return fmt.Errorf("%s is not a valid snapshot: unknown overall status %q",
			snapshotPath, snap.Summary.OverallStatus)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	client, err := gcs.NewClient(ctx, gcsBucket, gcsKeyFile)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.WriteObject(ctx, gcsObject, data); err != nil {
		return err
	}

	cliLogger.Info("snapshot uploaded",
		"bucket", gcsBucket, "object", gcsObject,
		"generated_at", snap.GeneratedAt.Format(time.RFC3339),
		"projects", len(snap.Projects))
	fmt.Printf("Successfully uploaded %s to gs://%s/%s\n", snapshotPath, gcsBucket, gcsObject)
	return nil
}
