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

	"github.com/qapulse/qapulse/services/telemetry/config"
	"github.com/qapulse/qapulse/services/telemetry/ghclient"
	"github.com/qapulse/qapulse/services/telemetry/scanner"
	"github.com/qapulse/qapulse/services/telemetry/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run one live collection and print the snapshot as JSON",
	Long: `Collects CI evidence for every repository in the repos file and
prints the resulting snapshot. Use --output to write a file suitable
for 'qapulse upload' or for serving as the static fallback.`,
	RunE: runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	repos, targets, err := config.LoadRepos(reposFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	client := ghclient.NewClient(os.Getenv("GITHUB_TOKEN"))
	collector := &snapshot.Collector{
		Repos:       repos,
		Scanner:     scanner.New(client),
		Fetcher:     client,
		ScanDepth:   scanDepth,
		RepoTimeout: config.DefaultRepoTimeout,
		Targets:     targets,
		Logger:      cliLogger.Slog(),
	}

	cliLogger.Info("collecting snapshot", "repos", len(repos),
		"token_present", os.Getenv("GITHUB_TOKEN") != "")

	snap, err := collector.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}
	snap.Summary.Notes = "source: live"

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if outputPath == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(outputPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	cliLogger.Info("snapshot written", "path", outputPath,
		"overall", string(snap.Summary.OverallStatus))
	return nil
}
