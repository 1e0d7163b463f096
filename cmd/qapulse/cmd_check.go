// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/qapulse/qapulse/services/telemetry/config"
	"github.com/qapulse/qapulse/services/telemetry/ghclient"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the repos file and CI provider credentials",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	repos, targets, err := config.LoadRepos(reposFile)
	if err != nil {
		return err
	}
	fmt.Printf("repos file OK: %d repositories tracked\n", len(repos))
	for _, repo := range repos {
		fmt.Printf("  - %s (%s, artifact %q)\n", repo.RepoID, repo.Type, repo.Artifact)
	}
	if targets != nil {
		fmt.Println("reliability targets present")
	}

	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		fmt.Println("GITHUB_TOKEN not set: collections will use unauthenticated rate limits")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	if err := ghclient.NewClient(token).ValidateToken(ctx); err != nil {
		return fmt.Errorf("token validation failed: %w", err)
	}
	fmt.Println("GITHUB_TOKEN OK")
	return nil
}
