// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/qapulse/qapulse/pkg/logging"
)

// --- Global Command Variables ---
var (
	reposFile    string
	logLevel     string
	logDir       string
	outputPath   string
	scanDepth    int
	gcsBucket    string
	gcsObject    string
	gcsKeyFile   string
	snapshotPath string

	cliLogger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "qapulse",
		Short: "A cli to collect and publish QAPulse telemetry snapshots",
		Long: `QAPulse aggregates CI quality evidence (test results, performance
budgets, security findings) across tracked repositories into one
health snapshot.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cliLogger = logging.New(logging.Config{
				Level:   logging.ParseLevel(logLevel),
				LogDir:  logDir,
				Service: "cli",
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cliLogger != nil {
				cliLogger.Close()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&reposFile, "repos", "repos.yaml", "Path to the tracked-repository list")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Minimum log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for JSON log files (disabled when empty)")

	snapshotCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the snapshot to a file instead of stdout")
	snapshotCmd.Flags().IntVar(&scanDepth, "depth", 0, "Workflow runs to scan per repository (0 uses the default)")
	rootCmd.AddCommand(snapshotCmd)

	uploadCmd.Flags().StringVar(&gcsBucket, "bucket", "", "Destination GCS bucket (required)")
	uploadCmd.Flags().StringVar(&gcsObject, "object", "status-snapshot.json", "Destination object name")
	uploadCmd.Flags().StringVar(&gcsKeyFile, "key-file", "", "Service account key file (ambient credentials when empty)")
	uploadCmd.Flags().StringVar(&snapshotPath, "file", "", "Snapshot file to upload (required)")
	uploadCmd.MarkFlagRequired("bucket")
	uploadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(uploadCmd)

	rootCmd.AddCommand(checkCmd)
}
