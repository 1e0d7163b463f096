// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qapulse/qapulse/pkg/logging"
)

func TestRootCommand_SubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["snapshot"])
	assert.True(t, names["upload"])
	assert.True(t, names["check"])
}

func TestRunSnapshot_MissingReposFile(t *testing.T) {
	cliLogger = logging.Default()
	reposFile = filepath.Join(t.TempDir(), "absent.yaml")

	err := runSnapshot(&cobra.Command{}, nil)
	assert.Error(t, err)
}

func TestRunUpload_RejectsMalformedSnapshot(t *testing.T) {
	cliLogger = logging.Default()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"summary":{}}`), 0o600))
	snapshotPath = path

	err := runUpload(&cobra.Command{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid snapshot")
}

func TestRunUpload_MissingFile(t *testing.T) {
	cliLogger = logging.Default()
	snapshotPath = filepath.Join(t.TempDir(), "absent.json")

	err := runUpload(&cobra.Command{}, nil)
	assert.Error(t, err)
}

func TestRunCheck_ReportsRepos(t *testing.T) {
	cliLogger = logging.Default()
	path := filepath.Join(t.TempDir(), "repos.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repositories:\n  - repo: acme/web\n"), 0o600))
	reposFile = path
	t.Setenv("GITHUB_TOKEN", "")

	err := runCheck(&cobra.Command{}, nil)
	assert.NoError(t, err)
}
