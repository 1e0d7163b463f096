// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads telemetry service configuration.
//
// Runtime knobs come from environment variables with defaults, the
// tracked-repository list comes from a YAML file. The token is held as
// a plain string and must never be logged; log token_present instead.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qapulse/qapulse/pkg/validation"
	"github.com/qapulse/qapulse/services/telemetry/datatypes"
)

// Defaults.
const (
	DefaultPort          = "8090"
	DefaultReposFile     = "repos.yaml"
	DefaultStaticPath    = "data/status-snapshot.json"
	DefaultArtifactName  = "qa-metrics"
	DefaultScanDepth     = 20
	DefaultCacheTTL      = 60 * time.Second
	DefaultRepoTimeout   = 12 * time.Second
	DefaultBatchDeadline = 45 * time.Second
)

// ConfigurationError reports a missing or malformed configuration
// value. It is recoverable at the per-repository level and fatal only
// at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Field, e.Reason)
}

// Repo describes one tracked repository.
type Repo struct {
	Name      string                `yaml:"name"`
	RepoID    string                `yaml:"repo"`
	Type      datatypes.ProjectType `yaml:"type"`
	Artifact  string                `yaml:"artifact"`
	ReportURL string                `yaml:"reportUrl"`
}

// reposFile is the on-disk shape of the repository list.
type reposFile struct {
	Targets      *datatypes.ReliabilityTargets `yaml:"targets"`
	Repositories []Repo                        `yaml:"repositories"`
}

// Config is the assembled service configuration.
type Config struct {
	Port        string
	GitHubToken string

	Repos   []Repo
	Targets *datatypes.ReliabilityTargets

	ScanDepth     int
	CacheTTL      time.Duration
	RepoTimeout   time.Duration
	BatchDeadline time.Duration

	StaticSnapshotPath string

	// Cloud tier. Empty bucket disables cloud mode with a typed error
	// at request time rather than silently skipping the tier.
	GCSBucket  string
	GCSObject  string
	GCSKeyFile string

	// RefreshToken gates POST /v1/status/refresh. Empty disables the
	// endpoint (fail closed).
	RefreshToken string
}

// Load assembles configuration from the environment and the repos file
// named by QAPULSE_REPOS_FILE (default repos.yaml).
func Load() (*Config, error) {
	cfg := &Config{
		Port:               envOr("QAPULSE_PORT", DefaultPort),
		GitHubToken:        os.Getenv("GITHUB_TOKEN"),
		ScanDepth:          envIntOr("QAPULSE_SCAN_DEPTH", DefaultScanDepth),
		CacheTTL:           envDurationOr("QAPULSE_CACHE_TTL", DefaultCacheTTL),
		RepoTimeout:        envDurationOr("QAPULSE_REPO_TIMEOUT", DefaultRepoTimeout),
		BatchDeadline:      envDurationOr("QAPULSE_BATCH_DEADLINE", DefaultBatchDeadline),
		StaticSnapshotPath: envOr("QAPULSE_STATIC_SNAPSHOT", DefaultStaticPath),
		GCSBucket:          os.Getenv("QAPULSE_GCS_BUCKET"),
		GCSObject:          envOr("QAPULSE_GCS_OBJECT", "status-snapshot.json"),
		GCSKeyFile:         os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		RefreshToken:       os.Getenv("QAPULSE_REFRESH_TOKEN"),
	}

	reposPath := envOr("QAPULSE_REPOS_FILE", DefaultReposFile)
	repos, targets, err := LoadRepos(reposPath)
	if err != nil {
		return nil, err
	}
	cfg.Repos = repos
	cfg.Targets = targets

	if cfg.ScanDepth <= 0 {
		return nil, &ConfigurationError{Field: "QAPULSE_SCAN_DEPTH", Reason: "must be positive"}
	}
	return cfg, nil
}

// LoadRepos reads and validates the tracked-repository list.
func LoadRepos(path string) ([]Repo, *datatypes.ReliabilityTargets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &ConfigurationError{Field: "repos file", Reason: err.Error()}
	}

	var parsed reposFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, nil, &ConfigurationError{Field: "repos file", Reason: "invalid YAML: " + err.Error()}
	}
	if len(parsed.Repositories) == 0 {
		return nil, nil, &ConfigurationError{Field: "repositories", Reason: "at least one tracked repository is required"}
	}

	for i := range parsed.Repositories {
		repo := &parsed.Repositories[i]
		sanitized, err := validation.SanitizeRepoID(repo.RepoID)
		if err != nil {
			return nil, nil, &ConfigurationError{
				Field:  fmt.Sprintf("repositories[%d].repo", i),
				Reason: err.Error(),
			}
		}
		repo.RepoID = sanitized

		if repo.Name == "" {
			repo.Name = repo.RepoID
		}
		if repo.Type == "" {
			repo.Type = datatypes.ProjectTypeProject
		}
		if repo.Artifact == "" {
			repo.Artifact = DefaultArtifactName
		}
		if err := validation.ValidateArtifactName(repo.Artifact); err != nil {
			return nil, nil, &ConfigurationError{
				Field:  fmt.Sprintf("repositories[%d].artifact", i),
				Reason: err.Error(),
			}
		}
	}
	return parsed.Repositories, parsed.Targets, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
