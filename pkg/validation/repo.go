// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for identifiers that end up inside
// upstream API URLs. Using these validators prevents path traversal and
// URL injection through a hostile repository list or artifact name.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// repoPattern matches a GitHub "owner/name" repository id.
// Owner and name each allow letters, digits, hyphens, underscores and
// dots, but neither may be "." or ".." and neither may be empty.
var repoPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,99}/[A-Za-z0-9_.\-]{1,100}$`)

// artifactPattern matches a CI artifact name: printable, no path
// separators, max 128 characters.
var artifactPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\- ]{0,127}$`)

// ValidateRepoID validates an "owner/name" repository identifier before
// it is interpolated into an upstream API path.
//
// Example:
//
//	if err := validation.ValidateRepoID(repo); err != nil {
//	    return nil, fmt.Errorf("invalid repository: %w", err)
//	}
//	// Safe to use in a request URL
func ValidateRepoID(repo string) error {
	if repo == "" {
		return fmt.Errorf("repository id cannot be empty")
	}
	if !repoPattern.MatchString(repo) {
		return fmt.Errorf("invalid repository id: %q (expected owner/name)", repo)
	}
	owner, name, _ := strings.Cut(repo, "/")
	if owner == "." || owner == ".." || name == "." || name == ".." {
		return fmt.Errorf("invalid repository id: %q (dot segments not allowed)", repo)
	}
	return nil
}

// SanitizeRepoID trims whitespace and validates a repository identifier.
// Returns the trimmed id if valid, or an error if invalid. Case is
// preserved: GitHub repository names are case-insensitive but URLs
// render better with the configured casing.
func SanitizeRepoID(repo string) (string, error) {
	trimmed := strings.TrimSpace(repo)
	if err := ValidateRepoID(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// ValidateArtifactName validates a CI artifact name used for exact-match
// scanning. Path separators are rejected so a hostile name can never be
// treated as a nested path by an extractor.
func ValidateArtifactName(name string) error {
	if name == "" {
		return fmt.Errorf("artifact name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid artifact name: %q (path separators not allowed)", name)
	}
	if !artifactPattern.MatchString(name) {
		return fmt.Errorf("invalid artifact name: %q", name)
	}
	return nil
}
