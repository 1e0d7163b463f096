// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ghclient is a thin typed client for the GitHub Actions REST API.
//
// It exposes exactly the read operations the telemetry pipeline needs:
// list recent workflow runs, list a run's artifacts, and download an
// artifact archive. Requests carry an optional bearer token; running
// without one is legal but subject to unauthenticated rate limits.
//
// The client performs no retries. Retry and fallback policy belongs to
// the snapshot orchestrator, which is the only caller with enough
// context to decide whether a failure is worth another upstream call.
package ghclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/qapulse/qapulse/pkg/validation"
)

const (
	// DefaultBaseURL is the public GitHub API endpoint.
	DefaultBaseURL = "https://api.github.com"

	// maxBodyCapture bounds how much of an error response body is kept
	// for diagnostics.
	maxBodyCapture = 512

	// maxArchiveBytes bounds an artifact archive download. Evidence
	// artifacts are small JSON bundles; anything past this is not ours.
	maxArchiveBytes = 64 << 20

	userAgent  = "qapulse-telemetry"
	apiVersion = "2022-11-28"
)

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// UpstreamError reports a non-2xx response from the CI provider. The
// status code is preserved so callers can distinguish rate limiting
// (403/429) from missing data (404) and provider trouble (5xx).
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream CI API returned %d: %s", e.StatusCode, e.Body)
}

// WorkflowRun is one CI run as reported by the provider, newest first
// in list responses.
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	HTMLURL    string    `json:"html_url"`
	Status     string    `json:"status"`
	Conclusion *string   `json:"conclusion"` // nil while in progress
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Artifact is one named archive produced by a run.
type Artifact struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	SizeInBytes        int64  `json:"size_in_bytes"`
	ArchiveDownloadURL string `json:"archive_download_url"`
	Expired            bool   `json:"expired"`
}

type runsResponse struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

type artifactsResponse struct {
	TotalCount int        `json:"total_count"`
	Artifacts  []Artifact `json:"artifacts"`
}

// Client talks to the GitHub Actions API. Fields are exported so tests
// can point BaseURL at an httptest server and swap the HTTP client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient HTTPClient

	// Limiter paces upstream calls. A live collection fans out across
	// repositories, and each scan can issue maxRuns+2 requests; without
	// pacing a cold cache can burn through the unauthenticated quota in
	// one snapshot.
	Limiter *rate.Limiter
}

// NewClient creates a client with production defaults. token may be
// empty for unauthenticated access.
func NewClient(token string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Limiter:    rate.NewLimiter(rate.Limit(8), 16),
	}
}

// ListRecentRuns fetches up to limit most recent workflow runs for an
// owner/repo, newest first (provider ordering).
func (c *Client) ListRecentRuns(ctx context.Context, repo string, limit int) ([]WorkflowRun, error) {
	if err := validation.ValidateRepoID(repo); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	url := fmt.Sprintf("%s/repos/%s/actions/runs?per_page=%d", c.BaseURL, repo, limit)

	var parsed runsResponse
	if err := c.getJSON(ctx, url, &parsed); err != nil {
		return nil, err
	}
	return parsed.WorkflowRuns, nil
}

// ListArtifacts fetches the artifacts exposed by one run.
func (c *Client) ListArtifacts(ctx context.Context, repo string, runID int64) ([]Artifact, error) {
	if err := validation.ValidateRepoID(repo); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/repos/%s/actions/runs/%d/artifacts", c.BaseURL, repo, runID)

	var parsed artifactsResponse
	if err := c.getJSON(ctx, url, &parsed); err != nil {
		return nil, err
	}
	return parsed.Artifacts, nil
}

// FetchArtifactArchive downloads an artifact's archive bytes from its
// archive_download_url. The provider answers with a redirect to blob
// storage, which the underlying http.Client follows.
func (c *Client) FetchArtifactArchive(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, url, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamFailure(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact archive: %w", err)
	}
	if len(data) > maxArchiveBytes {
		return nil, fmt.Errorf("artifact archive exceeds %d byte limit", maxArchiveBytes)
	}
	return data, nil
}

// ValidateToken makes a lightweight call that fails fast on a revoked
// or malformed token. GET /rate_limit does not consume API quota.
func (c *Client) ValidateToken(ctx context.Context) error {
	var parsed struct {
		Resources map[string]json.RawMessage `json:"resources"`
	}
	return c.getJSON(ctx, c.BaseURL+"/rate_limit", &parsed)
}

// getJSON performs a GET and decodes a JSON body into dst.
func (c *Client) getJSON(ctx context.Context, url string, dst any) error {
	resp, err := c.do(ctx, url, "application/vnd.github+json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamFailure(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return nil
}

// do waits for the rate limiter, then issues a single GET with the
// standard headers. The bearer token is attached when configured.
func (c *Client) do(ctx context.Context, url, accept string) (*http.Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream CI request failed: %w", err)
	}
	return resp, nil
}

// upstreamFailure drains a bounded slice of the body into a typed error.
func upstreamFailure(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyCapture))
	return &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
}
