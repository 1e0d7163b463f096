// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the telemetry HTTP endpoints.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qapulse/qapulse/services/telemetry/history"
	"github.com/qapulse/qapulse/services/telemetry/snapshot"
)

// SourceHeader reports which tier actually produced the response body.
const SourceHeader = "X-Snapshot-Source"

// CacheHeader reports whether the response was served from cache.
const CacheHeader = "X-Snapshot-Cache"

// maxHistoryLimit caps the history page size.
const maxHistoryLimit = 100

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSnapshot serves GET /v1/status/snapshot.
//
// The optional source query parameter selects the preferred tier
// (live, cloud, static); the default is live. The response is always a
// complete snapshot document, the headers say where it came from.
func GetSnapshot(provider *snapshot.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode, ok := snapshot.ParseMode(c.Query("source"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "unknown source, expected one of: live, cloud, static",
			})
			return
		}

		served, err := provider.GetSnapshot(c.Request.Context(), mode)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "snapshot request failed",
				"requested", string(mode), "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot unavailable"})
			return
		}

		c.Header(SourceHeader, string(served.Mode))
		if served.FromCache {
			c.Header(CacheHeader, "hit")
		} else {
			c.Header(CacheHeader, "miss")
		}
		c.JSON(http.StatusOK, served.Snapshot)
	}
}

// GetHistory serves GET /v1/status/history.
//
// The optional limit query parameter bounds the page size, newest
// first.
func GetHistory(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is not enabled on this server"})
			return
		}

		limit := 20
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		snapshots, err := store.Recent(c.Request.Context(), limit)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "history read failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"snapshots": snapshots, "count": len(snapshots)})
	}
}

// Refresh serves POST /v1/status/refresh. Authentication is enforced
// by middleware; this handler only invalidates and recollects.
func Refresh(provider *snapshot.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		served, err := provider.Refresh(c.Request.Context())
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "refresh failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh failed"})
			return
		}

		c.Header(SourceHeader, string(served.Mode))
		c.JSON(http.StatusOK, served.Snapshot)
	}
}
