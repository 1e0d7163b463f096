// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware holds gin middleware for the telemetry service.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RefreshTokenHeader carries the shared secret for cache-refresh
// requests.
const RefreshTokenHeader = "X-Refresh-Token"

// RequireRefreshToken gates mutating endpoints behind a shared secret.
//
// Fail closed: a server without a configured secret refuses refresh
// requests outright instead of accepting everything. Comparison is
// constant-time.
func RequireRefreshToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "refresh is not enabled on this server",
			})
			return
		}

		presented := c.GetHeader(RefreshTokenHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid refresh token",
			})
			return
		}
		c.Next()
	}
}
