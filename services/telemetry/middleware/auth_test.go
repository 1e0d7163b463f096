// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func refreshRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/refresh", RequireRefreshToken(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func postRefresh(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	if token != "" {
		req.Header.Set(RefreshTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequireRefreshToken_ValidToken(t *testing.T) {
	rec := postRefresh(refreshRouter("s3cret"), "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRefreshToken_WrongToken(t *testing.T) {
	rec := postRefresh(refreshRouter("s3cret"), "guess")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRefreshToken_MissingToken(t *testing.T) {
	rec := postRefresh(refreshRouter("s3cret"), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// No configured secret disables the endpoint rather than opening it.
func TestRequireRefreshToken_NoServerSecret(t *testing.T) {
	rec := postRefresh(refreshRouter(""), "anything")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
