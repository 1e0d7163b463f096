// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qapulse/qapulse/services/telemetry/handlers"
	"github.com/qapulse/qapulse/services/telemetry/history"
	"github.com/qapulse/qapulse/services/telemetry/middleware"
	"github.com/qapulse/qapulse/services/telemetry/snapshot"
)

func SetupRoutes(router *gin.Engine, provider *snapshot.Provider, store *history.Store, refreshSecret string) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		status := v1.Group("/status")
		{
			status.GET("/snapshot", handlers.GetSnapshot(provider))
			status.GET("/history", handlers.GetHistory(store))
			status.POST("/refresh", middleware.RequireRefreshToken(refreshSecret), handlers.Refresh(provider))
		}
	}
}
