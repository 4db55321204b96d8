// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/SamusTracker/services/tracker/handlers"
	"github.com/AleutianAI/SamusTracker/services/tracker/middleware"
	"github.com/AleutianAI/SamusTracker/services/tracker/telemetry"
)

// SetupRoutes registers every tracker endpoint on router.
//
// m may be nil, in which case façade metrics are not recorded.
func SetupRoutes(router *gin.Engine, tracker handlers.Tracker, m *telemetry.FacadeMetrics,
	serviceName string, logger *slog.Logger) {

	router.Use(otelgin.Middleware(serviceName), middleware.RequestID())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/status", handlers.GetStatus(tracker, m))
		v1.GET("/progress", handlers.GetProgress(tracker, m))
		v1.GET("/stream", handlers.Stream(tracker, m, logger))

		splitsGroup := v1.Group("/splits")
		{
			splitsGroup.GET("", handlers.GetSplits(tracker, m))
			splitsGroup.DELETE("", handlers.DeleteSplits(tracker, logger))
		}

		v1.POST("/reset", handlers.PostReset(tracker, logger))
	}
}
