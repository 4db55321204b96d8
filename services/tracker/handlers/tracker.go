// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the tracker's HTTP façade.
//
// Every read endpoint serves the poller's cached record. None of them
// touches the emulator, so response time is independent of poll latency.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/SamusTracker/services/tracker/middleware"
	"github.com/AleutianAI/SamusTracker/services/tracker/poller"
	"github.com/AleutianAI/SamusTracker/services/tracker/splits"
	"github.com/AleutianAI/SamusTracker/services/tracker/telemetry"
)

// =============================================================================
// Interfaces
// =============================================================================

// Tracker is the slice of the poller the handlers need. *poller.Poller
// satisfies it.
type Tracker interface {
	Cached() poller.Record
	Changed() <-chan struct{}
	ResetCache()
	ClearSplits(ctx context.Context) error
	Running() bool
	Interval() time.Duration
}

var _ Tracker = (*poller.Poller)(nil)

// =============================================================================
// Response Types
// =============================================================================

// StatusResponse is the full cache record plus loop state.
type StatusResponse struct {
	poller.Record
	Running    bool  `json:"running"`
	IntervalMS int64 `json:"interval_ms"`
}

// SplitsResponse wraps the split list.
type SplitsResponse struct {
	Splits []splits.Split `json:"splits"`
	Count  int            `json:"count"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// =============================================================================
// Handlers
// =============================================================================

// HealthCheck reports that the HTTP server is up. It says nothing about the
// emulator; see /v1/status for that.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStatus returns the full cached record.
func GetStatus(t Tracker, m *telemetry.FacadeMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.RecordCacheRead(c.Request.Context(), "status")
		c.JSON(http.StatusOK, StatusResponse{
			Record:     t.Cached(),
			Running:    t.Running(),
			IntervalMS: t.Interval().Milliseconds(),
		})
	}
}

// GetProgress returns only the decoded progress, or 204 before the first
// game read.
func GetProgress(t Tracker, m *telemetry.FacadeMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.RecordCacheRead(c.Request.Context(), "progress")
		rec := t.Cached()
		if rec.Progress == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, rec.Progress)
	}
}

// GetSplits returns the recorded splits, oldest first.
func GetSplits(t Tracker, m *telemetry.FacadeMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.RecordCacheRead(c.Request.Context(), "splits")
		list := t.Cached().Splits
		if list == nil {
			list = []splits.Split{}
		}
		c.JSON(http.StatusOK, SplitsResponse{Splits: list, Count: len(list)})
	}
}

// DeleteSplits clears the split store.
func DeleteSplits(t Tracker, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := t.ClearSplits(c.Request.Context()); err != nil {
			logger.Error("clear splits failed",
				slog.String("request_id", middleware.GetRequestID(c)),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:     "failed to clear splits",
				RequestID: middleware.GetRequestID(c),
			})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// PostReset clears the cached record and the carried phase state. The
// poll loop keeps running.
func PostReset(t Tracker, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		t.ResetCache()
		logger.Info("cache reset requested", slog.String("request_id", middleware.GetRequestID(c)))
		c.JSON(http.StatusOK, gin.H{"status": "reset"})
	}
}
