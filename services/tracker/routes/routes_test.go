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
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/SamusTracker/services/tracker/middleware"
	"github.com/AleutianAI/SamusTracker/services/tracker/poller"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTracker struct{}

func (stubTracker) Cached() poller.Record { return poller.Record{} }
func (stubTracker) Changed() <-chan struct{} { return make(chan struct{}) }
func (stubTracker) ResetCache() {}
func (stubTracker) ClearSplits(context.Context) error { return nil }
func (stubTracker) Running() bool { return false }
func (stubTracker) Interval() time.Duration { return time.Second }

func newRouter() *gin.Engine {
	router := gin.New()
	SetupRoutes(router, stubTracker{}, nil, "samus-tracker-test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	return router
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_RegistersEndpoints(t *testing.T) {
	router := newRouter()

	expected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/metrics"},
		{http.MethodGet, "/v1/status"},
		{http.MethodGet, "/v1/progress"},
		{http.MethodGet, "/v1/stream"},
		{http.MethodGet, "/v1/splits"},
		{http.MethodDelete, "/v1/splits"},
		{http.MethodPost, "/v1/reset"},
	}

	routes := router.Routes()
	for _, want := range expected {
		found := false
		for _, r := range routes {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		assert.True(t, found, "route %s %s not registered", want.method, want.path)
	}
}

func TestSetupRoutes_RequestIDOnEveryResponse(t *testing.T) {
	router := newRouter()

	for _, path := range []string{"/health", "/v1/status", "/v1/progress"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader), path)
	}
}

func TestSetupRoutes_Metrics(t *testing.T) {
	router := newRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestSetupRoutes_UnknownPath(t *testing.T) {
	router := newRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
