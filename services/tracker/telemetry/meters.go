// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FacadeMetrics instruments the HTTP façade with OpenTelemetry meters.
//
// Description:
//
//	The poller reports through client_golang directly; the façade reports
//	through otel so its series follow whichever metric exporter Init chose.
//	All names carry the "tracker." prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type FacadeMetrics struct {
	// CacheReads counts cache lookups served, by endpoint.
	CacheReads metric.Int64Counter

	// StreamClients tracks open WebSocket stream connections.
	StreamClients metric.Int64UpDownCounter

	// StreamPushes counts records pushed to stream clients.
	StreamPushes metric.Int64Counter
}

// NewFacadeMetrics registers the façade instruments on meter.
//
// Inputs:
//
//	meter - Typically otel.Meter("tracker.handlers").
//
// Outputs:
//
//	*FacadeMetrics - Ready to record.
//	error - Non-nil if any instrument cannot be created.
func NewFacadeMetrics(meter metric.Meter) (*FacadeMetrics, error) {
	m := &FacadeMetrics{}
	var err error

	m.CacheReads, err = meter.Int64Counter("tracker.cache.reads",
		metric.WithDescription("Cache lookups served by the HTTP façade"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache reads counter: %w", err)
	}

	m.StreamClients, err = meter.Int64UpDownCounter("tracker.stream.clients",
		metric.WithDescription("Open WebSocket stream connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stream clients counter: %w", err)
	}

	m.StreamPushes, err = meter.Int64Counter("tracker.stream.pushes",
		metric.WithDescription("Records pushed to stream clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stream pushes counter: %w", err)
	}

	return m, nil
}

// RecordCacheRead counts one cache lookup. No-op on nil receiver.
func (m *FacadeMetrics) RecordCacheRead(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.CacheReads.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// StreamOpened increments the open stream count. No-op on nil receiver.
func (m *FacadeMetrics) StreamOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.StreamClients.Add(ctx, 1)
}

// StreamClosed decrements the open stream count. No-op on nil receiver.
func (m *FacadeMetrics) StreamClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.StreamClients.Add(ctx, -1)
}

// RecordPush counts one pushed record. No-op on nil receiver.
func (m *FacadeMetrics) RecordPush(ctx context.Context) {
	if m == nil {
		return
	}
	m.StreamPushes.Add(ctx, 1)
}
