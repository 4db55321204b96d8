// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the tracker.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the background
// poller. Metrics include:
//   - Poll cycle counters (by result)
//   - Cycle errors (by kind) and absent targeted reads (by field)
//   - Read and cycle latency histograms
//   - Emulator connection gauges
//   - Splits recorded (by kind)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every Record method is a no-op on a nil *PollMetrics, so components can
// run without metrics in tests.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "samus_tracker"

// Subsystem for poller metrics
const pollerSubsystem = "poller"

// PollMetrics holds all Prometheus metrics for the background poller.
//
// # Fields
//
//   - PollsTotal: Counter of completed cycles by result.
//   - ErrorsTotal: Counter of failed cycles by error kind.
//   - AbsentReadsTotal: Counter of targeted reads that came back absent.
//   - ReadDurationSeconds: Histogram of single memory read latency.
//   - CycleDurationSeconds: Histogram of full cycle latency.
//   - Connected: 1 when the emulator answered the last status query.
//   - GameLoaded: 1 when content was running at the last status query.
//   - SplitsTotal: Counter of recorded splits by kind.
type PollMetrics struct {
	// PollsTotal counts poll cycles.
	// Labels: result (success, error)
	PollsTotal *prometheus.CounterVec

	// ErrorsTotal counts failed cycles.
	// Labels: kind (status, unreachable, bulk_read, partial_read, split_store)
	ErrorsTotal *prometheus.CounterVec

	// AbsentReadsTotal counts targeted reads tolerated as absent.
	// Labels: field
	AbsentReadsTotal *prometheus.CounterVec

	ReadDurationSeconds  prometheus.Histogram
	CycleDurationSeconds prometheus.Histogram

	Connected  prometheus.Gauge
	GameLoaded prometheus.Gauge

	// SplitsTotal counts recorded splits.
	// Labels: kind (boss, item, beam, escape)
	SplitsTotal *prometheus.CounterVec
}

// DefaultMetrics is the process-wide instance registered by InitMetrics.
var DefaultMetrics *PollMetrics

var initOnce sync.Once

// InitMetrics registers the poller metrics with the default registry.
//
// # Outputs
//
//   - *PollMetrics: The initialized metrics instance, also stored in
//     DefaultMetrics.
//
// Later calls return the same instance.
func InitMetrics() *PollMetrics {
	initOnce.Do(func() {
		DefaultMetrics = NewPollMetrics(prometheus.DefaultRegisterer)
	})
	return DefaultMetrics
}

// NewPollMetrics creates the poller metrics on an explicit registerer.
//
// # Description
//
// Tests pass a fresh prometheus.NewRegistry() so each test gets isolated
// counters.
//
// # Inputs
//
//   - reg: Where to register. Must not be nil.
//
// # Outputs
//
//   - *PollMetrics: Ready to record.
func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	f := promauto.With(reg)
	return &PollMetrics{
		PollsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pollerSubsystem,
				Name:      "polls_total",
				Help:      "Total poll cycles by result",
			},
			[]string{"result"},
		),

		ErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pollerSubsystem,
				Name:      "errors_total",
				Help:      "Total failed poll cycles by error kind",
			},
			[]string{"kind"},
		),

		AbsentReadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pollerSubsystem,
				Name:      "absent_reads_total",
				Help:      "Targeted memory reads that failed and were treated as absent",
			},
			[]string{"field"},
		),

		ReadDurationSeconds: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pollerSubsystem,
				Name:      "read_duration_seconds",
				Help:      "Latency of a single emulator memory read in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.1, 0.5, 1},
			},
		),

		CycleDurationSeconds: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pollerSubsystem,
				Name:      "cycle_duration_seconds",
				Help:      "Latency of a full poll cycle in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),

		Connected: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pollerSubsystem,
				Name:      "connected",
				Help:      "1 if the emulator answered the last status query",
			},
		),

		GameLoaded: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pollerSubsystem,
				Name:      "game_loaded",
				Help:      "1 if content was running at the last status query",
			},
		),

		SplitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "splits_total",
				Help:      "Total recorded splits by kind",
			},
			[]string{"kind"},
		),
	}
}

// =============================================================================
// Error Kinds
// =============================================================================

// ErrorKind categorizes a failed cycle.
type ErrorKind string

const (
	// ErrorKindStatus indicates the liveness query failed.
	ErrorKindStatus ErrorKind = "status"

	// ErrorKindBulkRead indicates the counter read failed while a game was loaded.
	ErrorKindBulkRead ErrorKind = "bulk_read"

	// ErrorKindUnreachable indicates the emulator did not answer the
	// liveness query.
	ErrorKindUnreachable ErrorKind = "unreachable"

	// ErrorKindPartialRead indicates one or more targeted reads came back
	// absent. The cycle itself still publishes.
	ErrorKindPartialRead ErrorKind = "partial_read"

	// ErrorKindSplitStore indicates splits could not be persisted. The cycle
	// itself still publishes.
	ErrorKindSplitStore ErrorKind = "split_store"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordPoll records one completed cycle.
func (m *PollMetrics) RecordPoll(success bool, seconds float64) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	m.PollsTotal.WithLabelValues(result).Inc()
	m.CycleDurationSeconds.Observe(seconds)
}

// RecordError records a cycle-level failure.
func (m *PollMetrics) RecordError(kind ErrorKind) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(string(kind)).Inc()
}

// RecordRead records one memory read's latency and, if it failed, the field
// that came back absent.
func (m *PollMetrics) RecordRead(field string, seconds float64, ok bool) {
	if m == nil {
		return
	}
	m.ReadDurationSeconds.Observe(seconds)
	if !ok {
		m.AbsentReadsTotal.WithLabelValues(field).Inc()
	}
}

// SetStatus updates the connection gauges.
func (m *PollMetrics) SetStatus(connected, gameLoaded bool) {
	if m == nil {
		return
	}
	m.Connected.Set(boolGauge(connected))
	m.GameLoaded.Set(boolGauge(gameLoaded))
}

// RecordSplit increments the split counter for kind.
func (m *PollMetrics) RecordSplit(kind string) {
	if m == nil {
		return
	}
	m.SplitsTotal.WithLabelValues(kind).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
