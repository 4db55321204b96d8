// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package poller runs the background poll loop and owns the cached record.
//
// # Description
//
// One goroutine reads emulator memory on a fixed interval, decodes it and
// publishes an immutable Record. Any number of readers call Cached(), which
// is a single atomic load and never waits for a cycle in progress.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Cycles, ResetCache and
// ClearSplits are serialized against each other; Cached never blocks.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/SamusTracker/services/tracker/decode"
	"github.com/AleutianAI/SamusTracker/services/tracker/observability"
	"github.com/AleutianAI/SamusTracker/services/tracker/splits"
	"github.com/AleutianAI/SamusTracker/services/tracker/telemetry"
)

const tracerName = "tracker.poller"

// =============================================================================
// Configuration
// =============================================================================

// Config holds poller settings.
//
// # Fields
//
//   - Interval: Time between cycle starts. Default: 500ms.
//   - MaxSplits: Splits kept in the record. Default: 256. Set from the
//     split store settings rather than the poller section of the file.
type Config struct {
	Interval  time.Duration `yaml:"interval" validate:"gt=0"`
	MaxSplits int           `yaml:"-" validate:"gte=1"`
}

// DefaultConfig returns the default poller configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  500 * time.Millisecond,
		MaxSplits: 256,
	}
}

// =============================================================================
// Poller
// =============================================================================

// Poller drives the Stopped/Running poll loop.
//
// # Fields
//
//   - source: Emulator memory and liveness.
//   - store: Split persistence. May be nil.
//   - metrics: Prometheus metrics. May be nil.
//   - cache: Published record.
//   - cycleMu: Serializes cycles with ResetCache/ClearSplits and guards
//     phase, bootstrapped, baseline and splitList.
//   - mu: Guards the run state (running, done, interval).
type Poller struct {
	source  Source
	store   SplitStore
	metrics *observability.PollMetrics
	logger  *slog.Logger
	regions []decode.Region
	maxKeep int
	now     func() time.Time

	cache *cache

	cycleMu      sync.Mutex
	phase        decode.PhaseState
	bootstrapped bool
	baseline     *decode.Progress
	splitList    []splits.Split

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	exited   chan struct{}
	interval time.Duration
	resched  chan time.Duration
}

// New creates a stopped Poller.
//
// # Inputs
//
//   - source: Emulator access. Must not be nil.
//   - store: Split persistence. nil keeps splits in memory only.
//   - metrics: nil disables metrics.
//   - logger: nil uses slog.Default().
//   - cfg: Interval and split cap. Zero values fall back to defaults.
//
// # Outputs
//
//   - *Poller: Stopped. Cached() already returns the empty record.
//
// # Examples
//
//	p := poller.New(src, store, observability.DefaultMetrics, logger, poller.DefaultConfig())
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	defer p.Stop()
func New(source Source, store SplitStore, metrics *observability.PollMetrics, logger *slog.Logger, cfg Config) *Poller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxSplits <= 0 {
		cfg.MaxSplits = def.MaxSplits
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:   source,
		store:    store,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "poller")),
		regions:  decode.Layout(),
		maxKeep:  cfg.MaxSplits,
		now:      time.Now,
		cache:    newCache(),
		interval: cfg.Interval,
		resched:  make(chan time.Duration, 1),
	}
}

// Start moves the poller to Running.
//
// # Description
//
// Loads persisted splits, then starts the loop goroutine. The first cycle
// runs immediately. Calling Start while running is a no-op.
//
// # Inputs
//
//   - ctx: Lifetime of the loop. Cancelling it stops polling like Stop.
//
// # Outputs
//
//   - error: Currently always nil; split load failures are logged.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.done = make(chan struct{})
	p.exited = make(chan struct{})
	// A request queued for the previous loop is already in p.interval.
	p.drainResched()
	interval := p.interval
	done, exited := p.done, p.exited
	p.mu.Unlock()

	p.loadSplits(ctx)

	p.logger.Info("poller starting", slog.String("interval", interval.String()))
	go p.runLoop(ctx, interval, done, exited)
	return nil
}

// Stop moves the poller to Stopped.
//
// # Description
//
// Prevents the next cycle from being scheduled and waits for a cycle in
// progress to finish. The cached record is left as is. Safe to call
// multiple times.
//
// # Outputs
//
//   - error: Currently always nil.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.done)
	exited := p.exited
	p.mu.Unlock()

	<-exited
	p.logger.Info("poller stopped")
	return nil
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Cached returns the current record by value. Never blocks on a cycle.
// Before the first cycle it returns the empty record.
func (p *Poller) Cached() Record {
	return p.cache.load()
}

// Changed returns a channel that is closed the next time a record is
// published (by a cycle, ResetCache or ClearSplits).
func (p *Poller) Changed() <-chan struct{} {
	return p.cache.wait()
}

// Interval returns the current poll interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval changes the poll interval. A running loop picks it up before
// its next tick.
func (p *Poller) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", d)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
	if p.running {
		// Keep only the latest request. Holding mu means no other sender
		// can refill the slot between the drain and the send.
		p.drainResched()
		p.resched <- d
	}
	return nil
}

// drainResched discards a pending interval change. Caller holds mu.
func (p *Poller) drainResched() {
	select {
	case <-p.resched:
	default:
	}
}

// ResetCache clears the cached record, the phase state, the bootstrap latch
// and the split baseline. It does not stop the loop. Idempotent.
func (p *Poller) ResetCache() {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	p.phase.Reset()
	p.bootstrapped = false
	p.baseline = nil
	p.cache.publish(&Record{})
	p.logger.Info("cache reset")
}

// ClearSplits drops every recorded split, persisted and cached.
func (p *Poller) ClearSplits(ctx context.Context) error {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	if p.store != nil {
		if err := p.store.Clear(ctx); err != nil {
			return fmt.Errorf("clear split store: %w", err)
		}
	}
	p.splitList = nil

	rec := p.cache.load()
	rec.Splits = nil
	p.cache.publish(&rec)
	return nil
}

// PhaseState returns a copy of the carried Mother Brain state.
func (p *Poller) PhaseState() decode.PhaseState {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()
	return p.phase
}

// PollOnce runs one cycle synchronously.
//
// # Description
//
// On success a new record is published with PollCount incremented. On a
// cycle-level failure the previous record stays published with only
// ErrorCount incremented, and the failure is returned. An unreachable
// emulator is such a failure; its record additionally reads
// Connected=false so clients see the outage.
//
// # Outputs
//
//   - error: *CycleError on a failed cycle, nil otherwise.
func (p *Poller) PollOnce(ctx context.Context) error {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "Poller.cycle")
	defer span.End()

	start := time.Now()
	rec, err := p.cycle(ctx)
	p.metrics.RecordPoll(err == nil, time.Since(start).Seconds())

	if err != nil {
		var ce *CycleError
		if errors.As(err, &ce) {
			p.metrics.RecordError(ce.Kind)
		}
		telemetry.RecordError(span, err)

		failed := p.cache.load()
		failed.ErrorCount++
		if errors.Is(err, ErrUnreachable) {
			failed.Connected = false
			failed.GameLoaded = false
		}
		p.cache.publish(&failed)
		return err
	}

	telemetry.SetSpanAttributes(span,
		attribute.Bool("connected", rec.Connected),
		attribute.Bool("game_loaded", rec.GameLoaded),
		attribute.Int64("poll_count", int64(rec.PollCount)),
	)
	telemetry.SetSpanOK(span)
	p.cache.publish(rec)
	return nil
}

// =============================================================================
// Internal Methods
// =============================================================================

func (p *Poller) runLoop(ctx context.Context, interval time.Duration, done, exited chan struct{}) {
	defer close(exited)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.executeCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.done == done {
				p.running = false
			}
			p.mu.Unlock()
			p.logger.Info("poller stopped (context cancelled)")
			return
		case <-done:
			return
		case d := <-p.resched:
			ticker.Reset(d)
			p.logger.Info("poll interval changed", slog.String("interval", d.String()))
		case <-ticker.C:
			p.executeCycle(ctx)
		}
	}
}

// executeCycle runs PollOnce and logs failures. Failures never stop the loop.
func (p *Poller) executeCycle(ctx context.Context) {
	err := p.PollOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnreachable):
		// every tick while RetroArch is closed
		p.logger.Debug("poll cycle failed", slog.String("error", err.Error()))
	default:
		p.logger.Warn("poll cycle failed", slog.String("error", err.Error()))
	}
}

// cycle builds the next record. Caller holds cycleMu.
func (p *Poller) cycle(ctx context.Context) (*Record, error) {
	status, err := p.source.Status(ctx)
	if err != nil {
		return nil, &CycleError{Kind: observability.ErrorKindStatus, Err: err}
	}
	p.metrics.SetStatus(status.Reachable, status.GameLoaded)
	if !status.Reachable {
		return nil, &CycleError{Kind: observability.ErrorKindUnreachable, Err: ErrUnreachable}
	}

	prev := p.cache.load()
	now := p.now()
	rec := &Record{
		Progress:   prev.Progress,
		Connected:  true,
		GameLoaded: status.GameLoaded,
		Version:    status.Version,
		GameInfo:   status.GameInfo,
		LastUpdate: now,
		PollCount:  prev.PollCount + 1,
		ErrorCount: prev.ErrorCount,
		Splits:     p.splitList,
	}
	if !rec.GameLoaded {
		return rec, nil
	}

	snaps, absent, err := p.acquire(ctx)
	if err != nil {
		return nil, &CycleError{Kind: observability.ErrorKindBulkRead, Err: err}
	}
	if absent > 0 {
		// Degraded but published: one error per cycle, not per field.
		rec.ErrorCount++
		p.metrics.RecordError(observability.ErrorKindPartialRead)
	}

	progress := decode.Decode(snaps, &p.phase)

	if !p.bootstrapped && progress.Stats.Health > 0 {
		p.bootstrapped = true
		if shouldSeed(progress) {
			p.phase.Seed()
			progress = decode.Decode(snaps, &p.phase)
			p.logger.Info("bootstrap seeded final boss phases",
				slog.Int("max_health", progress.Stats.MaxHealth),
				slog.String("area", progress.Location.AreaName),
			)
		}
	}

	p.recordSplits(ctx, progress, rec.PollCount, now)
	p.baseline = progress

	rec.Progress = progress
	rec.Splits = p.splitList
	return rec, nil
}

// acquire performs the bulk read and every targeted read in layout order.
// Only a failed bulk read fails the cycle; failed targeted reads are left
// absent and counted in the second result.
func (p *Poller) acquire(ctx context.Context) (decode.Snapshots, int, error) {
	absent := 0
	snaps := make(decode.Snapshots, len(p.regions))
	for _, r := range p.regions {
		start := time.Now()
		b, err := p.source.ReadMemory(ctx, r.Address, r.Length)
		p.metrics.RecordRead(string(r.Field), time.Since(start).Seconds(), err == nil)
		if err != nil {
			if r.Bulk {
				return nil, 0, fmt.Errorf("bulk read %s at %#06x: %w", r.Field, r.Address, err)
			}
			p.logger.Debug("targeted read absent",
				slog.String("field", string(r.Field)),
				slog.String("error", err.Error()),
			)
			absent++
			continue
		}
		snaps[r.Field] = b
	}
	return snaps, absent, nil
}

// recordSplits detects milestones against the baseline and persists them.
// A store failure is logged and counted but keeps the splits in memory.
func (p *Poller) recordSplits(ctx context.Context, cur *decode.Progress, pollCount uint64, at time.Time) {
	found := splits.Detect(p.baseline, cur, pollCount, at)
	if len(found) == 0 {
		return
	}

	for _, s := range found {
		p.metrics.RecordSplit(string(s.Kind))
		p.logger.Info("split recorded",
			slog.String("name", s.Name),
			slog.String("kind", string(s.Kind)),
			slog.Uint64("poll_count", pollCount),
		)
	}

	if p.store != nil {
		if err := p.store.Append(ctx, found...); err != nil {
			p.metrics.RecordError(observability.ErrorKindSplitStore)
			p.logger.Warn("persist splits failed", slog.String("error", err.Error()))
		}
	}

	// A fresh slice so records already published keep their view.
	next := slices.Concat(p.splitList, found)
	if excess := len(next) - p.maxKeep; excess > 0 {
		next = next[excess:]
	}
	p.splitList = next
}

// loadSplits seeds the in-memory list from the store.
func (p *Poller) loadSplits(ctx context.Context) {
	if p.store == nil {
		return
	}
	list, err := p.store.List(ctx)
	if err != nil {
		p.logger.Warn("load splits failed", slog.String("error", err.Error()))
		return
	}
	if excess := len(list) - p.maxKeep; excess > 0 {
		list = list[excess:]
	}

	p.cycleMu.Lock()
	p.splitList = list
	p.cycleMu.Unlock()
}
