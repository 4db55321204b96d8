// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/SamusTracker/services/tracker/decode"
	"github.com/AleutianAI/SamusTracker/services/tracker/observability"
	"github.com/AleutianAI/SamusTracker/services/tracker/splits"
)

// =============================================================================
// Test Helpers
// =============================================================================

var errBoom = errors.New("boom")

// fakeSource serves reads from a field-keyed memory image.
type fakeSource struct {
	mu        sync.Mutex
	byAddr    map[uint32]decode.Field
	mem       map[decode.Field][]byte
	status    Status
	statusErr error
	readErr   map[decode.Field]error
	reads     int
}

func newFakeSource() *fakeSource {
	f := &fakeSource{
		byAddr:  make(map[uint32]decode.Field),
		mem:     make(map[decode.Field][]byte),
		status:  Status{Reachable: true, GameLoaded: true, Version: "1.19.1", GameInfo: "super_nes,Super Metroid,crc32=d63ed5f8"},
		readErr: make(map[decode.Field]error),
	}
	for _, r := range decode.Layout() {
		f.byAddr[r.Address] = r.Field
	}
	return f
}

func (f *fakeSource) ReadMemory(_ context.Context, address uint32, length int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++

	field := f.byAddr[address]
	if err := f.readErr[field]; err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, f.mem[field])
	return out, nil
}

func (f *fakeSource) Status(context.Context) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeSource) set(field decode.Field, b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mem[field] = b
}

func (f *fakeSource) setStatus(s Status, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.statusErr = s, err
}

func (f *fakeSource) failRead(field decode.Field, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr[field] = err
}

func (f *fakeSource) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// loadScene writes the four headline counters and a location.
func (f *fakeSource) loadScene(health, maxHealth, missiles, maxMissiles, area, room int) {
	stats := make([]byte, decode.StatsLength)
	copy(stats[0:], le16(health))
	copy(stats[2:], le16(maxHealth))
	copy(stats[4:], le16(missiles))
	copy(stats[6:], le16(maxMissiles))
	f.set(decode.FieldStats, stats)
	f.set(decode.FieldAreaID, []byte{byte(area)})
	f.set(decode.FieldRoomID, le16(room))
}

// midGame is a Norfair scene that never trips the reset predicate.
func (f *fakeSource) midGame() {
	f.loadScene(516, 599, 32, 45, decode.AreaNorfair, 0xB236)
}

func le16(v int) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

// fakeStore is an in-memory SplitStore.
type fakeStore struct {
	mu        sync.Mutex
	list      []splits.Split
	appendErr error
}

func (s *fakeStore) Append(_ context.Context, in ...splits.Split) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.list = append(s.list, in...)
	return nil
}

func (s *fakeStore) List(context.Context) ([]splits.Split, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]splits.Split{}, s.list...), nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil
	return nil
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

func newTestPoller(t *testing.T, src Source, store SplitStore) (*Poller, *observability.PollMetrics) {
	t.Helper()
	m := observability.NewPollMetrics(prometheus.NewRegistry())
	p := New(src, store, m, nil, Config{Interval: 10 * time.Millisecond, MaxSplits: 8})
	return p, m
}

// =============================================================================
// Cache Facade
// =============================================================================

func TestPoller_EmptyRecordBeforeStart(t *testing.T) {
	p, _ := newTestPoller(t, newFakeSource(), nil)

	rec := p.Cached()
	assert.Nil(t, rec.Progress)
	assert.False(t, rec.Connected)
	assert.Zero(t, rec.PollCount)
	assert.Zero(t, rec.ErrorCount)
	assert.True(t, rec.LastUpdate.IsZero())
	assert.False(t, p.Running())
}

func TestPoller_PollOnceDecodes(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	p, m := newTestPoller(t, src, nil)

	require.NoError(t, p.PollOnce(context.Background()))

	rec := p.Cached()
	require.NotNil(t, rec.Progress)
	assert.Equal(t, 516, rec.Progress.Stats.Health)
	assert.Equal(t, "Norfair", rec.Progress.Location.AreaName)
	assert.True(t, rec.Connected)
	assert.True(t, rec.GameLoaded)
	assert.Equal(t, "1.19.1", rec.Version)
	assert.Equal(t, uint64(1), rec.PollCount)
	assert.False(t, rec.LastUpdate.IsZero())
	assert.Equal(t, len(decode.Layout()), src.readCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollsTotal.WithLabelValues("success")))
}

func TestPoller_FailedCyclesOnlyBumpErrorCount(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	p, m := newTestPoller(t, src, nil)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))
	before := p.Cached()

	src.setStatus(Status{}, errBoom)
	for range 3 {
		err := p.PollOnce(ctx)
		var ce *CycleError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, observability.ErrorKindStatus, ce.Kind)
		assert.ErrorIs(t, err, errBoom)
	}

	after := p.Cached()
	assert.Equal(t, before.ErrorCount+3, after.ErrorCount)
	assert.Equal(t, before.PollCount, after.PollCount)
	assert.Same(t, before.Progress, after.Progress)
	assert.Equal(t, before.LastUpdate, after.LastUpdate)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("status")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PollsTotal.WithLabelValues("error")))
}

func TestPoller_BulkReadFailureFailsCycle(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	src.failRead(decode.FieldStats, errBoom)
	p, _ := newTestPoller(t, src, nil)

	err := p.PollOnce(context.Background())

	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, observability.ErrorKindBulkRead, ce.Kind)
	rec := p.Cached()
	assert.Nil(t, rec.Progress)
	assert.Equal(t, uint64(1), rec.ErrorCount)
	assert.Zero(t, rec.PollCount)
}

func TestPoller_TargetedReadFailureDegrades(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	src.set(decode.FieldItems, le16(0x0004))
	src.failRead(decode.FieldItems, errBoom)
	src.failRead(decode.FieldBeams, errBoom)
	p, m := newTestPoller(t, src, nil)

	require.NoError(t, p.PollOnce(context.Background()))

	rec := p.Cached()
	require.NotNil(t, rec.Progress)
	assert.False(t, rec.Progress.Items.Morph)
	assert.Equal(t, 516, rec.Progress.Stats.Health)
	assert.Equal(t, uint64(1), rec.PollCount)
	assert.Equal(t, uint64(1), rec.ErrorCount, "one error per degraded cycle")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AbsentReadsTotal.WithLabelValues("items")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("partial_read")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollsTotal.WithLabelValues("success")))
}

func TestPoller_UnreachableCountsErrors(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	p, m := newTestPoller(t, src, nil)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))
	first := p.Cached()
	require.True(t, first.Connected)

	src.setStatus(Status{Reachable: false}, nil)
	for range 3 {
		err := p.PollOnce(ctx)
		var ce *CycleError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, observability.ErrorKindUnreachable, ce.Kind)
		assert.ErrorIs(t, err, ErrUnreachable)
	}

	rec := p.Cached()
	assert.False(t, rec.Connected)
	assert.False(t, rec.GameLoaded)
	assert.Same(t, first.Progress, rec.Progress)
	assert.Equal(t, first.PollCount, rec.PollCount)
	assert.Equal(t, first.ErrorCount+3, rec.ErrorCount)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("unreachable")))

	src.setStatus(Status{Reachable: true, GameLoaded: true}, nil)
	require.NoError(t, p.PollOnce(ctx))
	rec = p.Cached()
	assert.True(t, rec.Connected)
	assert.Equal(t, first.PollCount+1, rec.PollCount)
	assert.Equal(t, first.ErrorCount+3, rec.ErrorCount)
}

func TestPoller_NoContentSkipsReads(t *testing.T) {
	src := newFakeSource()
	src.setStatus(Status{Reachable: true, GameLoaded: false, Version: "1.19.1"}, nil)
	p, _ := newTestPoller(t, src, nil)

	require.NoError(t, p.PollOnce(context.Background()))

	rec := p.Cached()
	assert.True(t, rec.Connected)
	assert.False(t, rec.GameLoaded)
	assert.Nil(t, rec.Progress)
	assert.Zero(t, src.readCount())
}

func TestPoller_ResetCache(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	p, _ := newTestPoller(t, src, nil)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))
	require.NoError(t, p.PollOnce(ctx))
	require.Equal(t, uint64(2), p.Cached().PollCount)

	p.ResetCache()
	p.ResetCache()

	rec := p.Cached()
	assert.Nil(t, rec.Progress)
	assert.Zero(t, rec.PollCount)
	assert.Zero(t, rec.ErrorCount)
	assert.Equal(t, decode.PhaseState{}, p.PhaseState())

	require.NoError(t, p.PollOnce(ctx))
	assert.Equal(t, uint64(1), p.Cached().PollCount)
}

func TestPoller_ChangedFiresOnPublish(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	p, _ := newTestPoller(t, src, nil)

	ch := p.Changed()
	select {
	case <-ch:
		t.Fatal("changed before any publish")
	default:
	}

	require.NoError(t, p.PollOnce(context.Background()))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("changed not signalled")
	}

	p.ResetCache()
	select {
	case <-p.Changed():
		t.Fatal("fresh channel already closed")
	default:
	}
}

// =============================================================================
// Bootstrap
// =============================================================================

func TestPoller_BootstrapSeedsFromHyperBeam(t *testing.T) {
	src := newFakeSource()
	src.loadScene(1499, 1499, 230, 230, decode.AreaCrateria, decode.LandingSiteRoom)
	src.set(decode.FieldHyperBeam, le16(0x0001))
	p, _ := newTestPoller(t, src, nil)

	require.NoError(t, p.PollOnce(context.Background()))

	b := p.Cached().Progress.Bosses
	assert.True(t, b.MotherBrain1)
	assert.True(t, b.MotherBrain2)
	assert.True(t, b.MotherBrain)
	assert.Equal(t, decode.PhaseState{MotherBrainPhase1: true, MotherBrainPhase2: true}, p.PhaseState())
}

func TestPoller_BootstrapSeedsFromMaxHealth(t *testing.T) {
	src := newFakeSource()
	src.loadScene(1300, 1399, 150, 180, decode.AreaBrinstar, 0x9AD9)
	p, _ := newTestPoller(t, src, nil)

	require.NoError(t, p.PollOnce(context.Background()))

	assert.True(t, p.Cached().Progress.Bosses.MotherBrain2)
}

func TestPoller_BootstrapSeedsInTourian(t *testing.T) {
	src := newFakeSource()
	src.loadScene(900, 999, 100, 120, decode.AreaTourian, 0xDAAE)
	p, _ := newTestPoller(t, src, nil)

	require.NoError(t, p.PollOnce(context.Background()))

	assert.True(t, p.Cached().Progress.Bosses.MotherBrain2)
}

func TestPoller_BootstrapDeclines(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeSource)
	}{
		{"mid game without evidence", func(f *fakeSource) { f.midGame() }},
		{"fresh save with stale hyper bit", func(f *fakeSource) {
			f.loadScene(99, 99, 0, 0, decode.AreaCrateria, 356)
			f.set(decode.FieldHyperBeam, le16(0x0001))
		}},
		{"defeat bit with low max health", func(f *fakeSource) {
			f.loadScene(500, 599, 30, 40, decode.AreaNorfair, 0xB236)
			f.set(decode.FieldBossesMain, le16(0x0008))
		}},
		{"max health below cap", func(f *fakeSource) {
			f.loadScene(1199, 1199, 150, 180, decode.AreaNorfair, 0xB236)
		}},
		{"tourian with low missiles", func(f *fakeSource) {
			f.loadScene(900, 999, 60, 80, decode.AreaTourian, 0xDAAE)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			tt.setup(src)
			p, _ := newTestPoller(t, src, nil)

			require.NoError(t, p.PollOnce(context.Background()))

			assert.Equal(t, decode.PhaseState{}, p.PhaseState())
		})
	}
}

func TestPoller_BootstrapRunsOnce(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	p, _ := newTestPoller(t, src, nil)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))

	src.set(decode.FieldHyperBeam, le16(0x0001))
	require.NoError(t, p.PollOnce(ctx))

	assert.False(t, p.Cached().Progress.Bosses.MotherBrain2)

	p.ResetCache()
	require.NoError(t, p.PollOnce(ctx))
	assert.True(t, p.Cached().Progress.Bosses.MotherBrain2)
}

func TestPoller_BootstrapWaitsForHealth(t *testing.T) {
	src := newFakeSource()
	src.loadScene(0, 1499, 0, 230, decode.AreaCrateria, decode.LandingSiteRoom)
	src.set(decode.FieldHyperBeam, le16(0x0001))
	p, _ := newTestPoller(t, src, nil)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))
	assert.False(t, p.Cached().Progress.Bosses.MotherBrain2)

	src.loadScene(1499, 1499, 230, 230, decode.AreaCrateria, decode.LandingSiteRoom)
	require.NoError(t, p.PollOnce(ctx))
	assert.True(t, p.Cached().Progress.Bosses.MotherBrain2)
}

// =============================================================================
// Splits
// =============================================================================

func TestPoller_RecordsSplitOnTransition(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	store := &fakeStore{}
	p, m := newTestPoller(t, src, store)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))
	assert.Empty(t, p.Cached().Splits)

	src.set(decode.FieldBossesMain, le16(0x0100))
	require.NoError(t, p.PollOnce(ctx))

	rec := p.Cached()
	require.Len(t, rec.Splits, 1)
	assert.Equal(t, "Kraid", rec.Splits[0].Name)
	assert.Equal(t, splits.KindBoss, rec.Splits[0].Kind)
	assert.Equal(t, uint64(2), rec.Splits[0].PollCount)
	assert.Equal(t, 1, store.len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SplitsTotal.WithLabelValues("boss")))

	require.NoError(t, p.PollOnce(ctx))
	assert.Len(t, p.Cached().Splits, 1)
}

func TestPoller_NoSplitsAcrossReset(t *testing.T) {
	src := newFakeSource()
	src.loadScene(99, 99, 0, 0, decode.AreaCrateria, 356)
	src.set(decode.FieldItems, le16(0x0004))
	p, _ := newTestPoller(t, src, nil)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))

	src.midGame()
	require.NoError(t, p.PollOnce(ctx))

	assert.Empty(t, p.Cached().Splits)
	assert.True(t, p.Cached().Progress.Items.Morph)
}

func TestPoller_StoreFailureStillPublishes(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	store := &fakeStore{appendErr: errBoom}
	p, m := newTestPoller(t, src, store)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))
	src.set(decode.FieldBeams, le16(0x1000))
	require.NoError(t, p.PollOnce(ctx))

	rec := p.Cached()
	require.Len(t, rec.Splits, 1)
	assert.Equal(t, "Charge Beam", rec.Splits[0].Name)
	assert.Zero(t, rec.ErrorCount)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("split_store")))
}

func TestPoller_SplitsCapped(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	m := observability.NewPollMetrics(prometheus.NewRegistry())
	p := New(src, nil, m, nil, Config{Interval: time.Second, MaxSplits: 2})
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))
	src.set(decode.FieldItems, le16(0x0004|0x1000|0x0100))
	require.NoError(t, p.PollOnce(ctx))

	got := p.Cached().Splits
	require.Len(t, got, 2)
	assert.Equal(t, "Bombs", got[0].Name)
	assert.Equal(t, "Hi-Jump Boots", got[1].Name)
}

func TestPoller_ClearSplits(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	store := &fakeStore{}
	p, _ := newTestPoller(t, src, store)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))
	src.set(decode.FieldBossesMain, le16(0x0100))
	require.NoError(t, p.PollOnce(ctx))
	require.Len(t, p.Cached().Splits, 1)

	require.NoError(t, p.ClearSplits(ctx))

	rec := p.Cached()
	assert.Empty(t, rec.Splits)
	assert.NotNil(t, rec.Progress)
	assert.Zero(t, store.len())
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestPoller_StartStop(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	store := &fakeStore{list: []splits.Split{{ID: "a", Name: "Kraid", Kind: splits.KindBoss}}}
	p, _ := newTestPoller(t, src, store)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.Running())

	require.Eventually(t, func() bool {
		return p.Cached().PollCount >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, p.Cached().Splits, 1)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	assert.False(t, p.Running())

	stopped := p.Cached().PollCount
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, p.Cached().PollCount)
}

func TestPoller_ContextCancelStops(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	p, _ := newTestPoller(t, src, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, p.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return !p.Running() }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop())
}

func TestPoller_SetInterval(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	p, _ := newTestPoller(t, src, nil)

	require.Error(t, p.SetInterval(0))
	require.NoError(t, p.SetInterval(time.Hour))
	assert.Equal(t, time.Hour, p.Interval())

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	require.Eventually(t, func() bool { return p.Cached().PollCount == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.SetInterval(5*time.Millisecond))
	require.Eventually(t, func() bool {
		return p.Cached().PollCount >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPoller_StartDropsStaleIntervalChange(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	p, _ := newTestPoller(t, src, nil)

	// A change queued for a loop that stopped before reading it.
	p.resched <- time.Hour
	require.NoError(t, p.SetInterval(5*time.Millisecond))

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Equal(t, 5*time.Millisecond, p.Interval())
	require.Eventually(t, func() bool {
		return p.Cached().PollCount >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPoller_ConcurrentReaders(t *testing.T) {
	src := newFakeSource()
	src.midGame()
	p, _ := newTestPoller(t, src, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				rec := p.Cached()
				if rec.Progress != nil {
					_ = rec.Progress.Stats.Health
				}
			}
		}()
	}
	for range 20 {
		require.NoError(t, p.PollOnce(ctx))
	}
	wg.Wait()

	assert.Equal(t, uint64(20), p.Cached().PollCount)
}
