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
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/SamusTracker/services/tracker/decode"
	"github.com/AleutianAI/SamusTracker/services/tracker/splits"
)

// Record is the cached outcome of the most recent poll cycle.
//
// # Description
//
// A Record is immutable once published. Every cycle builds a fresh one and
// swaps it in; readers receive a copy and never observe a half-built
// value. Progress and Splits are shared between copies and must not be
// mutated by readers.
//
// # Fields
//
//   - Progress: Last decoded progress. nil until a game has been read.
//   - Connected: The emulator answered the last liveness query.
//   - GameLoaded: Content was running at the last liveness query.
//   - Version, GameInfo: As reported by the emulator.
//   - LastUpdate: When the record was published. Zero for the empty record.
//   - PollCount: Successful cycles since start or the last reset.
//   - ErrorCount: Failed cycles plus cycles published with absent reads,
//     since start or the last reset.
//   - Splits: Recorded milestones, oldest first.
type Record struct {
	Progress   *decode.Progress `json:"progress"`
	Connected  bool             `json:"connected"`
	GameLoaded bool             `json:"game_loaded"`
	Version    string           `json:"version"`
	GameInfo   string           `json:"game_info"`
	LastUpdate time.Time        `json:"last_update"`
	PollCount  uint64           `json:"poll_count"`
	ErrorCount uint64           `json:"error_count"`
	Splits     []splits.Split   `json:"splits"`
}

// cache holds the current Record behind an atomic pointer and lets
// readers wait for the next publish.
type cache struct {
	rec atomic.Pointer[Record]

	mu      sync.Mutex
	changed chan struct{}
}

func newCache() *cache {
	c := &cache{changed: make(chan struct{})}
	c.rec.Store(&Record{})
	return c
}

// load returns the current record by value. Never blocks.
func (c *cache) load() Record {
	return *c.rec.Load()
}

// publish swaps in r and wakes every waiter.
func (c *cache) publish(r *Record) {
	c.rec.Store(r)

	c.mu.Lock()
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

// wait returns a channel closed on the next publish.
func (c *cache) wait() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}
