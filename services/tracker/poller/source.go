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
	"fmt"

	"github.com/AleutianAI/SamusTracker/services/tracker/observability"
	"github.com/AleutianAI/SamusTracker/services/tracker/splits"
)

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// Source reads emulated memory and reports emulator liveness.
//
// # Description
//
// The poller issues all calls from a single goroutine, one at a time.
// Implementations bound every call with their own timeout.
type Source interface {
	// ReadMemory reads length bytes at a 24-bit bus address. Any error
	// means the read is absent for this cycle.
	ReadMemory(ctx context.Context, address uint32, length int) ([]byte, error)

	// Status reports whether the emulator answered and whether a game is
	// running. An unreachable emulator is a Status, not an error.
	Status(ctx context.Context) (Status, error)
}

// Status is one liveness answer from the Source.
type Status struct {
	Reachable  bool
	GameLoaded bool
	Version    string
	GameInfo   string
}

// SplitStore persists splits. *splits.Store satisfies it.
type SplitStore interface {
	Append(ctx context.Context, s ...splits.Split) error
	List(ctx context.Context) ([]splits.Split, error)
	Clear(ctx context.Context) error
}

// ErrUnreachable is wrapped by the CycleError of a cycle whose liveness
// query got no answer.
var ErrUnreachable = errors.New("emulator unreachable")

// CycleError is returned by PollOnce when a cycle could not publish.
type CycleError struct {
	Kind observability.ErrorKind
	Err  error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("poll cycle failed (%s): %v", e.Kind, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}
