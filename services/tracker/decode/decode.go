// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package decode turns raw Super Metroid WRAM reads into a progress model.
//
// # Description
//
// The decoder is a pure function of one cycle's Snapshots plus a small piece
// of carried state (PhaseState) for the two-stage final boss. It never
// fails: absent or short reads degrade the affected fields to their zero
// value, and unknown area ids map to AreaUnknown.
//
// # Usage
//
//	phase := &decode.PhaseState{}
//	for each poll {
//	    progress := decode.Decode(snaps, phase)
//	    publish(progress)
//	}
//
// # Thread Safety
//
// Decode is safe for concurrent use as long as each caller owns its
// PhaseState. The package holds no mutable globals.
package decode

// Decode maps one cycle's snapshots to a Progress.
//
// # Description
//
// Decoding runs in a fixed order so every derived value comes from the same
// cycle:
//
//  1. Counters and location.
//  2. Reset predicate from (1).
//  3. Items and beams, forced false when (2) holds.
//  4. Bosses, updating phase; end-of-game forced false when (2) holds.
//
// # Inputs
//
//   - snaps: Raw reads keyed by Field. May be nil or partial.
//   - phase: Carried Mother Brain state. Must not be nil.
//
// # Outputs
//
//   - *Progress: A new, fully populated Progress.
//
// # Examples
//
//	phase := &decode.PhaseState{}
//	p := decode.Decode(decode.Snapshots{decode.FieldStats: raw}, phase)
//	fmt.Println(p.Stats.Health)
//
// # Assumptions
//
//   - Given identical snaps and identical prior phase, the result and the
//     resulting phase are identical.
func Decode(snaps Snapshots, phase *PhaseState) *Progress {
	st := DecodeStats(snaps)
	loc := DecodeLocation(snaps)
	reset := resetFor(st, loc)

	return &Progress{
		Stats:         st,
		Location:      loc,
		Items:         DecodeItems(snaps, reset),
		Beams:         DecodeBeams(snaps, reset),
		Bosses:        DecodeBosses(snaps, st, loc, reset, phase),
		ResetDetected: reset,
	}
}

// ResetPhaseState clears the carried boss phase flags.
//
// Equivalent to phase.Reset(); kept as a function so callers holding the
// decode contract do not need to know the struct's methods.
func ResetPhaseState(phase *PhaseState) {
	if phase == nil {
		return
	}
	phase.Reset()
}
