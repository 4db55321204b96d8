// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package decode

// PhaseState carries the two-stage Mother Brain flags across poll cycles.
//
// # Description
//
// The game keeps no per-phase defeat bit that can be read back later, so
// the decoder has to remember whether it has ever seen phase 1 or phase 2
// evidence. The flags are monotonic: once true they stay true until Reset,
// with one exception (see observe).
//
// # Thread Safety
//
// Not safe for concurrent use. The poller owns exactly one PhaseState and
// only touches it from its poll goroutine or under its own lock.
//
// # Invariants
//
//   - MotherBrainPhase2 implies MotherBrainPhase1.
type PhaseState struct {
	MotherBrainPhase1 bool `json:"mother_brain_phase1"`
	MotherBrainPhase2 bool `json:"mother_brain_phase2"`
}

// Reset clears both phase flags.
func (p *PhaseState) Reset() {
	p.MotherBrainPhase1 = false
	p.MotherBrainPhase2 = false
}

// Seed marks both phases as already completed. Used by the poller's
// bootstrap when a save is loaded after the final fight.
func (p *PhaseState) Seed() {
	p.MotherBrainPhase1 = true
	p.MotherBrainPhase2 = true
}

// observe folds one cycle's evidence into the phase flags.
//
// Order matters: the re-entry clear runs before detection so that a victory
// lap (defeat bit still set) re-establishes phase 2 in the same cycle while
// a fresh attempt from an earlier save leaves it cleared.
func (p *PhaseState) observe(s Snapshots, st Stats, loc Location, main int) {
	inRoom := loc.RoomID == MotherBrainRoom
	timer := escapeActive(s)

	if inRoom && p.MotherBrainPhase2 && st.MaxMissiles > 0 &&
		float64(st.Missiles) > reentryMissileRatio*float64(st.MaxMissiles) {
		p.MotherBrainPhase2 = false
	}

	if inRoom && (main&mainMotherBrainGlass != 0 || timer) {
		p.MotherBrainPhase1 = true
	}

	if main&mainMotherBrainDefeat != 0 && (inRoom || timer) {
		p.MotherBrainPhase1 = true
		p.MotherBrainPhase2 = true
	}
}
