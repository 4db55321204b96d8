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

// =============================================================================
// Equipment Masks
// =============================================================================

// Collected-items word at 0x7E09A4.
const (
	itemVaria        = 0x0001
	itemSpringBall   = 0x0002
	itemMorph        = 0x0004
	itemScrewAttack  = 0x0008
	itemGravity      = 0x0020
	itemHighJump     = 0x0100
	itemSpaceJump    = 0x0200
	itemBombs        = 0x1000
	itemSpeedBooster = 0x2000
	itemGrapple      = 0x4000
	itemXRay         = 0x8000
)

// Collected-beams word at 0x7E09A8.
const (
	beamWave   = 0x0001
	beamIce    = 0x0002
	beamSpazer = 0x0004
	beamPlasma = 0x0008
	beamCharge = 0x1000
)

// =============================================================================
// Reset Discrimination
// =============================================================================

// NewGameRoomThreshold bounds the room ids that only occur at the very start
// of a run. Intro and landing rooms report ids below it until the first
// real room header has been latched.
const NewGameRoomThreshold = 1000

// newGameHealth is the starting energy of a fresh save.
const newGameHealth = 99

// IsNewGame evaluates the reset predicate.
//
// # Description
//
// While a save loads, WRAM can transiently hold stale equipment bits from
// the previous file. Both triggers below describe states only reachable at
// the very start of a run, so treating them as a hard reset is safe:
//
//  1. Starting-area trigger: Crateria, health <= 99, low room id.
//  2. Definite new game: health exactly 99, no missiles and no missile
//     capacity, low room id.
//
// # Inputs
//
//   - area, room: Location ids from this cycle.
//   - health, missiles, maxMissiles: Counters from this cycle.
//
// # Outputs
//
//   - bool: True when equipment and the end-of-game flag must read false.
func IsNewGame(area, room, health, missiles, maxMissiles int) bool {
	if room >= NewGameRoomThreshold {
		return false
	}
	if area == AreaCrateria && health <= newGameHealth {
		return true
	}
	return health == newGameHealth && missiles == 0 && maxMissiles == 0
}

// resetFor evaluates IsNewGame against an already-decoded cycle.
func resetFor(st Stats, loc Location) bool {
	return IsNewGame(loc.AreaID, loc.RoomID, st.Health, st.Missiles, st.MaxMissiles)
}

// DecodeItems bit-tests the collected-items word.
//
// When reset is true every flag is false regardless of the raw bits.
func DecodeItems(s Snapshots, reset bool) Items {
	if reset {
		return Items{}
	}
	v := s.u16(FieldItems, 0)
	return Items{
		Morph:        v&itemMorph != 0,
		Bombs:        v&itemBombs != 0,
		SpringBall:   v&itemSpringBall != 0,
		HighJump:     v&itemHighJump != 0,
		Varia:        v&itemVaria != 0,
		Gravity:      v&itemGravity != 0,
		SpeedBooster: v&itemSpeedBooster != 0,
		SpaceJump:    v&itemSpaceJump != 0,
		ScrewAttack:  v&itemScrewAttack != 0,
		Grapple:      v&itemGrapple != 0,
		XRay:         v&itemXRay != 0,
	}
}

// DecodeBeams bit-tests the collected-beams word and the hyper beam flag.
//
// When reset is true every flag is false regardless of the raw bits.
func DecodeBeams(s Snapshots, reset bool) Beams {
	if reset {
		return Beams{}
	}
	v := s.u16(FieldBeams, 0)
	return Beams{
		Charge: v&beamCharge != 0,
		Ice:    v&beamIce != 0,
		Wave:   v&beamWave != 0,
		Spazer: v&beamSpazer != 0,
		Plasma: v&beamPlasma != 0,
		Hyper:  s.u16(FieldHyperBeam, 0) != 0,
	}
}
