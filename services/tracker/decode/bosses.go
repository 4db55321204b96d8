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

import "slices"

// =============================================================================
// Boss Flag Tables
// =============================================================================
//
// The values below were reverse-engineered from observed saves. They are not
// derivable from any bit layout and must be kept value-for-value: several of
// the thresholds are known to both over- and under-fire on untested states.

// Main boss word at 0x7ED828.
const (
	mainMotherBrainGlass  = 0x0001 // container broken, phase 1 evidence
	mainCrocomire         = 0x0002
	mainBombTorizo        = 0x0004
	mainMotherBrainDefeat = 0x0008 // final defeat, phase 2
	mainKraid             = 0x0100
	mainSporeSpawn        = 0x0200
)

// Ridley's dedicated word at 0x7ED82A. The bit alone is not enough: it is
// also raised mid-fight, while the word is still below ridleyMin.
const (
	ridleyBit = 0x0001
	ridleyMin = 0x0101
)

// Golden Torizo lives in the high half of plus1.
const (
	torizoBit = 0x0400
	torizoMin = 0x0500
)

// torizoFalsePositives are plus1 values produced by Crocomire's drop
// sequence writing into the shared Norfair byte.
var torizoFalsePositives = []int{0x0502, 0x0702}

// torizoFightCodes are plus4 values seen while the Golden Torizo statue is
// still crumbling. A match there vetoes the plus1 test.
var torizoFightCodes = []int{0x0004, 0x0404}

// Phantoon lives in the low half of plus2.
const phantoonBit = 0x0001

// phantoonFalsePositives are written while the Wrecked Ship power-on scene
// rewrites the whole byte.
var phantoonFalsePositives = []int{0x00FF, 0xFF01}

// Draygon lives in the low half of plus3 and must be corroborated by the
// high half of plus2 (the same Maridia byte seen through the other window).
const (
	draygonBit          = 0x0001
	draygonCorroborates = 0x0100
)

// draygonFalsePositives are plus3 values where Mother Brain's Tourian bits
// mirror into the window on saves that never fought Draygon.
var draygonFalsePositives = []int{0x0101, 0x0301}

// =============================================================================
// Final Boss and Escape
// =============================================================================

// MotherBrainRoom is the room id of Mother Brain's chamber.
const MotherBrainRoom = 0xDD58

// LandingSiteRoom is the room id of the ship's landing site.
const LandingSiteRoom = 0x91F8

// reentryMissileRatio: on re-entering Mother Brain's room with more than this
// fraction of missile capacity, phase 2 is assumed to be a fresh attempt.
const reentryMissileRatio = 0.70

// Authoritative escape evidence.
const (
	shipAIBoarded    = 0xAA4F
	eventTimebombSet = 0x40
)

// evacZone is a hand-tuned rectangle around the ship.
type evacZone struct {
	room       int
	minX, maxX int
	minY, maxY int
}

func (z evacZone) contains(room, x, y int) bool {
	return room == z.room && x >= z.minX && x <= z.maxX && y >= z.minY && y <= z.maxY
}

var evacZones = []evacZone{
	{room: LandingSiteRoom, minX: 0x0440, maxX: 0x04C0, minY: 0x0440, maxY: 0x04B0}, // on the pad
	{room: LandingSiteRoom, minX: 0x03C0, maxX: 0x0540, minY: 0x0380, maxY: 0x0440}, // dropping onto the hull
	{room: LandingSiteRoom, minX: 0x0400, maxX: 0x0500, minY: 0x0300, maxY: 0x0380}, // space jump approach
}

// Emergency fallback: anywhere in the ship's column of Crateria.
const (
	fallbackMinX = 0x0380
	fallbackMaxX = 0x0580
	fallbackMaxY = 0x0500
)

// escapeActive reports whether any escape-timer word is nonzero.
func escapeActive(s Snapshots) bool {
	for _, f := range []Field{FieldEscape1, FieldEscape2, FieldEscape3, FieldEscape4} {
		if s.u16(f, 0) != 0 {
			return true
		}
	}
	return false
}

// DecodeBosses evaluates every boss flag for one cycle.
//
// # Description
//
// Simple bosses are bit tests on the main word. Ridley needs bit and
// magnitude. Phantoon, Draygon and Golden Torizo share the overlapping plus
// windows and are separated by threshold and exclusion tables. Mother
// Brain's two phases are read from and written to phase, which persists
// across calls.
//
// # Inputs
//
//   - s: The cycle's snapshots.
//   - st, loc: This cycle's decoded counters and location.
//   - reset: The reset predicate for this cycle.
//   - phase: Carried Mother Brain state. Mutated in place. Must not be nil.
//
// # Outputs
//
//   - Bosses: Decoded flags, MotherBrain1/2 mirroring phase after update.
func DecodeBosses(s Snapshots, st Stats, loc Location, reset bool, phase *PhaseState) Bosses {
	main := s.u16(FieldBossesMain, 0)
	ridley := s.u16(FieldBossRidley, 0)
	plus1 := s.u16(FieldBossPlus1, 0)
	plus2 := s.u16(FieldBossPlus2, 0)
	plus3 := s.u16(FieldBossPlus3, 0)
	plus4 := s.u16(FieldBossPlus4, 0)

	b := Bosses{
		BombTorizo: main&mainBombTorizo != 0,
		Kraid:      main&mainKraid != 0,
		SporeSpawn: main&mainSporeSpawn != 0,
		Crocomire:  main&mainCrocomire != 0,
		Ridley:     ridley&ridleyBit != 0 && ridley >= ridleyMin,
		Phantoon: plus2&phantoonBit != 0 &&
			!slices.Contains(phantoonFalsePositives, plus2),
		Draygon: plus3&draygonBit != 0 &&
			plus2 >= draygonCorroborates &&
			!slices.Contains(draygonFalsePositives, plus3),
		GoldenTorizo: plus1&torizoBit != 0 &&
			plus1 >= torizoMin &&
			!slices.Contains(torizoFalsePositives, plus1) &&
			!slices.Contains(torizoFightCodes, plus4),
	}

	phase.observe(s, st, loc, main)

	b.MotherBrain1 = phase.MotherBrainPhase1
	b.MotherBrain2 = phase.MotherBrainPhase2
	b.MotherBrain = phase.MotherBrainPhase2
	b.SamusEscaped = !reset && escaped(s, loc, phase.MotherBrainPhase2)
	return b
}

// escaped computes the end-of-game flag in priority order: authoritative
// ship/event evidence, then the evacuation zones, then the loose fallback.
func escaped(s Snapshots, loc Location, phase2 bool) bool {
	if s.u16(FieldShipAI, 0) == shipAIBoarded && s.u8(FieldEventFlags, 0)&eventTimebombSet != 0 {
		return true
	}
	if !phase2 {
		return false
	}
	for _, z := range evacZones {
		if z.contains(loc.RoomID, loc.X, loc.Y) {
			return true
		}
	}
	return loc.AreaID == AreaCrateria &&
		loc.X >= fallbackMinX && loc.X <= fallbackMaxX &&
		loc.Y <= fallbackMaxY
}
