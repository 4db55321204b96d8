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

// Area identifiers as stored in the single-byte area field.
const (
	AreaCrateria    = 0
	AreaBrinstar    = 1
	AreaNorfair     = 2
	AreaWreckedShip = 3
	AreaMaridia     = 4
	AreaTourian     = 5
)

// AreaUnknown is the name reported for any area id outside 0-5.
const AreaUnknown = "Unknown"

var areaNames = [...]string{
	AreaCrateria:    "Crateria",
	AreaBrinstar:    "Brinstar",
	AreaNorfair:     "Norfair",
	AreaWreckedShip: "Wrecked Ship",
	AreaMaridia:     "Maridia",
	AreaTourian:     "Tourian",
}

// AreaName maps an area id to its display name.
//
// Unknown ids (Ceres, debug rooms, garbage during transitions) map to
// AreaUnknown rather than erroring.
func AreaName(id int) string {
	if id < 0 || id >= len(areaNames) {
		return AreaUnknown
	}
	return areaNames[id]
}

// DecodeStats decodes the bulk counter read.
//
// # Description
//
// Each counter is decoded independently: a short bulk read yields zero for
// the counters it does not cover and real values for the ones it does.
//
// # Inputs
//
//   - s: The cycle's snapshots. FieldStats may be absent or short.
//
// # Outputs
//
//   - Stats: Decoded counters. Never fails.
func DecodeStats(s Snapshots) Stats {
	return Stats{
		Health:        s.u16(FieldStats, offHealth),
		MaxHealth:     s.u16(FieldStats, offMaxHealth),
		Missiles:      s.u16(FieldStats, offMissiles),
		MaxMissiles:   s.u16(FieldStats, offMaxMissiles),
		Supers:        s.u16(FieldStats, offSupers),
		MaxSupers:     s.u16(FieldStats, offMaxSupers),
		PowerBombs:    s.u16(FieldStats, offPowerBombs),
		MaxPowerBombs: s.u16(FieldStats, offMaxPowerBombs),
		Reserve:       s.u16(FieldStats, offReserve),
		MaxReserve:    s.u16(FieldStats, offMaxReserve),
	}
}

// DecodeLocation decodes area, room, game state and coordinates.
//
// Each of the five reads is independent; an absent read decodes to 0 and
// an absent area therefore reports Crateria, matching what the game itself
// holds in a cleared WRAM.
func DecodeLocation(s Snapshots) Location {
	area := s.u8(FieldAreaID, 0)
	return Location{
		AreaID:    area,
		AreaName:  AreaName(area),
		RoomID:    s.u16(FieldRoomID, 0),
		GameState: s.u16(FieldGameState, 0),
		X:         s.u16(FieldPlayerX, 0),
		Y:         s.u16(FieldPlayerY, 0),
	}
}
