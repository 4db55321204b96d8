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
// Memory Layout
// =============================================================================

// Field names one raw memory read in a poll cycle.
//
// # Description
//
// Every read the poller performs is keyed by a Field. The decoder only
// ever looks values up by name, so a read that failed is simply missing
// from the Snapshots map.
type Field string

const (
	FieldStats      Field = "stats"
	FieldRoomID     Field = "room_id"
	FieldAreaID     Field = "area_id"
	FieldGameState  Field = "game_state"
	FieldPlayerX    Field = "player_x"
	FieldPlayerY    Field = "player_y"
	FieldItems      Field = "items"
	FieldBeams      Field = "beams"
	FieldHyperBeam  Field = "hyper_beam"
	FieldBossesMain Field = "bosses_main"
	FieldBossRidley Field = "boss_ridley"
	FieldBossPlus1  Field = "boss_plus1"
	FieldBossPlus2  Field = "boss_plus2"
	FieldBossPlus3  Field = "boss_plus3"
	FieldBossPlus4  Field = "boss_plus4"
	FieldEscape1    Field = "escape_timer1"
	FieldEscape2    Field = "escape_timer2"
	FieldEscape3    Field = "escape_timer3"
	FieldEscape4    Field = "escape_timer4"
	FieldShipAI     Field = "ship_ai"
	FieldEventFlags Field = "event_flags"
)

// Region describes where a Field lives in the emulated address space.
//
// # Fields
//
//   - Field: The name the decoder uses to look the bytes up.
//   - Address: 24-bit SNES bus address (bank 0x7E is WRAM).
//   - Length: Number of bytes to read.
//   - Bulk: True for the single large counter read that gates a cycle.
type Region struct {
	Field   Field
	Address uint32
	Length  int
	Bulk    bool
}

// StatsLength is the size of the bulk counter read starting at 0x7E09C2.
const StatsLength = 22

// Offsets into the bulk counter read. All values are little-endian uint16.
// Offset 16 holds the HUD-selected item and is not decoded.
const (
	offHealth        = 0
	offMaxHealth     = 2
	offMissiles      = 4
	offMaxMissiles   = 6
	offSupers        = 8
	offMaxSupers     = 10
	offPowerBombs    = 12
	offMaxPowerBombs = 14
	offMaxReserve    = 18
	offReserve       = 20
)

// layout is the acquisition order for one poll cycle. The bulk read comes
// first; the rest are the targeted reads.
var layout = []Region{
	{Field: FieldStats, Address: 0x7E09C2, Length: StatsLength, Bulk: true},
	{Field: FieldRoomID, Address: 0x7E079B, Length: 2},
	{Field: FieldAreaID, Address: 0x7E079F, Length: 1},
	{Field: FieldGameState, Address: 0x7E0998, Length: 2},
	{Field: FieldPlayerX, Address: 0x7E0AF6, Length: 2},
	{Field: FieldPlayerY, Address: 0x7E0AFA, Length: 2},
	{Field: FieldItems, Address: 0x7E09A4, Length: 2},
	{Field: FieldBeams, Address: 0x7E09A8, Length: 2},
	{Field: FieldHyperBeam, Address: 0x7E0A76, Length: 2},
	{Field: FieldBossesMain, Address: 0x7ED828, Length: 2},
	{Field: FieldBossRidley, Address: 0x7ED82A, Length: 2},
	// The plus fields deliberately overlap: each is a 16-bit window that
	// straddles two per-area boss bytes.
	{Field: FieldBossPlus1, Address: 0x7ED829, Length: 2},
	{Field: FieldBossPlus2, Address: 0x7ED82B, Length: 2},
	{Field: FieldBossPlus3, Address: 0x7ED82C, Length: 2},
	{Field: FieldBossPlus4, Address: 0x7ED82D, Length: 2},
	{Field: FieldEscape1, Address: 0x7E0943, Length: 2},
	{Field: FieldEscape2, Address: 0x7E0945, Length: 2},
	{Field: FieldEscape3, Address: 0x7E0947, Length: 2},
	{Field: FieldEscape4, Address: 0x7E0949, Length: 2},
	{Field: FieldShipAI, Address: 0x7E0FB2, Length: 2},
	{Field: FieldEventFlags, Address: 0x7ED821, Length: 1},
}

// Layout returns the memory regions read each cycle, bulk read first.
//
// # Outputs
//
//   - []Region: A copy of the catalogue. Callers may modify it freely.
func Layout() []Region {
	out := make([]Region, len(layout))
	copy(out, layout)
	return out
}

// Snapshots is one cycle's worth of raw reads keyed by field.
//
// A missing key and a nil value both mean the read was absent.
type Snapshots map[Field][]byte

// u16 returns the little-endian uint16 at off within field f, or 0 when
// the field is absent or too short.
func (s Snapshots) u16(f Field, off int) int {
	b := s[f]
	if off < 0 || len(b) < off+2 {
		return 0
	}
	return int(b[off]) | int(b[off+1])<<8
}

// u8 returns the byte at off within field f, or 0 when absent.
func (s Snapshots) u8(f Field, off int) int {
	b := s[f]
	if off < 0 || len(b) < off+1 {
		return 0
	}
	return int(b[off])
}

// present reports whether field f was read with at least n bytes.
func (s Snapshots) present(f Field, n int) bool {
	return len(s[f]) >= n
}
