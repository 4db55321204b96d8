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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNewGame(t *testing.T) {
	tests := []struct {
		name        string
		area, room  int
		health      int
		missiles    int
		maxMissiles int
		want        bool
	}{
		{"crateria fresh save", AreaCrateria, 356, 99, 0, 0, true},
		{"crateria low health", AreaCrateria, 356, 50, 5, 10, true},
		{"crateria real room", AreaCrateria, 0x91F8, 50, 0, 0, false},
		{"crateria at threshold", AreaCrateria, NewGameRoomThreshold, 99, 0, 0, false},
		{"definite new game outside crateria", AreaBrinstar, 356, 99, 0, 0, true},
		{"99 health with missiles", AreaBrinstar, 356, 99, 5, 5, false},
		{"99 health with capacity only", AreaBrinstar, 356, 99, 0, 5, false},
		{"healthy brinstar", AreaBrinstar, 356, 150, 0, 0, false},
		{"crateria above 99", AreaCrateria, 356, 100, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsNewGame(tt.area, tt.room, tt.health, tt.missiles, tt.maxMissiles)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeItems(t *testing.T) {
	s := Snapshots{FieldItems: le16(itemMorph | itemVaria | itemScrewAttack | itemXRay)}

	it := DecodeItems(s, false)

	assert.True(t, it.Morph)
	assert.True(t, it.Varia)
	assert.True(t, it.ScrewAttack)
	assert.True(t, it.XRay)
	assert.False(t, it.Bombs)
	assert.False(t, it.Gravity)
	assert.False(t, it.Grapple)
}

func TestDecodeItems_AllBits(t *testing.T) {
	it := DecodeItems(Snapshots{FieldItems: le16(0xFFFF)}, false)

	assert.Equal(t, Items{
		Morph: true, Bombs: true, SpringBall: true, HighJump: true,
		Varia: true, Gravity: true, SpeedBooster: true, SpaceJump: true,
		ScrewAttack: true, Grapple: true, XRay: true,
	}, it)
}

func TestDecodeItems_Absent(t *testing.T) {
	assert.Equal(t, Items{}, DecodeItems(Snapshots{}, false))
	assert.Equal(t, Items{}, DecodeItems(Snapshots{FieldItems: {0x04}}, false), "short read is absent")
}

func TestDecodeBeams(t *testing.T) {
	s := Snapshots{
		FieldBeams:     le16(beamCharge | beamIce | beamPlasma),
		FieldHyperBeam: le16(0x8000),
	}

	b := DecodeBeams(s, false)

	assert.Equal(t, Beams{Charge: true, Ice: true, Plasma: true, Hyper: true}, b)
}

func TestDecodeBeams_ResetOverridesBits(t *testing.T) {
	s := Snapshots{
		FieldBeams:     le16(0xFFFF),
		FieldHyperBeam: le16(0x0001),
	}

	assert.Equal(t, Beams{}, DecodeBeams(s, true))
	assert.Equal(t, Items{}, DecodeItems(Snapshots{FieldItems: le16(0xFFFF)}, true))
}
