// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package splits

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/SamusTracker/services/tracker/decode"
)

func TestDetect_FalseToTrue(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := &decode.Progress{}
	cur := &decode.Progress{
		Items:  decode.Items{Morph: true},
		Beams:  decode.Beams{Charge: true},
		Bosses: decode.Bosses{Kraid: true},
	}

	got := Detect(prev, cur, 42, at)

	require.Len(t, got, 3)
	assert.Equal(t, "Kraid", got[0].Name)
	assert.Equal(t, KindBoss, got[0].Kind)
	assert.Equal(t, "Morph Ball", got[1].Name)
	assert.Equal(t, KindItem, got[1].Kind)
	assert.Equal(t, "Charge Beam", got[2].Name)
	assert.Equal(t, KindBeam, got[2].Kind)
	for _, sp := range got {
		assert.Equal(t, uint64(42), sp.PollCount)
		assert.Equal(t, at, sp.At)
		_, err := uuid.Parse(sp.ID)
		assert.NoError(t, err)
	}
}

func TestDetect_NoRepeatWhileHeld(t *testing.T) {
	p := &decode.Progress{Bosses: decode.Bosses{Ridley: true}}

	assert.Empty(t, Detect(p, p, 1, time.Now()))
}

func TestDetect_TrueToFalseIgnored(t *testing.T) {
	prev := &decode.Progress{Items: decode.Items{Varia: true}}
	cur := &decode.Progress{}

	assert.Empty(t, Detect(prev, cur, 1, time.Now()))
}

func TestDetect_ResetSuppresses(t *testing.T) {
	cur := &decode.Progress{Items: decode.Items{Morph: true}}

	assert.Nil(t, Detect(&decode.Progress{ResetDetected: true}, cur, 1, time.Now()),
		"flips out of a save load are not milestones")
	assert.Nil(t, Detect(&decode.Progress{}, &decode.Progress{ResetDetected: true}, 1, time.Now()))
}

func TestDetect_NilSides(t *testing.T) {
	p := &decode.Progress{Bosses: decode.Bosses{Draygon: true}}

	assert.Nil(t, Detect(nil, p, 1, time.Now()))
	assert.Nil(t, Detect(p, nil, 1, time.Now()))
}

func TestDetect_Escape(t *testing.T) {
	prev := &decode.Progress{Bosses: decode.Bosses{MotherBrain1: true, MotherBrain2: true, MotherBrain: true}}
	cur := &decode.Progress{Bosses: decode.Bosses{MotherBrain1: true, MotherBrain2: true, MotherBrain: true, SamusEscaped: true}}

	got := Detect(prev, cur, 9, time.Now())

	require.Len(t, got, 1)
	assert.Equal(t, KindEscape, got[0].Kind)
}
