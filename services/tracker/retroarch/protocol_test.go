// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retroarch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  ContentStatus
	}{
		{
			name:  "playing",
			reply: "GET_STATUS PLAYING super_nes,Super Metroid (Japan, USA),crc32=d63ed5f8\n",
			want:  ContentStatus{State: StatePlaying, System: "super_nes", Game: "Super Metroid (Japan, USA)", CRC32: "d63ed5f8"},
		},
		{
			name:  "paused without crc",
			reply: "GET_STATUS PAUSED super_nes,Super Metroid",
			want:  ContentStatus{State: StatePaused, System: "super_nes", Game: "Super Metroid"},
		},
		{
			name:  "contentless",
			reply: "GET_STATUS CONTENTLESS\n",
			want:  ContentStatus{State: StateContentless},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStatus(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatus_Loaded(t *testing.T) {
	assert.True(t, ContentStatus{State: StatePlaying}.Loaded())
	assert.True(t, ContentStatus{State: StatePaused}.Loaded())
	assert.False(t, ContentStatus{State: StateContentless}.Loaded())
	assert.False(t, ContentStatus{}.Loaded())
}

func TestParseStatus_Malformed(t *testing.T) {
	for _, reply := range []string{"", "1.19.1", "GET_STATUS", "GET_STATUS RUNNING x,y"} {
		_, err := parseStatus(reply)
		assert.ErrorIs(t, err, ErrMalformedResponse, "reply %q", reply)
	}
}

func TestParseReadMemory(t *testing.T) {
	got, err := parseReadMemory("READ_CORE_MEMORY 7e09c2 04 02 57 02\n", 0x7E09C2)

	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x02, 0x57, 0x02}, got)
}

func TestParseReadMemory_UpperCaseAddress(t *testing.T) {
	got, err := parseReadMemory("READ_CORE_MEMORY 7E0998 08 00", 0x7E0998)

	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x00}, got)
}

func TestParseReadMemory_Errors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  error
	}{
		{"no memory map", "READ_CORE_MEMORY 7e09c2 -1 no memory map defined", ErrNoMemoryMap},
		{"rejected", "READ_CORE_MEMORY 7e09c2 -1 address out of range", ErrReadFailed},
		{"wrong command", "GET_STATUS PLAYING", ErrMalformedResponse},
		{"wrong address", "READ_CORE_MEMORY 7e0000 01", ErrMalformedResponse},
		{"bad byte", "READ_CORE_MEMORY 7e09c2 zz", ErrMalformedResponse},
		{"wide byte", "READ_CORE_MEMORY 7e09c2 0102", ErrMalformedResponse},
		{"truncated", "READ_CORE_MEMORY", ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseReadMemory(tt.reply, 0x7E09C2)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadMemoryCommand(t *testing.T) {
	assert.Equal(t, "READ_CORE_MEMORY 7e09c2 22", readMemoryCommand(0x7E09C2, 22))
}
