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
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Network Command Protocol
// =============================================================================
//
// RetroArch answers plain-text commands on UDP. Each request is one
// datagram and each reply is one datagram ending in a newline:
//
//	VERSION                        -> 1.19.1
//	GET_STATUS                     -> GET_STATUS PLAYING super_nes,Super Metroid,crc32=d63ed5f8
//	                               -> GET_STATUS CONTENTLESS
//	READ_CORE_MEMORY 7e09c2 22     -> READ_CORE_MEMORY 7e09c2 0c 02 57 02 ...
//	                               -> READ_CORE_MEMORY 7e09c2 -1 no memory map defined

const (
	cmdVersion    = "VERSION"
	cmdGetStatus  = "GET_STATUS"
	cmdReadMemory = "READ_CORE_MEMORY"
)

// Content states reported by GET_STATUS.
const (
	StatePlaying     = "PLAYING"
	StatePaused      = "PAUSED"
	StateContentless = "CONTENTLESS"
)

var (
	// ErrTimeout is returned when no reply arrives within the request timeout.
	ErrTimeout = errors.New("retroarch: request timed out")

	// ErrNoMemoryMap is returned when the running core exposes no memory map.
	ErrNoMemoryMap = errors.New("retroarch: core has no memory map")

	// ErrMalformedResponse is returned when a reply cannot be parsed.
	ErrMalformedResponse = errors.New("retroarch: malformed response")

	// ErrReadFailed is returned when RetroArch rejects a memory read.
	ErrReadFailed = errors.New("retroarch: memory read rejected")
)

// ContentStatus is the parsed reply to GET_STATUS.
type ContentStatus struct {
	State  string `json:"state"`
	System string `json:"system,omitempty"`
	Game   string `json:"game,omitempty"`
	CRC32  string `json:"crc32,omitempty"`
}

// Loaded reports whether content is running (playing or paused).
func (s ContentStatus) Loaded() bool {
	return s.State == StatePlaying || s.State == StatePaused
}

func readMemoryCommand(address uint32, length int) string {
	return fmt.Sprintf("%s %x %d", cmdReadMemory, address, length)
}

// parseStatus parses a GET_STATUS reply.
func parseStatus(reply string) (ContentStatus, error) {
	line := strings.TrimSpace(reply)
	rest, ok := strings.CutPrefix(line, cmdGetStatus+" ")
	if !ok {
		return ContentStatus{}, fmt.Errorf("%w: %q", ErrMalformedResponse, line)
	}

	state, info, _ := strings.Cut(rest, " ")
	st := ContentStatus{State: state}
	switch state {
	case StateContentless:
		return st, nil
	case StatePlaying, StatePaused:
	default:
		return ContentStatus{}, fmt.Errorf("%w: unknown state %q", ErrMalformedResponse, state)
	}

	// The game name may itself contain commas, so system is the first
	// element and crc32 the last.
	parts := strings.Split(info, ",")
	if len(parts) > 0 {
		st.System = parts[0]
		parts = parts[1:]
	}
	if n := len(parts); n > 0 {
		if crc, ok := strings.CutPrefix(parts[n-1], "crc32="); ok {
			st.CRC32 = crc
			parts = parts[:n-1]
		}
	}
	st.Game = strings.Join(parts, ",")
	return st, nil
}

// parseReadMemory parses a READ_CORE_MEMORY reply for the given address.
//
// A reply with fewer bytes than requested is returned as-is; the decoder
// degrades the missing tail.
func parseReadMemory(reply string, address uint32) ([]byte, error) {
	fields := strings.Fields(reply)
	if len(fields) < 2 || fields[0] != cmdReadMemory {
		return nil, fmt.Errorf("%w: %q", ErrMalformedResponse, strings.TrimSpace(reply))
	}

	got, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil || uint32(got) != address {
		return nil, fmt.Errorf("%w: reply for address %q, want %x", ErrMalformedResponse, fields[1], address)
	}

	data := fields[2:]
	if len(data) > 0 && data[0] == "-1" {
		msg := strings.Join(data[1:], " ")
		if strings.Contains(strings.ToLower(msg), "no memory map") {
			return nil, fmt.Errorf("%w: %s", ErrNoMemoryMap, msg)
		}
		return nil, fmt.Errorf("%w: %s", ErrReadFailed, msg)
	}

	out := make([]byte, len(data))
	for i, h := range data {
		b, err := hex.DecodeString(h)
		if err != nil || len(b) != 1 {
			return nil, fmt.Errorf("%w: byte %d is %q", ErrMalformedResponse, i, h)
		}
		out[i] = b[0]
	}
	return out, nil
}
