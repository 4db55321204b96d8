// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package splits records run milestones ("splits") and persists them.
//
// A split is written whenever a boss, item or beam flag turns on between
// two consecutive poll cycles. Splits survive restarts in a small BadgerDB
// store so a tracker crash mid-run does not lose the timeline.
package splits

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/SamusTracker/services/tracker/decode"
)

// Kind classifies a split.
type Kind string

const (
	KindBoss   Kind = "boss"
	KindItem   Kind = "item"
	KindBeam   Kind = "beam"
	KindEscape Kind = "escape"
)

// Split is one timestamped milestone.
type Split struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	At        time.Time `json:"at"`
	PollCount uint64    `json:"poll_count"`
}

type milestone struct {
	name string
	kind Kind
	get  func(p *decode.Progress) bool
}

// milestones is evaluated in order, so splits produced by the same cycle
// come out bosses first, then items, then beams.
var milestones = []milestone{
	{"Bomb Torizo", KindBoss, func(p *decode.Progress) bool { return p.Bosses.BombTorizo }},
	{"Kraid", KindBoss, func(p *decode.Progress) bool { return p.Bosses.Kraid }},
	{"Spore Spawn", KindBoss, func(p *decode.Progress) bool { return p.Bosses.SporeSpawn }},
	{"Crocomire", KindBoss, func(p *decode.Progress) bool { return p.Bosses.Crocomire }},
	{"Phantoon", KindBoss, func(p *decode.Progress) bool { return p.Bosses.Phantoon }},
	{"Draygon", KindBoss, func(p *decode.Progress) bool { return p.Bosses.Draygon }},
	{"Ridley", KindBoss, func(p *decode.Progress) bool { return p.Bosses.Ridley }},
	{"Golden Torizo", KindBoss, func(p *decode.Progress) bool { return p.Bosses.GoldenTorizo }},
	{"Mother Brain 1", KindBoss, func(p *decode.Progress) bool { return p.Bosses.MotherBrain1 }},
	{"Mother Brain 2", KindBoss, func(p *decode.Progress) bool { return p.Bosses.MotherBrain2 }},
	{"Escape", KindEscape, func(p *decode.Progress) bool { return p.Bosses.SamusEscaped }},

	{"Morph Ball", KindItem, func(p *decode.Progress) bool { return p.Items.Morph }},
	{"Bombs", KindItem, func(p *decode.Progress) bool { return p.Items.Bombs }},
	{"Spring Ball", KindItem, func(p *decode.Progress) bool { return p.Items.SpringBall }},
	{"Hi-Jump Boots", KindItem, func(p *decode.Progress) bool { return p.Items.HighJump }},
	{"Varia Suit", KindItem, func(p *decode.Progress) bool { return p.Items.Varia }},
	{"Gravity Suit", KindItem, func(p *decode.Progress) bool { return p.Items.Gravity }},
	{"Speed Booster", KindItem, func(p *decode.Progress) bool { return p.Items.SpeedBooster }},
	{"Space Jump", KindItem, func(p *decode.Progress) bool { return p.Items.SpaceJump }},
	{"Screw Attack", KindItem, func(p *decode.Progress) bool { return p.Items.ScrewAttack }},
	{"Grapple Beam", KindItem, func(p *decode.Progress) bool { return p.Items.Grapple }},
	{"X-Ray Scope", KindItem, func(p *decode.Progress) bool { return p.Items.XRay }},

	{"Charge Beam", KindBeam, func(p *decode.Progress) bool { return p.Beams.Charge }},
	{"Ice Beam", KindBeam, func(p *decode.Progress) bool { return p.Beams.Ice }},
	{"Wave Beam", KindBeam, func(p *decode.Progress) bool { return p.Beams.Wave }},
	{"Spazer", KindBeam, func(p *decode.Progress) bool { return p.Beams.Spazer }},
	{"Plasma Beam", KindBeam, func(p *decode.Progress) bool { return p.Beams.Plasma }},
	{"Hyper Beam", KindBeam, func(p *decode.Progress) bool { return p.Beams.Hyper }},
}

// Detect compares two consecutive cycles and returns a Split for every flag
// that went from false to true.
//
// Description:
//
//	Returns nil when either side is missing or when either cycle tripped
//	the reset predicate: loading a save flips many flags at once and none
//	of those flips are milestones.
//
// Inputs:
//
//	prev - The previously published progress. May be nil.
//	cur - This cycle's progress. May be nil.
//	pollCount - The poll count the new record will carry.
//	at - Timestamp for every produced split.
//
// Outputs:
//
//	[]Split - New splits in milestone order, or nil.
func Detect(prev, cur *decode.Progress, pollCount uint64, at time.Time) []Split {
	if prev == nil || cur == nil || prev.ResetDetected || cur.ResetDetected {
		return nil
	}

	var out []Split
	for _, m := range milestones {
		if !m.get(prev) && m.get(cur) {
			out = append(out, Split{
				ID:        uuid.NewString(),
				Name:      m.name,
				Kind:      m.kind,
				At:        at,
				PollCount: pollCount,
			})
		}
	}
	return out
}
