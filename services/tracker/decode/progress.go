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
// Progress Model
// =============================================================================

// Stats holds the current/max counter pairs from the bulk read.
//
// Max values are legitimately 0 before the first expansion of that kind
// has been collected.
type Stats struct {
	Health        int `json:"health"`
	MaxHealth     int `json:"max_health"`
	Missiles      int `json:"missiles"`
	MaxMissiles   int `json:"max_missiles"`
	Supers        int `json:"supers"`
	MaxSupers     int `json:"max_supers"`
	PowerBombs    int `json:"power_bombs"`
	MaxPowerBombs int `json:"max_power_bombs"`
	Reserve       int `json:"reserve_energy"`
	MaxReserve    int `json:"max_reserve_energy"`
}

// Location is where Samus is this cycle.
type Location struct {
	AreaID    int    `json:"area_id"`
	AreaName  string `json:"area_name"`
	RoomID    int    `json:"room_id"`
	GameState int    `json:"game_state"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

// Items holds the collected-equipment flags.
type Items struct {
	Morph        bool `json:"morph"`
	Bombs        bool `json:"bombs"`
	SpringBall   bool `json:"spring_ball"`
	HighJump     bool `json:"high_jump"`
	Varia        bool `json:"varia"`
	Gravity      bool `json:"gravity"`
	SpeedBooster bool `json:"speed_booster"`
	SpaceJump    bool `json:"space_jump"`
	ScrewAttack  bool `json:"screw_attack"`
	Grapple      bool `json:"grapple"`
	XRay         bool `json:"xray"`
}

// Beams holds the collected-beam flags.
type Beams struct {
	Charge bool `json:"charge"`
	Ice    bool `json:"ice"`
	Wave   bool `json:"wave"`
	Spazer bool `json:"spazer"`
	Plasma bool `json:"plasma"`
	Hyper  bool `json:"hyper"`
}

// Bosses holds boss defeat flags.
//
// MotherBrain1 and MotherBrain2 mirror the carried PhaseState rather than
// being recomputed from this cycle's bytes. MotherBrain is an alias for
// MotherBrain2 kept for UI convenience. SamusEscaped is the end-of-game flag.
type Bosses struct {
	BombTorizo   bool `json:"bomb_torizo"`
	Kraid        bool `json:"kraid"`
	SporeSpawn   bool `json:"spore_spawn"`
	Crocomire    bool `json:"crocomire"`
	Phantoon     bool `json:"phantoon"`
	Draygon      bool `json:"draygon"`
	Ridley       bool `json:"ridley"`
	GoldenTorizo bool `json:"golden_torizo"`
	MotherBrain1 bool `json:"mother_brain_1"`
	MotherBrain2 bool `json:"mother_brain_2"`
	MotherBrain  bool `json:"mother_brain"`
	SamusEscaped bool `json:"samus_escaped"`
}

// Progress is the decoded, user-facing state for one poll cycle.
//
// # Description
//
// Every field in a Progress is derived from the same cycle's Snapshots
// (plus the carried PhaseState for the Mother Brain flags). A Progress is
// never mutated after Decode returns it.
type Progress struct {
	Stats         Stats    `json:"stats"`
	Location      Location `json:"location"`
	Items         Items    `json:"items"`
	Beams         Beams    `json:"beams"`
	Bosses        Bosses   `json:"bosses"`
	ResetDetected bool     `json:"reset_detected"`
}
