// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package poller

import (
	"github.com/AleutianAI/SamusTracker/services/tracker/decode"
)

// Bootstrap thresholds. A save loaded with any of these is assumed to be
// past the final fight, which the phase tracker could not have witnessed.
const (
	seedMaxHealth        = 1299
	seedTourianMaxHealth = 899
	seedTourianMissiles  = 100
	freshSaveMaxHealth   = 99
)

// shouldSeed decides whether to mark both Mother Brain phases as done.
//
// # Description
//
// Runs once, on the first cycle reporting nonzero health. Declines outright
// for anything that looks like a fresh save. Otherwise seeds when one of:
//
//  1. Hyper beam is equipped (only granted during the final fight).
//  2. Max health is near the cap.
//  3. Samus is in Tourian with late-game stats.
//
// # Inputs
//
//   - p: This cycle's decoded progress.
//
// # Outputs
//
//   - bool: True to seed.
func shouldSeed(p *decode.Progress) bool {
	st := p.Stats
	if p.ResetDetected {
		return false
	}
	if st.MaxHealth <= freshSaveMaxHealth && st.Missiles == 0 && st.MaxMissiles == 0 {
		return false
	}

	switch {
	case p.Beams.Hyper:
		return true
	case st.MaxHealth >= seedMaxHealth:
		return true
	case p.Location.AreaID == decode.AreaTourian &&
		st.MaxHealth >= seedTourianMaxHealth &&
		st.MaxMissiles >= seedTourianMissiles:
		return true
	}
	return false
}
