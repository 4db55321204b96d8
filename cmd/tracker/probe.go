// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/SamusTracker/pkg/logging"
	"github.com/AleutianAI/SamusTracker/pkg/ux"
	"github.com/AleutianAI/SamusTracker/services/tracker"
	"github.com/AleutianAI/SamusTracker/services/tracker/decode"
	"github.com/AleutianAI/SamusTracker/services/tracker/poller"
	"github.com/AleutianAI/SamusTracker/services/tracker/retroarch"
	"github.com/AleutianAI/SamusTracker/services/tracker/splits"
)

// probeTimeout bounds a single probe cycle.
const probeTimeout = 10 * time.Second

var errNotReachable = errors.New("retroarch is not reachable")

func runProbe(cmd *cobra.Command, args []string) error {
	logger, err := newProbeLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	store, err := splits.Open(splits.InMemoryConfig())
	if err != nil {
		return fmt.Errorf("open split store: %w", err)
	}
	defer store.Close()

	client := retroarch.New(cfg.RetroArch, logger.Slog())
	p := poller.New(tracker.NewSource(client), store, nil, logger.Slog(), poller.Config{
		Interval:  cfg.Poller.Interval,
		MaxSplits: cfg.Splits.MaxSplits,
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
	defer cancel()

	pollErr := p.PollOnce(ctx)
	rec := p.Cached()

	out := cmd.OutOrStdout()
	if probeJSON {
		if err := writeJSON(out, rec); err != nil {
			return err
		}
	} else {
		renderRecord(ux.NewPrinter(out, modeFor(out)), rec, client.Address())
	}

	if errors.Is(pollErr, poller.ErrUnreachable) {
		return errNotReachable
	}
	return pollErr
}

// newProbeLogger logs to stderr only, at the configured level, so stdout
// carries nothing but the report.
func newProbeLogger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{Level: level, Service: "tracker-probe"}), nil
}

// modeFor picks styled output only when w is a terminal.
func modeFor(w io.Writer) ux.Mode {
	if f, ok := w.(*os.File); ok {
		return ux.DetectMode(f)
	}
	return ux.ModePlain
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderRecord prints one poll record.
func renderRecord(p *ux.Printer, rec poller.Record, addr string) {
	p.Title("Samus Tracker")

	if !rec.Connected {
		p.Error(fmt.Sprintf("no reply from RetroArch at %s", addr))
		return
	}
	p.Success(fmt.Sprintf("connected to RetroArch %s at %s", rec.Version, addr))

	if !rec.GameLoaded {
		p.Warning("no content is running")
		return
	}
	p.Section("Game", []ux.Row{{Label: "Content", Value: rec.GameInfo}})

	prog := rec.Progress
	if prog == nil {
		p.Warning("no progress decoded")
		return
	}
	if prog.ResetDetected {
		p.Warning("new game detected, equipment hidden")
	}

	st := prog.Stats
	p.Section("Samus", []ux.Row{
		{Label: "Energy", Value: p.Gauge(st.Health, st.MaxHealth, 20)},
		{Label: "Reserve", Value: fmt.Sprintf("%d/%d", st.Reserve, st.MaxReserve)},
		{Label: "Missiles", Value: fmt.Sprintf("%d/%d", st.Missiles, st.MaxMissiles)},
		{Label: "Super Missiles", Value: fmt.Sprintf("%d/%d", st.Supers, st.MaxSupers)},
		{Label: "Power Bombs", Value: fmt.Sprintf("%d/%d", st.PowerBombs, st.MaxPowerBombs)},
	})

	loc := prog.Location
	p.Section("Location", []ux.Row{
		{Label: "Area", Value: loc.AreaName},
		{Label: "Room", Value: fmt.Sprintf("0x%04X", loc.RoomID)},
		{Label: "Position", Value: fmt.Sprintf("%d,%d", loc.X, loc.Y)},
	})

	p.Checklist("Items", itemChecks(prog.Items), 4)
	p.Checklist("Beams", beamChecks(prog.Beams), 3)
	p.Checklist("Bosses", bossChecks(prog.Bosses), 3)
}

func itemChecks(it decode.Items) []ux.Check {
	return []ux.Check{
		{Name: "Morph Ball", Done: it.Morph},
		{Name: "Bombs", Done: it.Bombs},
		{Name: "Spring Ball", Done: it.SpringBall},
		{Name: "Hi-Jump Boots", Done: it.HighJump},
		{Name: "Varia Suit", Done: it.Varia},
		{Name: "Gravity Suit", Done: it.Gravity},
		{Name: "Speed Booster", Done: it.SpeedBooster},
		{Name: "Space Jump", Done: it.SpaceJump},
		{Name: "Screw Attack", Done: it.ScrewAttack},
		{Name: "Grapple Beam", Done: it.Grapple},
		{Name: "X-Ray Scope", Done: it.XRay},
	}
}

func beamChecks(b decode.Beams) []ux.Check {
	return []ux.Check{
		{Name: "Charge", Done: b.Charge},
		{Name: "Ice", Done: b.Ice},
		{Name: "Wave", Done: b.Wave},
		{Name: "Spazer", Done: b.Spazer},
		{Name: "Plasma", Done: b.Plasma},
		{Name: "Hyper", Done: b.Hyper},
	}
}

func bossChecks(b decode.Bosses) []ux.Check {
	return []ux.Check{
		{Name: "Bomb Torizo", Done: b.BombTorizo},
		{Name: "Kraid", Done: b.Kraid},
		{Name: "Spore Spawn", Done: b.SporeSpawn},
		{Name: "Crocomire", Done: b.Crocomire},
		{Name: "Phantoon", Done: b.Phantoon},
		{Name: "Draygon", Done: b.Draygon},
		{Name: "Ridley", Done: b.Ridley},
		{Name: "Golden Torizo", Done: b.GoldenTorizo},
		{Name: "Mother Brain 1", Done: b.MotherBrain1},
		{Name: "Mother Brain 2", Done: b.MotherBrain2},
		{Name: "Escaped", Done: b.SamusEscaped},
	}
}
