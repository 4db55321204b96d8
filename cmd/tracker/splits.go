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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/SamusTracker/pkg/ux"
	"github.com/AleutianAI/SamusTracker/services/tracker"
	"github.com/AleutianAI/SamusTracker/services/tracker/splits"
)

// openSplits opens the configured store. The store is locked while serve
// is running, so these commands fail fast instead of racing it.
func openSplits() (*splits.Store, func(), error) {
	logger, err := newLogger("tracker-splits")
	if err != nil {
		return nil, nil, err
	}
	store, err := tracker.OpenStore(cfg.Splits, logger.Slog())
	if err != nil {
		logger.Close()
		return nil, nil, fmt.Errorf("open split store (is serve running?): %w", err)
	}
	return store, func() {
		store.Close()
		logger.Close()
	}, nil
}

func runSplitsList(cmd *cobra.Command, args []string) error {
	store, done, err := openSplits()
	if err != nil {
		return err
	}
	defer done()

	list, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if splitsJSON {
		if list == nil {
			list = []splits.Split{}
		}
		return writeJSON(out, list)
	}

	p := ux.NewPrinter(out, modeFor(out))
	if len(list) == 0 {
		p.Warning("no splits recorded")
		return nil
	}
	p.Section("Splits", splitRows(list))
	return nil
}

func runSplitsClear(cmd *cobra.Command, args []string) error {
	store, done, err := openSplits()
	if err != nil {
		return err
	}
	defer done()

	if err := store.Clear(cmd.Context()); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ux.NewPrinter(out, modeFor(out)).Success("splits cleared")
	return nil
}

// splitRows labels each split with its timestamp, oldest first.
func splitRows(list []splits.Split) []ux.Row {
	rows := make([]ux.Row, len(list))
	for i, s := range list {
		rows[i] = ux.Row{
			Label: s.At.Local().Format("15:04:05"),
			Value: fmt.Sprintf("%s (%s)", s.Name, s.Kind),
		}
	}
	return rows
}
