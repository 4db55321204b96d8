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

	"github.com/AleutianAI/SamusTracker/pkg/logging"
	"github.com/AleutianAI/SamusTracker/services/tracker/config"
)

var (
	// configPath is the --config flag. Empty means defaults plus env.
	configPath string

	// logLevel is the --log-level flag. Empty keeps the configured level.
	logLevel string

	// cfg is loaded once in PersistentPreRunE and read by every command.
	cfg config.Config
)

var (
	rootCmd = &cobra.Command{
		Use:           "tracker",
		Short:         "Live Super Metroid progress tracker for RetroArch",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				if _, err := logging.ParseLevel(logLevel); err != nil {
					return err
				}
				loaded.Logging.Level = logLevel
			}
			cfg = loaded
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Poll RetroArch and serve progress over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE:  runServe, // serve.go
	}

	probeCmd = &cobra.Command{
		Use:   "probe",
		Short: "Run one poll cycle and print what the tracker sees",
		Args:  cobra.NoArgs,
		RunE:  runProbe, // probe.go
	}

	splitsCmd = &cobra.Command{
		Use:   "splits",
		Short: "Inspect the recorded splits",
	}
	splitsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recorded splits, oldest first",
		Args:  cobra.NoArgs,
		RunE:  runSplitsList, // splits.go
	}
	splitsClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded split",
		Args:  cobra.NoArgs,
		RunE:  runSplitsClear, // splits.go
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the tracker version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tracker %s\n", version)
		},
	}
)

// probe flags
var (
	probeJSON bool
)

// splits flags
var (
	splitsJSON bool
)

func init() {
	// version must work with a broken config file
	versionCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (hot reloaded by serve)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	probeCmd.Flags().BoolVar(&probeJSON, "json", false, "print the record as JSON")
	splitsListCmd.Flags().BoolVar(&splitsJSON, "json", false, "print splits as JSON")

	splitsCmd.AddCommand(splitsListCmd, splitsClearCmd)
	rootCmd.AddCommand(serveCmd, probeCmd, splitsCmd, configCmd, versionCmd)
}

// newLogger builds the process logger from the loaded config.
func newLogger(service string) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: service,
		JSON:    cfg.Logging.JSON,
	}), nil
}
