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
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/SamusTracker/pkg/logging"
	"github.com/AleutianAI/SamusTracker/services/tracker"
)

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger("tracker")
	if err != nil {
		return err
	}
	defer logger.Close()

	if logger.Level() != logging.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, err := tracker.New(cfg, tracker.Options{
		ConfigPath: configPath,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := svc.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, svc.Close())
}
