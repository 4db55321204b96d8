// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tracker assembles the Super Metroid tracker service.
//
// # Description
//
// The service owns one RetroArch client, one split store, one Poller and
// one gin router. Run drives the poll loop, the HTTP server and, when a
// config file is in use, the config watcher under a single errgroup: the
// first to fail stops the others.
//
//	RetroArch ──UDP──► Poller ──► cache ──► gin ──► HTTP / WebSocket
//	                     │
//	                     └──► split store (badger)
//
// # Usage
//
//	cfg, err := config.Load(path)
//	svc, err := tracker.New(cfg, tracker.Options{ConfigPath: path, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//	return svc.Run(ctx)
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/SamusTracker/pkg/logging"
	"github.com/AleutianAI/SamusTracker/services/tracker/config"
	"github.com/AleutianAI/SamusTracker/services/tracker/observability"
	"github.com/AleutianAI/SamusTracker/services/tracker/poller"
	"github.com/AleutianAI/SamusTracker/services/tracker/retroarch"
	"github.com/AleutianAI/SamusTracker/services/tracker/routes"
	"github.com/AleutianAI/SamusTracker/services/tracker/splits"
	"github.com/AleutianAI/SamusTracker/services/tracker/telemetry"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the running tracker.
type Service interface {
	// Run blocks until ctx is cancelled or a component fails. The poller is
	// stopped and the HTTP server drained before Run returns.
	Run(ctx context.Context) error

	// Router returns the configured gin engine, for tests.
	Router() *gin.Engine

	// Poller returns the service's poller.
	Poller() *poller.Poller

	// Close releases the split store and flushes telemetry. Call after Run
	// returns.
	Close() error
}

// Options carries dependencies that are not part of the config file.
//
// # Fields
//
//   - ConfigPath: File to watch for hot reload. "" disables watching.
//   - Logger: Required. Its level is adjusted on reload.
//   - Registerer: Prometheus registerer for poller metrics. nil uses the
//     default registry.
type Options struct {
	ConfigPath string
	Logger     *logging.Logger
	Registerer prometheus.Registerer
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	cfg        config.Config
	configPath string
	logger     *logging.Logger
	log        *slog.Logger

	client *retroarch.Client
	store  *splits.Store
	poll   *poller.Poller
	router *gin.Engine

	telemetryShutdown func(context.Context) error
}

var _ Service = (*service)(nil)

// New builds every component. Nothing runs until Run.
//
// # Inputs
//
//   - cfg: A validated configuration (see config.Load).
//   - opts: Logger is required.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Telemetry or split store initialization failed.
func New(cfg config.Config, opts Options) (Service, error) {
	if opts.Logger == nil {
		return nil, errors.New("tracker: logger is required")
	}

	s := &service{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		log:        opts.Logger.Slog(),
	}

	shutdown, err := telemetry.Init(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.telemetryShutdown = shutdown

	var metrics *observability.PollMetrics
	if opts.Registerer != nil {
		metrics = observability.NewPollMetrics(opts.Registerer)
	} else {
		metrics = observability.InitMetrics()
	}

	facade, err := telemetry.NewFacadeMetrics(otel.Meter("tracker.http"))
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to create facade metrics: %w", err)
	}

	s.store, err = OpenStore(cfg.Splits, s.log)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open split store: %w", err)
	}

	s.client = retroarch.New(cfg.RetroArch, s.log)

	pollCfg := cfg.Poller
	pollCfg.MaxSplits = cfg.Splits.MaxSplits
	s.poll = poller.New(NewSource(s.client), s.store, metrics, s.log, pollCfg)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	routes.SetupRoutes(s.router, s.poll, facade, cfg.Telemetry.ServiceName, s.log)

	return s, nil
}

// Run implements Service.
func (s *service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Server.Address,
		Handler: s.router,
	}

	g.Go(func() error {
		if err := s.poll.Start(gctx); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
		<-gctx.Done()
		return s.poll.Stop()
	})

	g.Go(func() error {
		s.log.Info("http server listening",
			slog.String("address", srv.Addr),
			slog.String("retroarch", s.client.Address()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if s.configPath != "" {
		w := config.NewWatcher(s.configPath, s.cfg, s.log, s.applyReload)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	err := g.Wait()
	s.log.Info("tracker stopped")
	return err
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Poller() *poller.Poller {
	return s.poll
}

// Close implements Service.
func (s *service) Close() error {
	return s.cleanup()
}

// =============================================================================
// Internal Methods
// =============================================================================

// applyReload applies the settings that can change while running.
func (s *service) applyReload(old, next config.Config) {
	if next.Poller.Interval != old.Poller.Interval {
		if err := s.poll.SetInterval(next.Poller.Interval); err != nil {
			s.log.Warn("poll interval not applied", slog.String("error", err.Error()))
		}
	}
	if next.Logging.Level != old.Logging.Level {
		level, err := logging.ParseLevel(next.Logging.Level)
		if err != nil {
			s.log.Warn("log level not applied", slog.String("error", err.Error()))
			return
		}
		s.logger.SetLevel(level)
		s.log.Info("log level changed", slog.String("level", level.String()))
	}
}

func (s *service) cleanup() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close split store: %w", err))
		}
	}
	if s.telemetryShutdown != nil {
		if err := s.telemetryShutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
		s.telemetryShutdown = nil
	}
	return errors.Join(errs...)
}

// OpenStore opens the badger split store described by cfg. The CLI uses
// it to list and clear splits without starting the service.
func OpenStore(cfg config.SplitsConfig, logger *slog.Logger) (*splits.Store, error) {
	var sc splits.Config
	if cfg.InMemory {
		sc = splits.InMemoryConfig()
	} else {
		sc = splits.DefaultConfig(expandHome(cfg.Path))
	}
	sc.MaxSplits = cfg.MaxSplits
	sc.Logger = logger
	return splits.Open(sc)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
