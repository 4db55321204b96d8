// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives a configuration that passed validation after the
// file changed.
type ReloadFunc func(old, next Config)

// Watcher re-loads the config file whenever it changes on disk.
//
// # Description
//
// The file's directory is watched rather than the file itself, so editors
// that save by rename-and-replace are still seen. Bursts of events are
// debounced into one reload. A file that fails to parse or validate is
// logged and ignored; the previous configuration stays current.
//
// # Thread Safety
//
// Current is safe for concurrent use. The ReloadFunc is called from the
// Run goroutine only.
type Watcher struct {
	path     string
	logger   *slog.Logger
	onReload ReloadFunc
	debounce time.Duration

	mu      sync.RWMutex
	current Config
}

// NewWatcher creates a Watcher for path starting from initial.
func NewWatcher(path string, initial Config, logger *slog.Logger, onReload ReloadFunc) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return &Watcher{
		path:     abs,
		logger:   logger.With(slog.String("component", "config_watcher")),
		onReload: onReload,
		debounce: 100 * time.Millisecond,
		current:  initial,
	}
}

// Current returns the most recently applied configuration.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run watches until ctx is cancelled.
//
// # Outputs
//
//   - error: Non-nil only if the watch could not be established or the
//     fsnotify channels closed unexpectedly. nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching config", slog.String("path", w.path))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("config watcher events closed")
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("config watcher errors closed")
			}
			w.logger.Warn("config watcher error", slog.String("error", err.Error()))
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous", slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = next
	w.mu.Unlock()

	if sections := RestartRequired(old, next); len(sections) > 0 {
		w.logger.Warn("config changes need a restart", slog.Any("sections", sections))
	}
	w.logger.Info("config reloaded",
		slog.String("poll_interval", next.Poller.Interval.String()),
		slog.String("log_level", next.Logging.Level),
	)
	if w.onReload != nil {
		w.onReload(old, next)
	}
}
