// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads, validates and hot-reloads tracker settings.
//
// # Description
//
// Settings come from three layers, later ones winning:
//
//  1. DefaultConfig().
//  2. A YAML file (optional).
//  3. TRACKER_* environment variables.
//
// The merged result is checked with go-playground/validator before use.
// While the tracker runs, a Watcher re-reads the file on change and
// applies the poll interval and log level live; every other section is
// only reported as needing a restart.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/SamusTracker/services/tracker/poller"
	"github.com/AleutianAI/SamusTracker/services/tracker/retroarch"
	"github.com/AleutianAI/SamusTracker/services/tracker/telemetry"
)

// =============================================================================
// Types
// =============================================================================

// Config is the full tracker configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	RetroArch retroarch.Config `yaml:"retroarch"`
	Poller    poller.Config    `yaml:"poller"`
	Splits    SplitsConfig     `yaml:"splits"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig configures the HTTP façade.
type ServerConfig struct {
	// Address is the listen address. Loopback by default: the façade has
	// no authentication.
	Address string `yaml:"address" validate:"required"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// SplitsConfig configures the split store.
type SplitsConfig struct {
	// Path is the BadgerDB directory. Supports ~ expansion.
	Path string `yaml:"path" validate:"required_without=InMemory"`

	// InMemory keeps splits only for the life of the process.
	InMemory bool `yaml:"in_memory"`

	// MaxSplits caps stored splits; oldest are dropped.
	MaxSplits int `yaml:"max_splits" validate:"gte=1"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns the settings for a local install next to a stock
// RetroArch.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         "127.0.0.1:8765",
			ShutdownTimeout: 5 * time.Second,
		},
		RetroArch: retroarch.DefaultConfig(),
		Poller:    poller.DefaultConfig(),
		Splits: SplitsConfig{
			Path:      "~/.samus-tracker/splits",
			MaxSplits: 256,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// =============================================================================
// Loading
// =============================================================================

// ErrInvalid wraps every validation failure returned by Load and Validate.
var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load builds a Config from defaults, the file at path and the environment.
//
// # Inputs
//
//   - path: YAML file. "" skips the file layer. A missing file is an error.
//
// # Outputs
//
//   - Config: The merged, validated configuration.
//   - error: Read, parse or validation failure. Validation failures wrap
//     ErrInvalid.
//
// # Examples
//
//	cfg, err := config.Load("/etc/samus-tracker.yaml")
//	if errors.Is(err, config.ErrInvalid) {
//	    // bad values, not a missing file
//	}
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field's constraints.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Marshal renders cfg as YAML. Used by `tracker config` to print the
// effective settings.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// decode unmarshals YAML over cfg, rejecting unknown keys.
func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// =============================================================================
// Environment
// =============================================================================

// Environment variables recognized by Load.
const (
	EnvHTTPAddress      = "TRACKER_HTTP_ADDRESS"
	EnvRetroArchAddress = "TRACKER_RETROARCH_ADDRESS"
	EnvPollInterval     = "TRACKER_POLL_INTERVAL"
	EnvSplitsPath       = "TRACKER_SPLITS_PATH"
	EnvLogLevel         = "TRACKER_LOG_LEVEL"
)

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvHTTPAddress); v != "" {
		cfg.Server.Address = v
	}
	if v := getenv(EnvRetroArchAddress); v != "" {
		cfg.RetroArch.Address = v
	}
	if v := getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvPollInterval, v, err)
		}
		cfg.Poller.Interval = d
	}
	if v := getenv(EnvSplitsPath); v != "" {
		cfg.Splits.Path = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// =============================================================================
// Reload Classification
// =============================================================================

// RestartRequired lists the sections that differ between old and next and
// cannot be applied to a running tracker.
func RestartRequired(old, next Config) []string {
	var out []string
	if old.Server != next.Server {
		out = append(out, "server")
	}
	if old.RetroArch != next.RetroArch {
		out = append(out, "retroarch")
	}
	if old.Splits != next.Splits {
		out = append(out, "splits")
	}
	if old.Logging.Dir != next.Logging.Dir || old.Logging.JSON != next.Logging.JSON {
		out = append(out, "logging.dir/json")
	}
	if old.Telemetry != next.Telemetry {
		out = append(out, "telemetry")
	}
	return out
}
