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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/tagfilter/services/tagfilter/telemetry"
	"github.com/go-playground/validator/v10"
)

// TagfilterConfig is the contents of ~/.tagfilter/tagfilter.yaml.
type TagfilterConfig struct {
	// Storage: where filters are persisted.
	Storage StorageConfig `yaml:"storage" validate:"required"`

	// Server: settings for `tagfilter serve`.
	Server ServerConfig `yaml:"server" validate:"required"`

	// Logging: console and file logging.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry: OpenTelemetry exporters used by `tagfilter serve`.
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Editing: defaults for edit commands.
	Editing EditingConfig `yaml:"editing"`
}

type StorageConfig struct {
	Dir            string        `yaml:"dir" validate:"required"`      // e.g. ~/.tagfilter/data
	SyncWrites     bool          `yaml:"sync_writes"`                  // fsync every commit
	GCInterval     time.Duration `yaml:"gc_interval" validate:"gte=0"` // e.g. 5m, 0s disables; units are required
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" validate:"gte=0,lt=1"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" validate:"required,hostname_port"` // e.g. 127.0.0.1:8089
	WatchDir       string        `yaml:"watch_dir,omitempty"`                    // import YAML documents from here
	WatchDebounce  time.Duration `yaml:"watch_debounce" validate:"gte=0"`
	EventBuffer    int           `yaml:"event_buffer" validate:"gte=0"` // replayable events per filter
	ReadTimeout    time.Duration `yaml:"read_timeout" validate:"gte=0"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace" validate:"gte=0"`
	ReloadOnImport bool          `yaml:"reload_on_import"` // refresh open sessions after a watched import
	Auth           AuthConfig    `yaml:"auth"`
}

// AuthConfig protects the API. With no tokens every request is the local
// admin.
type AuthConfig struct {
	Tokens []AuthToken `yaml:"tokens,omitempty" validate:"dive"`
	Audit  bool        `yaml:"audit"` // log edits and denials as audit records
}

type AuthToken struct {
	Token string   `yaml:"token" validate:"required,min=16"`
	User  string   `yaml:"user" validate:"required"`
	Roles []string `yaml:"roles" validate:"required,min=1,dive,oneof=viewer editor admin"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"` // JSON log files; empty disables
	JSON  bool   `yaml:"json"`
}

type EditingConfig struct {
	// KeepEmpty retains AND/OR nodes emptied by `tagfilter prune`.
	KeepEmpty bool `yaml:"keep_empty"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() TagfilterConfig {
	base := "~/.tagfilter"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".tagfilter")
	}
	tel := telemetry.DefaultConfig()
	tel.TraceExporter = "none"
	tel.MetricExporter = "prometheus"
	return TagfilterConfig{
		Storage: StorageConfig{
			Dir:            filepath.Join(base, "data"),
			SyncWrites:     true,
			GCInterval:     5 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8089",
			WatchDebounce:  200 * time.Millisecond,
			EventBuffer:    1000,
			ReadTimeout:    30 * time.Second,
			ShutdownGrace:  5 * time.Second,
			ReloadOnImport: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   filepath.Join(base, "logs"),
		},
		Telemetry: tel,
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c *TagfilterConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
