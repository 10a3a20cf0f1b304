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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCreateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "tagfilter.yaml")

	require.NoError(t, createDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg TagfilterConfig
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "127.0.0.1:8089", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Storage.GCInterval)
	assert.Equal(t, "prometheus", cfg.Telemetry.MetricExporter)
}

func TestLoadFile_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagfilter.yaml")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagfilter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: 0.0.0.0:9000\n  watch_dir: /srv/filters\nlogging:\n  level: debug\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/srv/filters", cfg.Server.WatchDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, DefaultConfig().Storage.Dir, cfg.Storage.Dir)
	assert.Equal(t, 1000, cfg.Server.EventBuffer)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad level", "logging:\n  level: chatty\n"},
		{"bad addr", "server:\n  addr: nowhere\n"},
		{"bad ratio", "storage:\n  gc_discard_ratio: 1.5\n"},
		{"bad exporter", "telemetry:\n  trace_exporter: zipkin\n"},
		{"empty dir", "storage:\n  dir: \"\"\n"},
		{"not yaml", "server: [\n"},
		{"short token", "server:\n  auth:\n    tokens:\n      - {token: abc, user: ana, roles: [admin]}\n"},
		{"unknown role", "server:\n  auth:\n    tokens:\n      - {token: 0123456789abcdef, user: ana, roles: [root]}\n"},
		{"no roles", "server:\n  auth:\n    tokens:\n      - {token: 0123456789abcdef, user: ana}\n"},
		{"duration without unit", "storage:\n  gc_interval: 300\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tagfilter.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_ZeroDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagfilter.yaml")
	body := "storage:\n  gc_interval: 0s\nserver:\n  watch_debounce: 0s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Storage.GCInterval)
	assert.Zero(t, cfg.Server.WatchDebounce)
	assert.Equal(t, DefaultConfig().Server.ShutdownGrace, cfg.Server.ShutdownGrace)
}

func TestDefaultPath_Env(t *testing.T) {
	t.Setenv("TAGFILTER_CONFIG", "/etc/tagfilter.yaml")
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/tagfilter.yaml", p)
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_AuthTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagfilter.yaml")
	body := "server:\n  auth:\n    audit: true\n    tokens:\n      - token: 0123456789abcdef\n        user: ana\n        roles: [editor, viewer]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Server.Auth.Audit)
	require.Len(t, cfg.Server.Auth.Tokens, 1)
	assert.Equal(t, AuthToken{Token: "0123456789abcdef", User: "ana", Roles: []string{"editor", "viewer"}}, cfg.Server.Auth.Tokens[0])
}
