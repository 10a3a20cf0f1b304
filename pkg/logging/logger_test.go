// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" Error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_ConsoleLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})
	defer logger.Close()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestLogger_JSONConsoleCarriesService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, JSON: true, Service: "tagfilter", Output: &buf})
	defer logger.Close()

	logger.Info("filter saved", "name", "inbox")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "filter saved", rec["msg"])
	assert.Equal(t, "tagfilter", rec["service"])
	assert.Equal(t, "inbox", rec["name"])
}

func TestLogger_Quiet(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Quiet: true, Output: &buf})
	defer logger.Close()

	logger.Error("nobody hears this")
	assert.Empty(t, buf.String())
}

func TestLogger_FileOutput(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelInfo, Quiet: true, LogDir: dir, Service: "tagfilter"})
	logger.Info("written to file", "op", "merge")
	require.NoError(t, logger.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "tagfilter_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written to file"`)
	assert.Contains(t, string(data), `"op":"merge"`)
}

func TestLogger_UnwritableLogDirFallsBack(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &buf})
	defer logger.Close()

	logger.Info("still logging")
	assert.Contains(t, buf.String(), "still logging")
}

func TestLogger_Exporter(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{Level: LevelInfo, Quiet: true, Service: "tagfilter", Exporter: exp})

	logger.Debug("dropped")
	logger.With("filter", "inbox").Warn("rejected", "reason", "duplicate_tag")
	logger.Slog().WithGroup("tree").Info("moved", "count", 2)
	require.NoError(t, logger.Close())

	entries := exp.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, "rejected", entries[0].Message)
	assert.Equal(t, LevelWarn, entries[0].Level)
	assert.Equal(t, "tagfilter", entries[0].Service)
	assert.Equal(t, "inbox", entries[0].Attrs["filter"])
	assert.Equal(t, "duplicate_tag", entries[0].Attrs["reason"])
	assert.NotContains(t, entries[0].Attrs, "service")

	assert.Equal(t, "moved", entries[1].Message)
	assert.Equal(t, int64(2), entries[1].Attrs["tree.count"])
}

type failingExporter struct {
	BufferedExporter
}

func (f *failingExporter) Export(context.Context, LogEntry) error { return errors.New("export down") }
func (f *failingExporter) Flush(context.Context) error            { return errors.New("flush down") }

func TestLogger_ExporterErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Exporter: &failingExporter{}})

	logger.Info("console still works")
	assert.Contains(t, buf.String(), "console still works")

	err := logger.Close()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "flush exporter"))

	// Second close is a no-op.
	assert.NoError(t, logger.Close())
}

func TestDefault(t *testing.T) {
	logger := Default()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Slog())
	assert.NoError(t, logger.Close())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".tagfilter/logs"), expandPath("~/.tagfilter/logs"))
	assert.Equal(t, "/var/log/tagfilter", expandPath("/var/log/tagfilter"))
}
