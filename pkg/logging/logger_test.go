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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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
		{" error ", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "level(9)", Level(9).String())
}

func TestNew_FormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Format: FormatAuto, Service: "svc", Output: &buf})

	l.Slog().Info("hidden")
	l.Slog().Warn("shown", "k", 1)

	// A non-file writer is not a terminal, so auto selects JSON.
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "svc", rec["service"])
	assert.Equal(t, float64(1), rec["k"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: FormatText, Output: &buf})
	l.With("request_id", "r1").Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "request_id=r1")
}

func TestNew_FileLogging(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	l := New(Config{Format: FormatText, LogDir: dir, Service: "codegraph", Output: &buf})
	l.Slog().Info("to both", "n", 2)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "second close is a no-op")

	name := "codegraph_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to both"`)
	assert.Contains(t, buf.String(), "to both")
}

func TestNew_QuietWithoutFile(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Quiet: true, Output: &buf})
	l.Slog().Error("dropped")
	assert.Empty(t, buf.String())
}

func TestNew_UnwritableLogDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	var buf bytes.Buffer
	l := New(Config{Format: FormatText, LogDir: filepath.Join(blocker, "logs"), Output: &buf})
	assert.Contains(t, buf.String(), "file logging disabled")
	assert.NoError(t, l.Close())
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/dev")
	assert.Equal(t, "/home/dev/.codegraph/logs", expandPath("~/.codegraph/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}
