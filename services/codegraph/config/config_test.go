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
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load consults for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "CODEGRAPH_") || strings.HasPrefix(key, "OTEL_") {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "codegraph.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, 5*time.Minute, cfg.Index.BuildTimeout)
	assert.Equal(t, 50000, cfg.Index.MaxProjectFiles)
	assert.Equal(t, int64(10*1024*1024), cfg.Index.MaxFileSize)
	assert.True(t, cfg.Index.RespectGitignore)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "prometheus", cfg.Telemetry.MetricExporter)
	assert.Equal(t, "auto", cfg.Logging.Format)
	assert.Empty(t, cfg.Security.AllowedRoots)
}

func TestLoad_FileOverlay(t *testing.T) {
	clearEnv(t)
	p := writeConfig(t, `
server:
  port: 9191
security:
  allowed_roots: [/srv/code]
index:
  build_timeout: 90s
`)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset keys keep defaults")
	assert.Equal(t, []string{"/srv/code"}, cfg.Security.AllowedRoots)
	assert.Equal(t, 90*time.Second, cfg.Index.BuildTimeout)
	assert.Equal(t, 50000, cfg.Index.MaxProjectFiles)
}

func TestLoad_EnvPath(t *testing.T) {
	clearEnv(t)
	p := writeConfig(t, "server:\n  debug: true\n")
	t.Setenv(EnvConfigPath, p)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Server.Debug)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	p := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("CODEGRAPH_PORT", "9100")
	t.Setenv("CODEGRAPH_ALLOWED_ROOTS", "/a, /b")
	t.Setenv("CODEGRAPH_BUILD_TIMEOUT", "2m")
	t.Setenv("CODEGRAPH_WATCH", "true")
	t.Setenv("CODEGRAPH_LOG_LEVEL", "debug")
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Security.AllowedRoots)
	assert.Equal(t, 2*time.Minute, cfg.Index.BuildTimeout)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "unknown key", body: "server:\n  prot: 1\n"},
		{name: "bad yaml", body: "server: [\n"},
		{name: "port range", body: "server:\n  port: 70000\n"},
		{name: "relative root", body: "security:\n  allowed_roots: [code]\n"},
		{name: "zero burst", body: "rate_limit:\n  build_burst: 0\n"},
		{name: "log level", body: "logging:\n  level: loud\n"},
		{name: "bad env int", env: map[string]string{"CODEGRAPH_PORT": "eighty"}},
		{name: "bad env duration", env: map[string]string{"CODEGRAPH_BUILD_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	t.Run("validation sentinel", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(writeConfig(t, "server:\n  port: 0\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(writeConfig(t, "# "+strings.Repeat("x", MaxFileSize)+"\n"))
		assert.ErrorIs(t, err, ErrConfigTooLarge)
	})
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_CountsLoads(t *testing.T) {
	clearEnv(t)
	before := testutil.ToFloat64(configLoads.WithLabelValues("file", "success"))
	_, err := Load(writeConfig(t, "server:\n  port: 8181\n"))
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(configLoads.WithLabelValues("file", "success")))
}

func TestStorePath(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Path: "/var/lib/codegraph"}}
	p, err := cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/codegraph", p)

	t.Setenv("HOME", "/home/dev")
	cfg.Store.Path = ""
	p, err = cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/dev", ".codegraph", "store"), p)
}
