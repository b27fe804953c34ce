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
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/codegraph/services/codegraph/config"
	"github.com/AleutianAI/codegraph/services/codegraph/hierarchy"
	"github.com/AleutianAI/codegraph/services/codegraph/telemetry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Logging.Level = "error"
	cfg.Store.Enabled = false
	return cfg
}

func TestNewRouter_Routes(t *testing.T) {
	cfg := testConfig(t)
	rt, err := newRuntime(cfg, runtimeOptions{})
	require.NoError(t, err)
	defer rt.Close()

	metrics, err := telemetry.NewMetrics(otel.Meter("codegraph-test"))
	require.NoError(t, err)
	router := newRouter(cfg, rt.service, metrics)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/codegraph/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/codegraph/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBuildAndExportCommands(t *testing.T) {
	dir := t.TempDir()
	src := "def main():\n    helper()\n\n\ndef helper():\n    pass\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(src), 0o644))

	t.Setenv("CODEGRAPH_STORE_ENABLED", "false")
	t.Setenv("CODEGRAPH_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"build", dir})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Functions:  2")

	out.Reset()
	target := filepath.Join(t.TempDir(), "graph.graphml")
	rootCmd.SetArgs([]string{"export", dir, "--format", "graphml", "-o", target})
	require.NoError(t, rootCmd.Execute())
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<graphml")
	assert.Contains(t, string(data), `source="main.py:1:main"`)
}

func TestPrintNode(t *testing.T) {
	root := &hierarchy.Node{
		Name: "main",
		Kind: hierarchy.KindFunction,
		Children: []*hierarchy.Node{
			{Name: "a", Kind: hierarchy.KindFunction, Children: []*hierarchy.Node{
				{Name: "main", Kind: hierarchy.KindFunction, IsCycle: true},
			}},
			{Name: "b", Kind: hierarchy.KindFunction},
		},
	}

	var buf bytes.Buffer
	printNode(&buf, root, "")
	want := strings.Join([]string{
		"main",
		"├── a",
		"│   └── main (recursive)",
		"└── b",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}
