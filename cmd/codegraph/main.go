// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command codegraph indexes source trees into call graphs and serves
// queries over them.
//
// Usage:
//
//	codegraph serve
//	codegraph serve --config ./codegraph.yaml --port 9090
//	codegraph build /path/to/project
//	codegraph tree /path/to/project --function main --depth 4
//	codegraph skeleton /path/to/project main.py util/helpers.py
//	codegraph export /path/to/project --format graphml -o graph.graphml
//
// Example requests:
//
//	# Build a project
//	curl -X POST http://localhost:8080/v1/codegraph/build \
//	  -H "Content-Type: application/json" \
//	  -d '{"project_dir": "/path/to/project"}'
//
//	# Call tree of main
//	curl -X POST http://localhost:8080/v1/codegraph/hierarchy \
//	  -H "Content-Type: application/json" \
//	  -d '{"root_function": "main", "max_depth": 3}'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/codegraph/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "codegraph",
	Short: "Call graph indexing and query server",
	Long: `codegraph parses Go, Python and JavaScript projects with tree-sitter,
builds a function call graph and answers hierarchy, call graph, snippet and
skeleton queries over HTTP or from the command line.

Configuration is read from the embedded defaults, then --config (or
CODEGRAPH_CONFIG), then CODEGRAPH_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, buildCmd, treeCmd, skeletonCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the layered configuration for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
