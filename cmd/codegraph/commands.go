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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/codegraph"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/hierarchy"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// Shared flags
	excludeFlags []string
	jsonOutput   bool

	// Tree
	treeFunction   string
	treeFile       string
	treeDepth      int
	treeUnresolved bool

	// Export
	exportFormat string
	exportOutput string
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var buildCmd = &cobra.Command{
	Use:   "build PROJECT_DIR",
	Short: "Build a project's call graph and print its totals",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

var treeCmd = &cobra.Command{
	Use:   "tree PROJECT_DIR",
	Short: "Print a call tree or the project tree",
	Long: `Print the call tree rooted at --function, or the project's directory
tree when --function is empty.

Examples:
  codegraph tree ./myproject
  codegraph tree ./myproject --function main --depth 4
  codegraph tree ./myproject --function run --file cmd/app/main.go --json`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

var skeletonCmd = &cobra.Command{
	Use:   "skeleton PROJECT_DIR FILE...",
	Short: "Print declarations with bodies elided",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSkeleton,
}

var exportCmd = &cobra.Command{
	Use:   "export PROJECT_DIR",
	Short: "Export the call graph as GraphML, GEXF or JSON",
	Long: `Export functions and resolved call edges for visualization tools.

Formats:
  graphml  - yEd, Cytoscape, networkx
  gexf     - Gephi
  json     - the generation snapshot`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	for _, c := range []*cobra.Command{buildCmd, treeCmd, skeletonCmd, exportCmd} {
		c.Flags().StringSliceVar(&excludeFlags, "exclude", nil, "exclude pattern (repeatable)")
	}
	for _, c := range []*cobra.Command{buildCmd, treeCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	}

	treeCmd.Flags().StringVar(&treeFunction, "function", "", "root function name")
	treeCmd.Flags().StringVar(&treeFile, "file", "", "file declaring the root function")
	treeCmd.Flags().IntVar(&treeDepth, "depth", codegraph.DefaultMaxDepth, "maximum depth")
	treeCmd.Flags().BoolVar(&treeUnresolved, "unresolved", false, "include unresolved and ambiguous calls")

	exportCmd.Flags().StringVar(&exportFormat, "format", graph.FormatGraphML, "graphml, gexf or json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

// withService runs fn against a fresh in-process service with the project
// at dir built.
func withService(ctx context.Context, dir string, fn func(*codegraph.Service, *codegraph.BuildResponse) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, runtimeOptions{quiet: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	built, err := rt.service.Build(ctx, codegraph.BuildRequest{
		ProjectDir:      abs,
		ExcludePatterns: excludeFlags,
	})
	if err != nil {
		return err
	}
	return fn(rt.service, built)
}

func runBuild(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), args[0], func(_ *codegraph.Service, resp *codegraph.BuildResponse) error {
		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, resp)
		}
		fmt.Fprintf(out, "Project:    %s (%s)\n", resp.RootDir, resp.ProjectID)
		fmt.Fprintf(out, "Files:      %d\n", resp.TotalFiles)
		fmt.Fprintf(out, "Functions:  %d\n", resp.TotalFunctions)
		fmt.Fprintf(out, "Relations:  %d resolved, %d unresolved\n", resp.TotalRelations, resp.UnresolvedCalls)
		fmt.Fprintf(out, "Build time: %dms\n", resp.BuildTimeMs)
		for _, f := range resp.FailedFiles {
			fmt.Fprintf(out, "  failed: %s: %s\n", f.Path, f.Reason)
		}
		return nil
	})
}

func runTree(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), args[0], func(svc *codegraph.Service, built *codegraph.BuildResponse) error {
		depth := treeDepth
		tree, err := svc.QueryHierarchicalGraph(cmd.Context(), codegraph.HierarchyRequest{
			ProjectID:         built.ProjectID,
			RootFunction:      treeFunction,
			FilePath:          treeFile,
			MaxDepth:          &depth,
			IncludeUnresolved: treeUnresolved,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, tree)
		}
		printNode(out, tree.Root, "")
		return nil
	})
}

// printNode renders a tree with box-drawing indentation.
func printNode(w io.Writer, n *hierarchy.Node, indent string) {
	if n == nil {
		return
	}
	label := n.Name
	switch {
	case n.IsCycle:
		label += " (recursive)"
	case n.Resolution == graph.EdgeUnresolved:
		label += " (unresolved)"
	case n.Resolution == graph.EdgeAmbiguous:
		label += fmt.Sprintf(" (ambiguous: %s)", strings.Join(n.Candidates, ", "))
	}
	if n.Kind == hierarchy.KindFunction && n.FilePath != "" {
		label += fmt.Sprintf("  %s:%d", n.FilePath, n.LineStart)
	}
	fmt.Fprintln(w, label)

	for i, c := range n.Children {
		branch, next := "├── ", "│   "
		if i == len(n.Children)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprint(w, indent+branch)
		printNode(w, c, indent+next)
	}
}

func runSkeleton(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), args[0], func(svc *codegraph.Service, built *codegraph.BuildResponse) error {
		resp, err := svc.QueryCodeSkeleton(cmd.Context(), codegraph.SkeletonRequest{
			ProjectID: built.ProjectID,
			FilePaths: args[1:],
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range resp.Skeletons {
			fmt.Fprintf(out, "// %s\n", s.FilePath)
			if s.Error != nil {
				fmt.Fprintf(out, "// error: %s: %s\n\n", s.Error.Code, s.Error.Message)
				continue
			}
			fmt.Fprintf(out, "%s\n\n", s.SkeletonText)
		}
		return nil
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), args[0], func(svc *codegraph.Service, built *codegraph.BuildResponse) error {
		g, err := svc.Index().Current(built.ProjectID)
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportOutput, err)
			}
			defer f.Close()
			out = f
		}

		if exportFormat == "json" {
			return writeJSON(out, g.Snapshot())
		}
		return g.Export(out, exportFormat)
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
