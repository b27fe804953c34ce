// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hierarchy materializes tree views over a call graph generation.
//
// Two modes are supported:
//
//   - Function-rooted: the call tree below one function, produced by
//     graph.Generation.Expand with its per-path cycle cut.
//   - Project-rooted: the directory/file/function layout of the project,
//     bounded by directory depth.
//
// Both are pure functions of a frozen generation and safe for concurrent use.
package hierarchy

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// ErrNilGeneration is returned when no generation is supplied.
var ErrNilGeneration = errors.New("generation must not be nil")

// NodeKind is the type of a tree node.
type NodeKind string

const (
	KindFunction  NodeKind = "function"
	KindFile      NodeKind = "file"
	KindDirectory NodeKind = "directory"
)

// Node is one node of a hierarchical view.
type Node struct {
	Name       string   `json:"name"`
	Kind       NodeKind `json:"kind"`
	FunctionID string   `json:"function_id,omitempty"`
	Container  string   `json:"container,omitempty"`
	FilePath   string   `json:"file_path,omitempty"`
	LineStart  int      `json:"line_start,omitempty"`
	LineEnd    int      `json:"line_end,omitempty"`
	Depth      int      `json:"depth"`

	IsEntryPoint bool `json:"is_entry_point"`
	IsCycle      bool `json:"is_cycle"`
	Truncated    bool `json:"truncated"`

	// Resolution is set on call tree nodes: resolved, unresolved or ambiguous.
	Resolution graph.EdgeStatus `json:"resolution,omitempty"`
	Candidates []string         `json:"candidates,omitempty"`

	Children []*Node `json:"children"`
}

// Tree is a hierarchical view plus the generation's global totals.
type Tree struct {
	ProjectID      string `json:"project_id"`
	TotalFunctions int    `json:"total_functions"`
	TotalRelations int    `json:"total_relations"`
	MaxDepth       int    `json:"max_depth"`

	RootFunction        string   `json:"root_function,omitempty"`
	AmbiguousCandidates []string `json:"ambiguous_candidates,omitempty"`

	// NodeCount is the number of emitted nodes.
	NodeCount int `json:"node_count"`

	Root *Node `json:"tree_structure"`
}

// Options controls tree materialization.
type Options struct {
	MaxDepth int

	// IncludeFileInfo keeps file_path and line fields on function nodes.
	IncludeFileInfo bool

	// IncludeUnresolved adds unresolved and ambiguous calls as leaves.
	// Function-rooted mode only.
	IncludeUnresolved bool

	// MaxNodes bounds function-rooted trees. Zero uses graph.DefaultMaxNodes.
	MaxNodes int
}

func newTree(g *graph.Generation, maxDepth int) *Tree {
	return &Tree{
		ProjectID:      g.ProjectID(),
		TotalFunctions: g.TotalFunctions(),
		TotalRelations: g.TotalRelations(),
		MaxDepth:       maxDepth,
	}
}

// BuildFunctionTree builds the call tree rooted at a function.
//
// Description:
//
//	rootFunction is resolved by name, restricted to filePath when given.
//	With several matches the lowest path, then lowest line wins and the
//	rest are listed in AmbiguousCandidates. The root node is the entry
//	point; a recursive occurrence is marked IsCycle and not expanded.
//
// Outputs:
//   - *Tree: The call tree.
//   - error: graph.ErrFunctionNotFound, graph.ErrNegativeDepth.
func BuildFunctionTree(g *graph.Generation, rootFunction, filePath string, opts Options) (*Tree, error) {
	if g == nil {
		return nil, ErrNilGeneration
	}
	fn, others, err := g.ResolveFunction(rootFunction, filePath)
	if err != nil {
		return nil, err
	}

	exp, err := g.Expand(fn.ID, opts.MaxDepth,
		graph.WithUnresolved(opts.IncludeUnresolved),
		graph.WithMaxNodes(opts.MaxNodes))
	if err != nil {
		return nil, err
	}

	t := newTree(g, opts.MaxDepth)
	t.RootFunction = fn.Name
	for _, o := range others {
		t.AmbiguousCandidates = append(t.AmbiguousCandidates, o.ID)
	}
	t.Root = convertExpansion(g, exp.Root, opts.IncludeFileInfo)
	t.Root.IsEntryPoint = true
	t.NodeCount = exp.NodeCount
	return t, nil
}

func convertExpansion(g *graph.Generation, e *graph.ExpansionNode, fileInfo bool) *Node {
	n := &Node{
		Kind:       KindFunction,
		Depth:      e.Depth,
		IsCycle:    e.Cut,
		Truncated:  e.Truncated,
		Resolution: e.Status,
		Candidates: e.Candidates,
		Children:   make([]*Node, 0, len(e.Children)),
	}
	if fn, ok := g.Function(e.FunctionID); ok {
		n.Name = fn.Name
		n.FunctionID = fn.ID
		n.Container = fn.Container
		if fileInfo {
			n.FilePath = fn.FilePath
			n.LineStart = fn.LineStart
			n.LineEnd = fn.LineEnd
		}
	} else {
		n.Name = e.CalleeName
	}
	for _, c := range e.Children {
		n.Children = append(n.Children, convertExpansion(g, c, fileInfo))
	}
	return n
}

// dirEntry is an intermediate directory while building a project tree.
type dirEntry struct {
	name  string
	rel   string
	dirs  map[string]*dirEntry
	files []string
}

func newDirEntry(name, rel string) *dirEntry {
	return &dirEntry{name: name, rel: rel, dirs: make(map[string]*dirEntry)}
}

// BuildProjectTree builds the directory/file/function view of a project.
//
// Description:
//
//	Directories and files are ordered by name, directories first. A file
//	whose directory is k levels below the root is included when
//	k <= MaxDepth; a directory one level past the bound is emitted as a
//	truncated leaf. Functions are leaves ordered by line. MaxDepth bounds
//	directory depth only.
func BuildProjectTree(g *graph.Generation, opts Options) (*Tree, error) {
	if g == nil {
		return nil, ErrNilGeneration
	}
	if opts.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: %d", graph.ErrNegativeDepth, opts.MaxDepth)
	}

	top := newDirEntry(path.Base(strings.ReplaceAll(g.RootDir(), "\\", "/")), "")
	for _, f := range g.Files() {
		parts := strings.Split(f.Path, "/")
		dir := top
		for i, part := range parts[:len(parts)-1] {
			next, ok := dir.dirs[part]
			if !ok {
				next = newDirEntry(part, strings.Join(parts[:i+1], "/"))
				dir.dirs[part] = next
			}
			dir = next
		}
		dir.files = append(dir.files, f.Path)
	}

	t := newTree(g, opts.MaxDepth)
	b := &projectBuilder{g: g, opts: opts}
	t.Root = b.directory(top, 0)
	t.NodeCount = b.count
	return t, nil
}

type projectBuilder struct {
	g     *graph.Generation
	opts  Options
	count int
}

func (b *projectBuilder) directory(d *dirEntry, level int) *Node {
	b.count++
	n := &Node{
		Name:     d.name,
		Kind:     KindDirectory,
		FilePath: d.rel,
		Depth:    level,
		Children: []*Node{},
	}
	if level > b.opts.MaxDepth {
		n.Truncated = true
		return n
	}

	names := make([]string, 0, len(d.dirs))
	for name := range d.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n.Children = append(n.Children, b.directory(d.dirs[name], level+1))
	}

	files := append([]string(nil), d.files...)
	sort.Slice(files, func(i, j int) bool { return path.Base(files[i]) < path.Base(files[j]) })
	for _, f := range files {
		n.Children = append(n.Children, b.file(f, level))
	}
	return n
}

func (b *projectBuilder) file(filePath string, level int) *Node {
	b.count++
	n := &Node{
		Name:     path.Base(filePath),
		Kind:     KindFile,
		FilePath: filePath,
		Depth:    level + 1,
		Children: []*Node{},
	}
	fns, err := b.g.FunctionsInFile(filePath)
	if err != nil {
		return n
	}
	for _, fn := range fns {
		b.count++
		child := &Node{
			Name:       fn.Name,
			Kind:       KindFunction,
			FunctionID: fn.ID,
			Container:  fn.Container,
			Depth:      level + 2,
			Children:   []*Node{},
		}
		if b.opts.IncludeFileInfo {
			child.FilePath = fn.FilePath
			child.LineStart = fn.LineStart
			child.LineEnd = fn.LineEnd
		}
		n.Children = append(n.Children, child)
	}
	return n
}
