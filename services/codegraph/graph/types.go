// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the call graph data model and traversal engine.
//
// # Lifecycle
//
// A generation is built once and never mutated:
//  1. Create a Builder with NewBuilder(meta)
//  2. Add files, functions and call edges
//  3. Call Freeze() to obtain an immutable *Generation
//  4. Query with CalleesOf, FunctionsInFile, Expand, etc.
//
// # Thread Safety
//
// Builder is NOT safe for concurrent use. A frozen Generation is safe for
// concurrent reads from any number of goroutines; it has no mutable state.
package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Function is one function or method definition.
type Function struct {
	// ID is unique within a generation: "file_path:line_start:name".
	ID string `json:"id"`

	// Name is the bare function name.
	Name string `json:"name"`

	// FilePath is slash-separated and relative to the project root.
	FilePath string `json:"file_path"`

	// LineStart is the 1-based first line.
	LineStart int `json:"line_start"`

	// LineEnd is the 1-based last line, inclusive.
	LineEnd int `json:"line_end"`

	// Signature is the declaration header.
	Signature string `json:"signature,omitempty"`

	// Language is the source language tag.
	Language string `json:"language,omitempty"`

	// Container is the receiver type, enclosing class or enclosing function.
	Container string `json:"container,omitempty"`
}

// Validate checks that the function has an id, a name, a file and a sane line range.
func (f *Function) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil function", ErrInvalidFunction)
	}
	if f.ID == "" || f.Name == "" || f.FilePath == "" {
		return fmt.Errorf("%w: id, name and file_path are required", ErrInvalidFunction)
	}
	if f.LineStart < 1 || f.LineEnd < f.LineStart {
		return fmt.Errorf("%w: bad line range %d-%d for %s", ErrInvalidFunction, f.LineStart, f.LineEnd, f.ID)
	}
	return nil
}

// EdgeStatus tells whether a call site was bound to a function.
type EdgeStatus string

const (
	// EdgeResolved means exactly one target was selected.
	EdgeResolved EdgeStatus = "resolved"

	// EdgeUnresolved means no function of the called name exists.
	EdgeUnresolved EdgeStatus = "unresolved"

	// EdgeAmbiguous means several functions share the called name and
	// none was preferred.
	EdgeAmbiguous EdgeStatus = "ambiguous"
)

// CallEdge is one call site inside a caller.
//
// Resolved edges carry CalleeID. Unresolved and ambiguous edges keep an
// empty CalleeID; ambiguous edges list their Candidates.
type CallEdge struct {
	CallerID   string     `json:"caller_id"`
	CalleeID   string     `json:"callee_id,omitempty"`
	CalleeName string     `json:"callee_name"`
	Receiver   string     `json:"receiver,omitempty"`
	Line       int        `json:"line"`
	Order      int        `json:"order"`
	Status     EdgeStatus `json:"status"`
	Candidates []string   `json:"candidates,omitempty"`
}

// File is one successfully extracted source file.
type File struct {
	Path     string `json:"path"`
	Language string `json:"language"`
}

// FileFailure records a file that could not be extracted.
type FileFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Metadata identifies the project a generation belongs to.
type Metadata struct {
	ProjectID       string   `json:"project_id"`
	RootDir         string   `json:"root_dir"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
	ModulePath      string   `json:"module_path,omitempty"`
}

// Generation is one immutable, fully built snapshot of a project's
// functions and call edges.
//
// Thread Safety: Safe for concurrent use. No method mutates it.
type Generation struct {
	id      string
	meta    Metadata
	builtAt time.Time

	files     map[string]*File
	filePaths []string

	functions   map[string]*Function
	functionIDs []string
	byName      map[string][]*Function
	byFile      map[string][]*Function

	calls   map[string][]CallEdge
	callers map[string][]string

	failures        []FileFailure
	resolvedEdges   int
	unresolvedEdges int
}

// ID returns the generation id (a UUID, unique per build).
func (g *Generation) ID() string { return g.id }

// ProjectID returns the owning project's id.
func (g *Generation) ProjectID() string { return g.meta.ProjectID }

// RootDir returns the canonical project root.
func (g *Generation) RootDir() string { return g.meta.RootDir }

// Metadata returns a copy of the project metadata.
func (g *Generation) Metadata() Metadata {
	meta := g.meta
	meta.ExcludePatterns = append([]string(nil), g.meta.ExcludePatterns...)
	return meta
}

// BuiltAt returns when the generation was frozen.
func (g *Generation) BuiltAt() time.Time { return g.builtAt }

// TotalFunctions returns the number of functions.
func (g *Generation) TotalFunctions() int { return len(g.functions) }

// TotalRelations returns the number of resolved call edges.
func (g *Generation) TotalRelations() int { return g.resolvedEdges }

// UnresolvedCalls returns the number of unresolved and ambiguous call edges.
func (g *Generation) UnresolvedCalls() int { return g.unresolvedEdges }

// TotalFiles returns the number of extracted files.
func (g *Generation) TotalFiles() int { return len(g.files) }

// Failures returns the files that failed extraction during the build.
func (g *Generation) Failures() []FileFailure {
	return append([]FileFailure(nil), g.failures...)
}

// Files returns all files ordered by path.
func (g *Generation) Files() []File {
	out := make([]File, 0, len(g.filePaths))
	for _, p := range g.filePaths {
		out = append(out, *g.files[p])
	}
	return out
}

// HasFile reports whether path (root-relative, slash-separated) was extracted.
func (g *Generation) HasFile(path string) bool {
	_, ok := g.files[path]
	return ok
}

// File returns the file record for path.
func (g *Generation) File(path string) (File, bool) {
	f, ok := g.files[path]
	if !ok {
		return File{}, false
	}
	return *f, true
}

// Function returns the function with the given id.
func (g *Generation) Function(id string) (*Function, bool) {
	fn, ok := g.functions[id]
	return fn, ok
}

// Functions returns all functions ordered by id.
func (g *Generation) Functions() []*Function {
	out := make([]*Function, 0, len(g.functionIDs))
	for _, id := range g.functionIDs {
		out = append(out, g.functions[id])
	}
	return out
}

// BuilderOption configures a Builder.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	maxFunctions int
	maxEdges     int
	generationID string
	builtAt      time.Time
}

// WithMaxFunctions caps the number of functions. Zero means unlimited.
func WithMaxFunctions(n int) BuilderOption {
	return func(o *builderOptions) { o.maxFunctions = n }
}

// WithMaxEdges caps the number of call edges. Zero means unlimited.
func WithMaxEdges(n int) BuilderOption {
	return func(o *builderOptions) { o.maxEdges = n }
}

// withIdentity restores a persisted generation id and build time.
func withIdentity(id string, builtAt time.Time) BuilderOption {
	return func(o *builderOptions) {
		o.generationID = id
		o.builtAt = builtAt
	}
}

// Builder accumulates a generation. Not safe for concurrent use.
type Builder struct {
	meta      Metadata
	opts      builderOptions
	files     map[string]*File
	functions map[string]*Function
	calls     map[string][]CallEdge
	failures  []FileFailure
	edgeCount int
	frozen    bool
}

// NewBuilder creates a builder for the given project.
//
// Example:
//
//	b := graph.NewBuilder(graph.Metadata{ProjectID: id, RootDir: root})
//	_ = b.AddFile(graph.File{Path: "main.go", Language: "go"})
//	_ = b.AddFunction(&graph.Function{...})
//	gen, err := b.Freeze()
func NewBuilder(meta Metadata, opts ...BuilderOption) *Builder {
	var o builderOptions
	for _, opt := range opts {
		opt(&o)
	}
	meta.ExcludePatterns = append([]string(nil), meta.ExcludePatterns...)
	return &Builder{
		meta:      meta,
		opts:      o,
		files:     make(map[string]*File),
		functions: make(map[string]*Function),
		calls:     make(map[string][]CallEdge),
	}
}

// AddFile registers an extracted file.
func (b *Builder) AddFile(f File) error {
	if b.frozen {
		return ErrGenerationFrozen
	}
	if f.Path == "" {
		return fmt.Errorf("%w: empty path", ErrFileNotFound)
	}
	if _, exists := b.files[f.Path]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFile, f.Path)
	}
	b.files[f.Path] = &f
	return nil
}

// AddFunction adds a function. Its file must already be registered.
// The builder takes ownership; fn must not be mutated afterwards.
func (b *Builder) AddFunction(fn *Function) error {
	if b.frozen {
		return ErrGenerationFrozen
	}
	if err := fn.Validate(); err != nil {
		return err
	}
	if _, ok := b.files[fn.FilePath]; !ok {
		return fmt.Errorf("%w: %s (for %s)", ErrFileNotFound, fn.FilePath, fn.ID)
	}
	if _, exists := b.functions[fn.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, fn.ID)
	}
	if b.opts.maxFunctions > 0 && len(b.functions) >= b.opts.maxFunctions {
		return ErrMaxFunctionsExceeded
	}
	b.functions[fn.ID] = fn
	return nil
}

// HasFunction reports whether id has been added.
func (b *Builder) HasFunction(id string) bool {
	_, ok := b.functions[id]
	return ok
}

// AddCall adds a call edge.
//
// The caller must exist. A resolved edge's callee must exist; unresolved
// and ambiguous edges must not name a callee id.
func (b *Builder) AddCall(edge CallEdge) error {
	if b.frozen {
		return ErrGenerationFrozen
	}
	if _, ok := b.functions[edge.CallerID]; !ok {
		return fmt.Errorf("%w: caller %s: %w", ErrInvalidEdge, edge.CallerID, ErrFunctionNotFound)
	}
	switch edge.Status {
	case EdgeResolved:
		if _, ok := b.functions[edge.CalleeID]; !ok {
			return fmt.Errorf("%w: callee %s: %w", ErrInvalidEdge, edge.CalleeID, ErrFunctionNotFound)
		}
	case EdgeUnresolved, EdgeAmbiguous:
		if edge.CalleeID != "" {
			return fmt.Errorf("%w: %s edge must not name a callee", ErrInvalidEdge, edge.Status)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEdge, edge.Status)
	}
	if b.opts.maxEdges > 0 && b.edgeCount >= b.opts.maxEdges {
		return ErrMaxEdgesExceeded
	}
	edge.Candidates = append([]string(nil), edge.Candidates...)
	b.calls[edge.CallerID] = append(b.calls[edge.CallerID], edge)
	b.edgeCount++
	return nil
}

// AddFailure records a file that could not be extracted.
func (b *Builder) AddFailure(f FileFailure) {
	if !b.frozen {
		b.failures = append(b.failures, f)
	}
}

// Freeze finalizes the builder into an immutable Generation.
//
// Description:
//
//	Builds the secondary indexes (by name, by file, callers) and orders
//	every list deterministically. The builder cannot be used afterwards.
//
// Outputs:
//   - *Generation: Safe for concurrent reads.
//   - error: ErrGenerationFrozen if called twice.
func (b *Builder) Freeze() (*Generation, error) {
	if b.frozen {
		return nil, ErrGenerationFrozen
	}
	b.frozen = true

	g := &Generation{
		id:        b.opts.generationID,
		meta:      b.meta,
		builtAt:   b.opts.builtAt,
		files:     b.files,
		functions: b.functions,
		byName:    make(map[string][]*Function),
		byFile:    make(map[string][]*Function),
		calls:     b.calls,
		callers:   make(map[string][]string),
		failures:  b.failures,
	}
	if g.id == "" {
		g.id = uuid.NewString()
	}
	if g.builtAt.IsZero() {
		g.builtAt = time.Now().UTC()
	}

	g.filePaths = make([]string, 0, len(g.files))
	for p := range g.files {
		g.filePaths = append(g.filePaths, p)
	}
	sort.Strings(g.filePaths)

	g.functionIDs = make([]string, 0, len(g.functions))
	for id, fn := range g.functions {
		g.functionIDs = append(g.functionIDs, id)
		g.byName[fn.Name] = append(g.byName[fn.Name], fn)
		g.byFile[fn.FilePath] = append(g.byFile[fn.FilePath], fn)
	}
	sort.Strings(g.functionIDs)
	for _, fns := range g.byName {
		sortByLocation(fns)
	}
	for _, fns := range g.byFile {
		sortByLocation(fns)
	}

	callerSets := make(map[string]map[string]bool)
	for callerID, edges := range g.calls {
		sort.SliceStable(edges, func(i, j int) bool {
			if edges[i].Order != edges[j].Order {
				return edges[i].Order < edges[j].Order
			}
			return edges[i].Line < edges[j].Line
		})
		for _, e := range edges {
			if e.Status != EdgeResolved {
				g.unresolvedEdges++
				continue
			}
			g.resolvedEdges++
			if callerSets[e.CalleeID] == nil {
				callerSets[e.CalleeID] = make(map[string]bool)
			}
			callerSets[e.CalleeID][callerID] = true
		}
	}
	for calleeID, set := range callerSets {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		g.callers[calleeID] = ids
	}

	sort.Slice(g.failures, func(i, j int) bool { return g.failures[i].Path < g.failures[j].Path })

	return g, nil
}

// sortByLocation orders functions by file path, then start line, then id.
func sortByLocation(fns []*Function) {
	sort.SliceStable(fns, func(i, j int) bool {
		if fns[i].FilePath != fns[j].FilePath {
			return fns[i].FilePath < fns[j].FilePath
		}
		if fns[i].LineStart != fns[j].LineStart {
			return fns[i].LineStart < fns[j].LineStart
		}
		return fns[i].ID < fns[j].ID
	})
}
