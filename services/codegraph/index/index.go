// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index owns the project build and cache lifecycle.
//
// A build discovers source files, extracts them in parallel, resolves call
// sites by name and freezes the result into an immutable graph.Generation.
// Each project has one published generation behind an atomic pointer;
// rebuilding installs a new generation and never mutates the old one, so
// in-flight readers are unaffected.
//
// # Thread Safety
//
// Index is safe for concurrent use. Builds of the same project are mutually
// exclusive (a second concurrent build fails fast with ErrBuildInProgress);
// reads only load the published pointer.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// Default limits.
const (
	DefaultMaxProjectFiles = 50000
	DefaultBuildTimeout    = 5 * time.Minute
)

// Options configures an Index.
type Options struct {
	// Registry selects parsers by extension. Nil uses the default registry.
	Registry *ast.ParserRegistry

	// Workers bounds parallel extraction. Zero uses runtime.NumCPU().
	Workers int

	// MaxProjectFiles fails builds with more qualifying files.
	MaxProjectFiles int

	// MaxFileSize skips larger files during discovery.
	MaxFileSize int64

	// RespectGitignore prunes paths matched by the root .gitignore.
	RespectGitignore bool

	// Store persists published generations. Nil disables persistence.
	Store SnapshotStore

	// Watch starts a rebuild-on-change watcher for every built project.
	Watch        bool
	WatchOptions WatcherOptions

	// RebuildTimeout bounds watcher-triggered rebuilds.
	RebuildTimeout time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns the defaults used by the server.
func DefaultOptions() Options {
	return Options{
		MaxProjectFiles:  DefaultMaxProjectFiles,
		MaxFileSize:      ast.DefaultMaxFileSize,
		RespectGitignore: true,
		WatchOptions:     DefaultWatcherOptions(),
		RebuildTimeout:   DefaultBuildTimeout,
	}
}

// BuildRequest identifies a project and how to obtain its generation.
type BuildRequest struct {
	RootDir         string
	ExcludePatterns []string
	ForceRebuild    bool
}

// BuildResult describes the generation a Build or Load returned.
type BuildResult struct {
	Generation *graph.Generation

	// CacheHit is true when the published generation was reused.
	CacheHit bool

	// LoadedFromCache is true when the generation came from the snapshot store.
	LoadedFromCache bool

	Duration time.Duration
}

type project struct {
	id       string
	root     string
	excludes []string

	buildMu sync.Mutex
	current atomic.Pointer[graph.Generation]

	// watcher is guarded by Index.mu.
	watcher *Watcher
}

// Index builds, caches and publishes generations for any number of projects.
type Index struct {
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	projects map[string]*project
	latest   atomic.Pointer[graph.Generation]

	watchCtx    context.Context
	watchCancel context.CancelFunc
}

// New creates an empty index.
func New(opts Options) *Index {
	if opts.Registry == nil {
		opts.Registry = ast.NewDefaultRegistry(opts.MaxFileSize)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = ast.DefaultMaxFileSize
	}
	if opts.RebuildTimeout <= 0 {
		opts.RebuildTimeout = DefaultBuildTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Index{
		opts:        opts,
		logger:      logger.With(slog.String("component", "index")),
		projects:    make(map[string]*project),
		watchCtx:    ctx,
		watchCancel: cancel,
	}
}

// Registry returns the parser registry used for extraction.
func (x *Index) Registry() *ast.ParserRegistry {
	return x.opts.Registry
}

// Build returns the project's generation, building it when needed.
//
// Description:
//
//	Without ForceRebuild an existing generation for the same root and
//	exclude set is returned as is. Otherwise the project is rediscovered,
//	re-extracted and the new generation is published atomically. A failed
//	build leaves the previous generation in place.
//
// Outputs:
//   - *BuildResult: The published generation and how it was obtained.
//   - error: ErrInvalidRoot, ErrNoSourceFiles, ErrProjectTooLarge,
//     ErrParseFailure, ErrBuildInProgress, or the context error.
func (x *Index) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Index.Build",
		trace.WithAttributes(
			attribute.String("index.root", req.RootDir),
			attribute.Bool("index.force_rebuild", req.ForceRebuild),
		),
	)
	defer span.End()

	result, outcome, err := x.build(ctx, req)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordBuild(ctx, "error", duration, 0, 0)
		return nil, err
	}

	g := result.Generation
	result.Duration = duration
	span.SetAttributes(
		attribute.String("index.project_id", g.ProjectID()),
		attribute.String("index.outcome", outcome),
		attribute.Int("index.functions", g.TotalFunctions()),
		attribute.Int("index.relations", g.TotalRelations()),
	)
	recordBuild(ctx, outcome, duration, g.TotalFunctions(), len(g.Failures()))
	return result, nil
}

func (x *Index) build(ctx context.Context, req BuildRequest) (*BuildResult, string, error) {
	root, err := CanonicalRoot(req.RootDir)
	if err != nil {
		return nil, "", err
	}
	excludes := NormalizeExcludes(req.ExcludePatterns)
	p := x.project(ProjectID(root, excludes), root, excludes)

	if !req.ForceRebuild {
		if g := p.current.Load(); g != nil {
			return &BuildResult{Generation: g, CacheHit: true}, "cache_hit", nil
		}
	}

	if !p.buildMu.TryLock() {
		return nil, "", fmt.Errorf("%w: %s", ErrBuildInProgress, p.id)
	}
	defer p.buildMu.Unlock()

	// A build that finished while we waited for the lock satisfies a
	// non-forced request.
	if !req.ForceRebuild {
		if g := p.current.Load(); g != nil {
			return &BuildResult{Generation: g, CacheHit: true}, "cache_hit", nil
		}
	}

	g, err := x.buildGeneration(ctx, p)
	if err != nil {
		return nil, "", err
	}
	x.publish(p, g)
	x.persist(ctx, g)
	x.ensureWatcher(p)

	x.logger.Info("project built",
		slog.String("project_id", p.id),
		slog.String("root", p.root),
		slog.String("generation_id", g.ID()),
		slog.Int("files", g.TotalFiles()),
		slog.Int("functions", g.TotalFunctions()),
		slog.Int("relations", g.TotalRelations()),
		slog.Int("failed_files", len(g.Failures())))
	return &BuildResult{Generation: g}, "built", nil
}

func (x *Index) buildGeneration(ctx context.Context, p *project) (*graph.Generation, error) {
	disc, err := Discover(p.root, DiscoverOptions{
		Registry:         x.opts.Registry,
		ExcludePatterns:  p.excludes,
		RespectGitignore: x.opts.RespectGitignore,
		MaxFiles:         x.opts.MaxProjectFiles,
		MaxFileSize:      x.opts.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}
	if len(disc.Files) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoSourceFiles, p.root)
	}

	outcomes, err := extractAll(ctx, x.opts.Registry, disc.Files, x.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", p.root, err)
	}

	meta := graph.Metadata{
		ProjectID:       p.id,
		RootDir:         p.root,
		ExcludePatterns: p.excludes,
		ModulePath:      detectModulePath(p.root, x.logger),
	}
	g, succeeded, err := assemble(meta, outcomes, disc.Skipped, x.logger)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", p.root, err)
	}
	if succeeded == 0 {
		reason := ""
		if failures := g.Failures(); len(failures) > 0 {
			reason = ": " + failures[0].Path + ": " + failures[0].Reason
		}
		return nil, fmt.Errorf("%w (%d files)%s", ErrParseFailure, len(disc.Files), reason)
	}
	return g, nil
}

// Load returns the in-memory generation, else restores the stored snapshot,
// else builds.
func (x *Index) Load(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := time.Now()
	root, err := CanonicalRoot(req.RootDir)
	if err != nil {
		return nil, err
	}
	excludes := NormalizeExcludes(req.ExcludePatterns)
	id := ProjectID(root, excludes)
	p := x.project(id, root, excludes)

	if g := p.current.Load(); g != nil {
		return &BuildResult{Generation: g, CacheHit: true, Duration: time.Since(start)}, nil
	}

	if x.opts.Store != nil {
		g, err := x.restore(ctx, p)
		switch {
		case err == nil:
			recordBuild(ctx, "restored", time.Since(start), g.TotalFunctions(), 0)
			return &BuildResult{Generation: g, LoadedFromCache: true, Duration: time.Since(start)}, nil
		case errors.Is(err, ErrBuildInProgress):
			return nil, err
		case !errors.Is(err, ErrSnapshotNotFound):
			x.logger.Warn("snapshot restore failed, rebuilding",
				slog.String("project_id", id),
				slog.String("error", err.Error()))
		}
	}

	return x.Build(ctx, BuildRequest{RootDir: root, ExcludePatterns: excludes})
}

func (x *Index) restore(ctx context.Context, p *project) (*graph.Generation, error) {
	snap, err := x.opts.Store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	g, err := graph.FromSnapshot(snap)
	if err != nil {
		return nil, err
	}

	if !p.buildMu.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrBuildInProgress, p.id)
	}
	defer p.buildMu.Unlock()
	if cur := p.current.Load(); cur != nil {
		return cur, nil
	}
	x.publish(p, g)
	x.ensureWatcher(p)
	x.logger.Info("project restored from snapshot",
		slog.String("project_id", p.id),
		slog.String("generation_id", g.ID()),
		slog.Int("functions", g.TotalFunctions()))
	return g, nil
}

// Restore publishes every stored snapshot whose project is not yet loaded.
// Snapshots whose root directory no longer exists are deleted from the
// store. It returns the number of restored projects.
func (x *Index) Restore(ctx context.Context) (int, error) {
	if x.opts.Store == nil {
		return 0, nil
	}
	ids, err := x.opts.Store.ProjectIDs(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, id := range ids {
		snap, err := x.opts.Store.Load(ctx, id)
		if err != nil {
			x.logger.Warn("skipping unreadable snapshot", slog.String("project_id", id), slog.String("error", err.Error()))
			continue
		}
		meta := snap.Metadata
		if _, err := os.Stat(meta.RootDir); errors.Is(err, fs.ErrNotExist) {
			if err := x.opts.Store.Delete(ctx, id); err != nil {
				x.logger.Warn("stale snapshot delete failed", slog.String("project_id", id), slog.String("error", err.Error()))
			} else {
				x.logger.Info("deleted snapshot of removed project", slog.String("project_id", id), slog.String("root", meta.RootDir))
			}
			continue
		}
		p := x.project(meta.ProjectID, meta.RootDir, meta.ExcludePatterns)
		if p.current.Load() != nil {
			continue
		}
		if _, err := x.restore(ctx, p); err != nil {
			x.logger.Warn("snapshot restore failed", slog.String("project_id", id), slog.String("error", err.Error()))
			continue
		}
		restored++
	}
	return restored, nil
}

// Current returns the published generation of a project.
func (x *Index) Current(projectID string) (*graph.Generation, error) {
	x.mu.RLock()
	p, ok := x.projects[projectID]
	x.mu.RUnlock()
	if ok {
		if g := p.current.Load(); g != nil {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
}

// Latest returns the most recently published generation of any project.
func (x *Index) Latest() (*graph.Generation, error) {
	if g := x.latest.Load(); g != nil {
		return g, nil
	}
	return nil, ErrProjectNotFound
}

// Projects returns every published generation, newest first.
func (x *Index) Projects() []*graph.Generation {
	x.mu.RLock()
	out := make([]*graph.Generation, 0, len(x.projects))
	for _, p := range x.projects {
		if g := p.current.Load(); g != nil {
			out = append(out, g)
		}
	}
	x.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].BuiltAt().Equal(out[j].BuiltAt()) {
			return out[i].BuiltAt().After(out[j].BuiltAt())
		}
		return out[i].ProjectID() < out[j].ProjectID()
	})
	return out
}

// FindByFile returns the newest generation containing filePath.
//
// An absolute path is made relative to each project root; a relative path
// is matched as is. The second result is the root-relative, slash-separated
// path.
func (x *Index) FindByFile(filePath string) (*graph.Generation, string, bool) {
	gens := x.Projects()
	if !filepath.IsAbs(filePath) {
		rel := path.Clean(filepath.ToSlash(filePath))
		for _, g := range gens {
			if g.HasFile(rel) {
				return g, rel, true
			}
		}
		return nil, "", false
	}

	candidates := []string{filepath.Clean(filePath)}
	if resolved, err := filepath.EvalSymlinks(filePath); err == nil && resolved != candidates[0] {
		candidates = append(candidates, resolved)
	}
	for _, g := range gens {
		for _, abs := range candidates {
			if rel, ok := RelativeTo(g.RootDir(), abs); ok && g.HasFile(rel) {
				return g, rel, true
			}
		}
	}
	return nil, "", false
}

// RelativeTo returns abs relative to root in slash form, or false when abs
// is outside root.
func RelativeTo(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// Close stops every watcher. Published generations stay readable.
func (x *Index) Close() {
	x.watchCancel()
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, p := range x.projects {
		if p.watcher != nil {
			p.watcher.Stop()
			p.watcher = nil
		}
	}
}

// project returns the registered project for id, creating it on first use.
func (x *Index) project(id, root string, excludes []string) *project {
	x.mu.RLock()
	p, ok := x.projects[id]
	x.mu.RUnlock()
	if ok {
		return p
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if p, ok := x.projects[id]; ok {
		return p
	}
	p = &project{id: id, root: root, excludes: append([]string(nil), excludes...)}
	x.projects[id] = p
	return p
}

func (x *Index) publish(p *project, g *graph.Generation) {
	p.current.Store(g)

	x.mu.Lock()
	defer x.mu.Unlock()
	if cur := x.latest.Load(); cur == nil || !g.BuiltAt().Before(cur.BuiltAt()) {
		x.latest.Store(g)
	}
}

func (x *Index) persist(ctx context.Context, g *graph.Generation) {
	if x.opts.Store == nil {
		return
	}
	if err := x.opts.Store.Save(context.WithoutCancel(ctx), g.Snapshot()); err != nil {
		x.logger.Warn("snapshot save failed",
			slog.String("project_id", g.ProjectID()),
			slog.String("error", err.Error()))
	}
}

func (x *Index) ensureWatcher(p *project) {
	if !x.opts.Watch {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if p.watcher != nil || x.watchCtx.Err() != nil {
		return
	}

	ex := newExcluder(p.root, p.excludes, x.opts.RespectGitignore)
	w, err := newWatcher(p.root, ex, x.opts.Registry, func(changes []Change) {
		x.rebuildOnChange(p, changes)
	}, x.opts.WatchOptions, x.logger)
	if err != nil {
		x.logger.Warn("file watcher unavailable", slog.String("root", p.root), slog.String("error", err.Error()))
		return
	}
	if err := w.Start(x.watchCtx); err != nil {
		w.Stop()
		x.logger.Warn("file watcher failed to start", slog.String("root", p.root), slog.String("error", err.Error()))
		return
	}
	p.watcher = w
}

func (x *Index) rebuildOnChange(p *project, changes []Change) {
	ctx, cancel := context.WithTimeout(x.watchCtx, x.opts.RebuildTimeout)
	defer cancel()

	x.logger.Info("source changes detected, rebuilding",
		slog.String("project_id", p.id),
		slog.Int("changes", len(changes)))

	_, err := x.Build(ctx, BuildRequest{RootDir: p.root, ExcludePatterns: p.excludes, ForceRebuild: true})
	switch {
	case err == nil:
	case errors.Is(err, ErrBuildInProgress):
		x.logger.Info("rebuild skipped, build already running", slog.String("project_id", p.id))
	default:
		x.logger.Warn("rebuild after change failed",
			slog.String("project_id", p.id),
			slog.String("error", err.Error()))
	}
}
