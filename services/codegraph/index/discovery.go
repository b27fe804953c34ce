// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

// DefaultExcludes are names skipped in every project, at any depth.
var DefaultExcludes = []string{
	"node_modules",
	".venv",
	"__pycache__",
	"target",
	".git",
	".svn",
	".hg",
	".DS_Store",
	"Thumbs.db",
}

// SourceFile is one file selected for extraction.
type SourceFile struct {
	// Path is slash-separated and relative to the project root.
	Path string

	// AbsPath is the absolute path on disk.
	AbsPath string

	Language string
	Size     int64
}

// SkippedFile is a file discovery passed over, with the reason.
type SkippedFile struct {
	Path   string
	Reason string
}

// Discovery is the result of walking a project.
type Discovery struct {
	Files   []SourceFile
	Skipped []SkippedFile
}

// excluder decides whether a root-relative path is excluded.
type excluder struct {
	names     map[string]bool
	globs     []string
	substrs   []string
	gitignore *ignore.GitIgnore
}

// newExcluder compiles default names, user patterns and, optionally, the
// root's .gitignore.
func newExcluder(root string, patterns []string, respectGitignore bool) *excluder {
	e := &excluder{names: make(map[string]bool, len(DefaultExcludes))}
	for _, n := range DefaultExcludes {
		e.names[n] = true
	}
	for _, p := range NormalizeExcludes(patterns) {
		p = strings.Trim(filepath.ToSlash(p), "/")
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, "*?[") {
			e.globs = append(e.globs, p)
		} else {
			e.substrs = append(e.substrs, p)
		}
	}
	if respectGitignore {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			e.gitignore = gi
		}
	}
	return e
}

// match reports whether rel (slash-separated, root-relative) is excluded.
func (e *excluder) match(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	parts := strings.Split(rel, "/")
	for _, part := range parts {
		if e.names[part] {
			return true
		}
	}
	for _, g := range e.globs {
		if ok, _ := path.Match(g, rel); ok {
			return true
		}
		for _, part := range parts {
			if ok, _ := path.Match(g, part); ok {
				return true
			}
		}
	}
	for _, s := range e.substrs {
		if strings.Contains(rel, s) {
			return true
		}
	}
	return e.gitignore != nil && e.gitignore.MatchesPath(rel)
}

// DiscoverOptions configures Discover.
type DiscoverOptions struct {
	Registry         *ast.ParserRegistry
	ExcludePatterns  []string
	RespectGitignore bool

	// MaxFiles fails discovery when more files qualify. Zero means unlimited.
	MaxFiles int

	// MaxFileSize skips larger files. Zero uses ast.DefaultMaxFileSize.
	MaxFileSize int64
}

// Discover walks root and selects the files the registry can parse.
//
// Description:
//
//	Directories matching a default name, an exclude pattern or .gitignore
//	are pruned. Symlinks are not followed. Files without a registered
//	parser are ignored silently; oversized files are reported as skipped.
//
// Outputs:
//   - *Discovery: Files sorted by Path.
//   - error: ErrProjectTooLarge when MaxFiles is exceeded, or a walk error.
func Discover(root string, opts DiscoverOptions) (*Discovery, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("discover %s: nil parser registry", root)
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = ast.DefaultMaxFileSize
	}
	ex := newExcluder(root, opts.ExcludePatterns, opts.RespectGitignore)

	result := &Discovery{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			return nil
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if ex.match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}
		if ex.match(rel) {
			return nil
		}

		parser, ok := opts.Registry.ForPath(rel)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedFile{Path: rel, Reason: err.Error()})
			return nil
		}
		if info.Size() > maxSize {
			result.Skipped = append(result.Skipped, SkippedFile{
				Path:   rel,
				Reason: fmt.Sprintf("%v: %d bytes", ast.ErrFileTooLarge, info.Size()),
			})
			return nil
		}

		if opts.MaxFiles > 0 && len(result.Files) >= opts.MaxFiles {
			return fmt.Errorf("%w: more than %d files", ErrProjectTooLarge, opts.MaxFiles)
		}
		result.Files = append(result.Files, SourceFile{
			Path:     rel,
			AbsPath:  p,
			Language: parser.Language(),
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}

	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	sort.Slice(result.Skipped, func(i, j int) bool { return result.Skipped[i].Path < result.Skipped[j].Path })
	return result, nil
}
