// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snippet extracts source snippets and declaration skeletons.
package snippet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

// DefaultContextLines is used when context is requested without a count.
const DefaultContextLines = 3

// ErrFunctionNotFound is returned by FindFunction when the file declares no
// function of the requested name.
var ErrFunctionNotFound = errors.New("function not found in file")

// Snippet is a clamped slice of a file.
type Snippet struct {
	Code      string
	LineStart int
	LineEnd   int
}

// Slice returns lines [start-context, end+context], clamped to [1, len(lines)].
//
// Lines are 1-based and the range is inclusive. An empty file yields an
// empty snippet with zero bounds.
func Slice(lines []string, start, end, context int) Snippet {
	if len(lines) == 0 {
		return Snippet{}
	}
	if context < 0 {
		context = 0
	}
	if end < start {
		end = start
	}
	from := clamp(start-context, 1, len(lines))
	to := clamp(end+context, 1, len(lines))
	return Snippet{
		Code:      strings.Join(lines[from-1:to], "\n"),
		LineStart: from,
		LineEnd:   to,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Extractor reads files through a FileReader and renders snippets and
// skeletons with the parser registry.
//
// Thread Safety: Safe for concurrent use.
type Extractor struct {
	reader   FileReader
	registry *ast.ParserRegistry
	workers  int
}

// NewExtractor creates an extractor. workers bounds parallel skeleton
// rendering; zero means one per file.
func NewExtractor(reader FileReader, registry *ast.ParserRegistry, workers int) *Extractor {
	return &Extractor{reader: reader, registry: registry, workers: workers}
}

// Snippet reads absPath and slices [start-context, end+context].
func (e *Extractor) Snippet(ctx context.Context, absPath string, start, end, context int) (Snippet, error) {
	c, err := e.reader.Read(ctx, absPath)
	if err != nil {
		return Snippet{}, err
	}
	return Slice(c.Lines, start, end, context), nil
}

// WholeFile returns every line of absPath.
func (e *Extractor) WholeFile(ctx context.Context, absPath string) (Snippet, error) {
	c, err := e.reader.Read(ctx, absPath)
	if err != nil {
		return Snippet{}, err
	}
	return Slice(c.Lines, 1, len(c.Lines), 0), nil
}

// FindFunction parses a file that is not part of any generation and returns
// the first function with the given name, by line.
//
// Outputs:
//   - ast.FunctionDecl: The matching declaration.
//   - string: The file's language.
//   - error: ast.ErrUnsupportedLanguage, ErrFunctionNotFound, read or parse errors.
func (e *Extractor) FindFunction(ctx context.Context, absPath, displayPath, name string) (ast.FunctionDecl, string, error) {
	parser, ok := e.registry.ForPath(absPath)
	if !ok {
		return ast.FunctionDecl{}, "", fmt.Errorf("%w: %s", ast.ErrUnsupportedLanguage, displayPath)
	}
	c, err := e.reader.Read(ctx, absPath)
	if err != nil {
		return ast.FunctionDecl{}, "", err
	}
	result, err := parser.Parse(ctx, c.Data, displayPath)
	if err != nil {
		return ast.FunctionDecl{}, "", err
	}
	for _, fn := range result.Functions {
		if fn.Name == name {
			return fn, result.Language, nil
		}
	}
	return ast.FunctionDecl{}, result.Language, fmt.Errorf("%w: %s in %s", ErrFunctionNotFound, name, displayPath)
}

// Language returns the registered language for path, or "".
func (e *Extractor) Language(path string) string {
	if p, ok := e.registry.ForPath(path); ok {
		return p.Language()
	}
	return ""
}

// SkeletonRequest names one file of a skeleton batch.
type SkeletonRequest struct {
	// DisplayPath is echoed back in the result.
	DisplayPath string

	// AbsPath is read from disk.
	AbsPath string
}

// SkeletonResult is the outcome for one file. Exactly one of Skeleton and
// Err is meaningful.
type SkeletonResult struct {
	FilePath string
	Language string
	Skeleton string
	Err      error
}

// Skeletons renders each file independently.
//
// A missing file, an unsupported extension or unparseable content is
// reported in that file's Err; the batch always completes. Results are in
// request order.
func (e *Extractor) Skeletons(ctx context.Context, reqs []SkeletonRequest) []SkeletonResult {
	out := make([]SkeletonResult, len(reqs))
	var g errgroup.Group
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}
	for i := range reqs {
		i := i
		g.Go(func() error {
			out[i] = e.skeleton(ctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Extractor) skeleton(ctx context.Context, req SkeletonRequest) SkeletonResult {
	res := SkeletonResult{FilePath: req.DisplayPath}

	parser, ok := e.registry.ForPath(req.AbsPath)
	if !ok {
		res.Err = fmt.Errorf("%w: %s", ast.ErrUnsupportedLanguage, req.DisplayPath)
		return res
	}
	res.Language = parser.Language()

	sk, ok := parser.(ast.Skeletonizer)
	if !ok {
		res.Err = fmt.Errorf("%w: no skeleton support for %s", ast.ErrUnsupportedLanguage, res.Language)
		return res
	}

	c, err := e.reader.Read(ctx, req.AbsPath)
	if err != nil {
		res.Err = err
		return res
	}
	text, err := sk.Skeleton(ctx, c.Data, req.DisplayPath)
	if err != nil {
		res.Err = err
		return res
	}
	res.Skeleton = text
	return res
}
