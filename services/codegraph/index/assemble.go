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
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// extraction is the outcome for one source file.
type extraction struct {
	file   SourceFile
	result *ast.ParseResult
	err    error
}

// extractAll parses files with at most workers goroutines.
//
// Per-file failures are kept in the outcome rather than returned, so one bad
// file never cancels its siblings. Only context cancellation aborts.
// Outcomes are in the same order as files.
func extractAll(ctx context.Context, registry *ast.ParserRegistry, files []SourceFile, workers int) ([]extraction, error) {
	out := make([]extraction, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i := range files {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = extractFile(gctx, registry, files[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func extractFile(ctx context.Context, registry *ast.ParserRegistry, f SourceFile) extraction {
	parser, ok := registry.ForPath(f.Path)
	if !ok {
		return extraction{file: f, err: fmt.Errorf("%w: %s", ast.ErrUnsupportedLanguage, f.Path)}
	}
	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return extraction{file: f, err: fmt.Errorf("read %s: %w", f.Path, err)}
	}
	result, err := parser.Parse(ctx, content, f.Path)
	if err != nil {
		return extraction{file: f, err: err}
	}
	if err := result.Validate(); err != nil {
		return extraction{file: f, err: err}
	}
	return extraction{file: f, result: result}
}

// assemble turns ordered extractions into a frozen generation.
//
// Description:
//
//	Functions are added in path order. Call sites are then resolved by
//	simple name against every function in the project:
//	  - one candidate: resolved;
//	  - several, exactly one in the caller's file: resolved to it;
//	  - several otherwise: ambiguous, with the candidate ids;
//	  - none: unresolved.
//
// Outputs:
//   - *graph.Generation: The frozen generation.
//   - int: Number of files that extracted successfully.
//   - error: Non-nil only for builder invariant violations.
func assemble(meta graph.Metadata, outcomes []extraction, skipped []SkippedFile, logger *slog.Logger) (*graph.Generation, int, error) {
	b := graph.NewBuilder(meta)
	for _, s := range skipped {
		b.AddFailure(graph.FileFailure{Path: s.Path, Reason: s.Reason})
	}

	type pending struct {
		fn    *graph.Function
		calls []ast.CallSite
	}
	var functions []pending
	byName := make(map[string][]*graph.Function)
	succeeded := 0

	for _, o := range outcomes {
		if o.err != nil {
			b.AddFailure(graph.FileFailure{Path: o.file.Path, Reason: o.err.Error()})
			logger.Warn("file extraction failed",
				slog.String("file", o.file.Path),
				slog.String("error", o.err.Error()))
			continue
		}
		if err := b.AddFile(graph.File{Path: o.file.Path, Language: o.result.Language}); err != nil {
			return nil, 0, err
		}
		succeeded++

		for _, decl := range o.result.Functions {
			fn := &graph.Function{
				ID:        ast.GenerateID(o.file.Path, decl.StartLine, decl.Name),
				Name:      decl.Name,
				FilePath:  o.file.Path,
				LineStart: decl.StartLine,
				LineEnd:   decl.EndLine,
				Signature: decl.Signature,
				Language:  o.result.Language,
				Container: decl.Container,
			}
			if b.HasFunction(fn.ID) {
				logger.Debug("duplicate function id skipped", slog.String("id", fn.ID))
				continue
			}
			if err := b.AddFunction(fn); err != nil {
				return nil, 0, err
			}
			functions = append(functions, pending{fn: fn, calls: decl.Calls})
			byName[fn.Name] = append(byName[fn.Name], fn)
		}
	}

	for _, p := range functions {
		for order, call := range p.calls {
			edge := resolveCall(p.fn, call, byName[call.Target])
			edge.Order = order
			if err := b.AddCall(edge); err != nil {
				return nil, 0, err
			}
		}
	}

	g, err := b.Freeze()
	if err != nil {
		return nil, 0, err
	}
	return g, succeeded, nil
}

// resolveCall binds one call site. candidates are in path, then line order.
func resolveCall(caller *graph.Function, call ast.CallSite, candidates []*graph.Function) graph.CallEdge {
	edge := graph.CallEdge{
		CallerID:   caller.ID,
		CalleeName: call.Target,
		Receiver:   call.Receiver,
		Line:       call.Line,
	}

	switch len(candidates) {
	case 0:
		edge.Status = graph.EdgeUnresolved
		return edge
	case 1:
		edge.Status = graph.EdgeResolved
		edge.CalleeID = candidates[0].ID
		return edge
	}

	var local *graph.Function
	localCount := 0
	for _, c := range candidates {
		if c.FilePath == caller.FilePath {
			local = c
			localCount++
		}
	}
	if localCount == 1 {
		edge.Status = graph.EdgeResolved
		edge.CalleeID = local.ID
		return edge
	}

	edge.Status = graph.EdgeAmbiguous
	edge.Candidates = make([]string, 0, len(candidates))
	for _, c := range candidates {
		edge.Candidates = append(edge.Candidates, c.ID)
	}
	return edge
}
