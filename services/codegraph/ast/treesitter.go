// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// parseSource validates content and runs tree-sitter over it.
//
// The returned tree must be closed by the caller. A new sitter.Parser is
// created per call; sitter parsers are not safe for concurrent use.
func parseSource(ctx context.Context, lang *sitter.Language, content []byte, filePath string, maxFileSize int64) (*sitter.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > maxFileSize {
		return nil, &ParseError{
			FilePath: filePath,
			Message:  fmt.Sprintf("size %d exceeds limit %d", len(content), maxFileSize),
			Cause:    ErrFileTooLarge,
		}
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		return nil, &ParseError{FilePath: filePath, Message: "content is not valid UTF-8", Cause: ErrInvalidContent}
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &ParseError{FilePath: filePath, Message: "tree-sitter parse failed", Cause: fmt.Errorf("%w: %v", ErrParseFailed, err)}
	}
	if tree == nil || tree.RootNode() == nil {
		if tree != nil {
			tree.Close()
		}
		return nil, &ParseError{FilePath: filePath, Message: "tree-sitter returned no tree", Cause: ErrParseFailed}
	}

	return tree, nil
}

// walkFunc records the definitions found under root into result.
type walkFunc func(ctx context.Context, root *sitter.Node, result *ParseResult)

// parseFile runs the parse pipeline shared by the tree-sitter parsers:
// tracing, size and encoding checks, the language walk, ordering,
// validation and metrics.
func parseFile(ctx context.Context, lang *sitter.Language, language string, content []byte, filePath string,
	maxFileSize int64, walk walkFunc) (*ParseResult, error) {

	ctx, span := startParseSpan(ctx, language, filePath, len(content))
	defer span.End()
	start := time.Now()

	tree, err := parseSource(ctx, lang, content, filePath, maxFileSize)
	if err != nil {
		recordParseMetrics(ctx, language, time.Since(start), 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &ParseResult{
		FilePath:  filePath,
		Language:  language,
		Functions: make([]FunctionDecl, 0),
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	walk(ctx, root, result)
	sortFunctions(result.Functions)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, language, time.Since(start), 0, false)
		return nil, WrapParseError(err, filePath)
	}

	setParseSpanResult(span, len(result.Functions), len(result.Errors))
	recordParseMetrics(ctx, language, time.Since(start), len(result.Functions), true)
	return result, nil
}

// skeletonFile parses content and joins the non-empty renderings of the
// root's named children.
func skeletonFile(ctx context.Context, lang *sitter.Language, content []byte, filePath string,
	maxFileSize int64, render func(node *sitter.Node) string) (string, error) {

	tree, err := parseSource(ctx, lang, content, filePath, maxFileSize)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	root := tree.RootNode()
	var w skeletonWriter
	for i := 0; i < int(root.NamedChildCount()); i++ {
		w.add(render(root.NamedChild(i)))
	}
	return w.String(), nil
}

// nodeText returns the source text covered by n.
func nodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

// startLine returns the 1-based start line of n.
func startLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// endLine returns the 1-based end line of n.
//
// tree-sitter places the end point of a node that finishes with a newline
// at column 0 of the following row; that row is not part of the node.
func endLine(n *sitter.Node) int {
	end := n.EndPoint()
	if end.Column == 0 && end.Row > n.StartPoint().Row {
		return int(end.Row)
	}
	return int(end.Row) + 1
}

// headerText returns the text of decl up to (not including) body, with
// trailing whitespace removed.
func headerText(decl, body *sitter.Node, content []byte) string {
	if body == nil {
		return strings.TrimRight(nodeText(decl, content), " \t\r\n")
	}
	return strings.TrimRight(string(content[decl.StartByte():body.StartByte()]), " \t\r\n")
}

// bodyPlaceholder replaces elided brace-delimited bodies in skeletons.
const bodyPlaceholder = "{ ... }"

// replaceBody returns the header of decl followed by placeholder where body
// was. A nil body yields the full text of decl.
func replaceBody(decl, body *sitter.Node, content []byte, placeholder string) string {
	if body == nil {
		return nodeText(decl, content)
	}
	return headerText(decl, body, content) + " " + placeholder
}

// indentOf returns spaces matching the start column of n.
func indentOf(n *sitter.Node) string {
	return strings.Repeat(" ", int(n.StartPoint().Column))
}

// collapseWhitespace joins a multi-line header into a single line.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// callExtractor converts a call node into a CallSite, or nil to skip it.
type callExtractor func(node *sitter.Node, content []byte) *CallSite

// collectCalls walks body iteratively and returns its call sites in source order.
//
// Description:
//
//	Nodes whose type is in callTypes are handed to extract. Subtrees for
//	which stop returns true (nested named definitions) are not entered;
//	their calls belong to the nested definition.
//
// Inputs:
//   - ctx: Checked every 100 nodes.
//   - body: The function body node. Nil yields nil.
//   - callTypes: Node types that represent calls ("call_expression", "call").
//   - stop: Reports nodes that start a nested definition. May be nil.
//
// Outputs:
//   - []CallSite: Sorted by line, then column. At most MaxCallSitesPerFunction.
func collectCalls(ctx context.Context, body *sitter.Node, content []byte, filePath string,
	callTypes map[string]bool, stop func(*sitter.Node) bool, extract callExtractor) []CallSite {

	if body == nil || ctx.Err() != nil {
		return nil
	}

	type stackEntry struct {
		node  *sitter.Node
		depth int
	}

	calls := make([]CallSite, 0, 16)
	stack := make([]stackEntry, 0, 64)
	stack = append(stack, stackEntry{node: body})

	nodeCount := 0
	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := entry.node
		if node == nil || entry.depth > MaxCallExpressionDepth {
			continue
		}

		nodeCount++
		if nodeCount%100 == 0 && ctx.Err() != nil {
			break
		}

		if entry.depth > 0 && stop != nil && stop(node) {
			continue
		}

		if callTypes[node.Type()] {
			if call := extract(node, content); call != nil && call.Target != "" {
				calls = append(calls, *call)
				if len(calls) >= MaxCallSitesPerFunction {
					slog.Warn("max call sites per function reached",
						slog.String("file", filePath),
						slog.Int("limit", MaxCallSitesPerFunction))
					break
				}
			}
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, stackEntry{node: child, depth: entry.depth + 1})
			}
		}
	}

	sort.SliceStable(calls, func(i, j int) bool {
		if calls[i].Line != calls[j].Line {
			return calls[i].Line < calls[j].Line
		}
		return calls[i].Column < calls[j].Column
	})
	return calls
}

// stopAtTypes returns a stop predicate matching any of the given node types.
func stopAtTypes(types ...string) func(*sitter.Node) bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(n *sitter.Node) bool {
		return set[n.Type()]
	}
}

// newCallSite fills the position fields of a call site from node.
func newCallSite(node *sitter.Node, target, receiver string) *CallSite {
	return &CallSite{
		Target:   target,
		Receiver: receiver,
		Line:     startLine(node),
		Column:   int(node.StartPoint().Column),
	}
}

// sortFunctions orders functions by start line, then name.
func sortFunctions(fns []FunctionDecl) {
	sort.SliceStable(fns, func(i, j int) bool {
		if fns[i].StartLine != fns[j].StartLine {
			return fns[i].StartLine < fns[j].StartLine
		}
		return fns[i].Name < fns[j].Name
	})
}

// skeletonWriter accumulates top-level declaration blocks separated by blank lines.
type skeletonWriter struct {
	blocks []string
}

func (w *skeletonWriter) add(block string) {
	if block = strings.TrimRight(block, " \t\r\n"); block != "" {
		w.blocks = append(w.blocks, block)
	}
}

func (w *skeletonWriter) String() string {
	if len(w.blocks) == 0 {
		return ""
	}
	return strings.Join(w.blocks, "\n\n") + "\n"
}
