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
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoParser extracts functions and methods from Go source.
//
// Description:
//
//	Uses tree-sitter to parse Go files. Extracts top-level functions and
//	methods with their signatures and call sites. Calls inside function
//	literals are attributed to the enclosing declaration.
//
// Thread Safety:
//
//	Safe for concurrent use.
type GoParser struct {
	cfg parserConfig
}

var goCallTypes = map[string]bool{"call_expression": true}

// NewGoParser creates a Go parser.
//
// Example:
//
//	parser := NewGoParser(WithMaxFileSize(5 * 1024 * 1024))
//	result, err := parser.Parse(ctx, content, "cmd/main.go")
func NewGoParser(opts ...ParserOption) *GoParser {
	return &GoParser{cfg: newParserConfig(opts)}
}

// Language returns "go".
func (p *GoParser) Language() string {
	return "go"
}

// Extensions returns []string{".go"}.
func (p *GoParser) Extensions() []string {
	return []string{".go"}
}

// Parse extracts functions and methods from Go source.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - content: Go source bytes.
//   - filePath: Path recorded in the result.
//
// Outputs:
//   - *ParseResult: Functions ordered by start line.
//   - error: ErrFileTooLarge, ErrInvalidContent or ErrParseFailed (wrapped in ParseError).
func (p *GoParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "go", filePath, len(content))
	defer span.End()
	start := time.Now()

	tree, err := parseSource(ctx, golang.GetLanguage(), content, filePath, p.cfg.maxFileSize)
	if err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &ParseResult{
		FilePath:  filePath,
		Language:  "go",
		Functions: make([]FunctionDecl, 0),
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "function_declaration", "method_declaration":
			if fn, ok := p.processFunction(ctx, child, content, filePath); ok {
				result.Functions = append(result.Functions, fn)
			}
		}
	}
	sortFunctions(result.Functions)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, WrapParseError(err, filePath)
	}

	setParseSpanResult(span, len(result.Functions), len(result.Errors))
	recordParseMetrics(ctx, "go", time.Since(start), len(result.Functions), true)
	return result, nil
}

// processFunction builds a FunctionDecl from a function or method declaration.
func (p *GoParser) processFunction(ctx context.Context, node *sitter.Node, content []byte, filePath string) (FunctionDecl, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return FunctionDecl{}, false
	}
	body := node.ChildByFieldName("body")

	fn := FunctionDecl{
		Name:      nodeText(nameNode, content),
		Signature: collapseWhitespace(headerText(node, body, content)),
		StartLine: startLine(node),
		EndLine:   endLine(node),
	}

	if recv := node.ChildByFieldName("receiver"); recv != nil {
		fn.Container = goReceiverType(recv, content)
	}

	if body != nil {
		fn.Calls = collectCalls(ctx, body, content, filePath, goCallTypes, nil, goCallSite)
	}
	return fn, true
}

// goReceiverType returns the receiver's base type name: "(s *Server[T])" -> "Server".
func goReceiverType(recv *sitter.Node, content []byte) string {
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		param := recv.NamedChild(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		typ := nodeText(param.ChildByFieldName("type"), content)
		typ = strings.TrimLeft(typ, "*")
		if idx := strings.IndexByte(typ, '['); idx >= 0 {
			typ = typ[:idx]
		}
		return strings.TrimSpace(typ)
	}
	return ""
}

// goCallSite extracts the call target from a call_expression.
//
// Handles plain calls ("helper()"), selector calls ("fmt.Println()",
// "s.run()") and generic instantiations ("Map[int](xs)"). Anything else,
// such as calls on function-valued expressions, is skipped.
func goCallSite(node *sitter.Node, content []byte) *CallSite {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return nil
	}

	switch fnNode.Type() {
	case "identifier":
		return newCallSite(node, nodeText(fnNode, content), "")
	case "selector_expression":
		field := fnNode.ChildByFieldName("field")
		operand := fnNode.ChildByFieldName("operand")
		return newCallSite(node, nodeText(field, content), nodeText(operand, content))
	case "generic_type", "index_expression":
		// Explicit instantiation: Map[int](xs).
		if inner := fnNode.NamedChild(0); inner != nil && inner.Type() == "identifier" {
			return newCallSite(node, nodeText(inner, content), "")
		}
	}
	return nil
}

// Skeleton renders Go source with function bodies replaced by "{ ... }".
//
// The package clause, imports and type/const/var declarations are kept
// verbatim, together with the comment block directly above each kept
// declaration.
func (p *GoParser) Skeleton(ctx context.Context, content []byte, filePath string) (string, error) {
	tree, err := parseSource(ctx, golang.GetLanguage(), content, filePath, p.cfg.maxFileSize)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	root := tree.RootNode()
	var w skeletonWriter
	var comments []*sitter.Node

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)

		var block string
		switch child.Type() {
		case "comment":
			if len(comments) > 0 && comments[len(comments)-1].EndPoint().Row+1 < child.StartPoint().Row {
				comments = comments[:0]
			}
			comments = append(comments, child)
			continue
		case "package_clause", "import_declaration", "type_declaration", "const_declaration", "var_declaration":
			block = nodeText(child, content)
		case "function_declaration", "method_declaration":
			body := child.ChildByFieldName("body")
			block = headerText(child, body, content)
			if body != nil {
				block += " { ... }"
			}
		default:
			comments = comments[:0]
			continue
		}

		w.add(leadingComments(comments, child, content) + block)
		comments = comments[:0]
	}

	return w.String(), nil
}

// leadingComments returns the comment block that ends on the line directly
// above decl, with a trailing newline, or "".
func leadingComments(comments []*sitter.Node, decl *sitter.Node, content []byte) string {
	if len(comments) == 0 || comments[len(comments)-1].EndPoint().Row+1 != decl.StartPoint().Row {
		return ""
	}
	var sb strings.Builder
	for _, c := range comments {
		sb.WriteString(nodeText(c, content))
		sb.WriteByte('\n')
	}
	return sb.String()
}

var (
	_ Parser       = (*GoParser)(nil)
	_ Skeletonizer = (*GoParser)(nil)
)
