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
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParser extracts functions, methods and nested functions from Python source.
//
// Description:
//
//	Every function_definition in the file becomes a FunctionDecl. Methods
//	carry their class as Container; nested functions carry the enclosing
//	function. Decorated definitions start at the first decorator so that
//	snippets include them.
//
// Thread Safety:
//
//	Safe for concurrent use.
type PythonParser struct {
	cfg parserConfig
}

var (
	pythonCallTypes = map[string]bool{"call": true}
	pythonStop      = stopAtTypes("function_definition", "class_definition", "decorated_definition")
)

// NewPythonParser creates a Python parser.
func NewPythonParser(opts ...ParserOption) *PythonParser {
	return &PythonParser{cfg: newParserConfig(opts)}
}

// Language returns "python".
func (p *PythonParser) Language() string {
	return "python"
}

// Extensions returns []string{".py", ".pyi"}.
func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyi"}
}

// Parse extracts all function definitions from Python source.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "python", filePath, len(content))
	defer span.End()
	start := time.Now()

	tree, err := parseSource(ctx, python.GetLanguage(), content, filePath, p.cfg.maxFileSize)
	if err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &ParseResult{
		FilePath:  filePath,
		Language:  "python",
		Functions: make([]FunctionDecl, 0),
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	p.walk(ctx, root, content, filePath, "", result)
	sortFunctions(result.Functions)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, WrapParseError(err, filePath)
	}

	setParseSpanResult(span, len(result.Functions), len(result.Errors))
	recordParseMetrics(ctx, "python", time.Since(start), len(result.Functions), true)
	return result, nil
}

// walk visits node's named children, recording definitions.
// container is the name of the enclosing class or function.
func (p *PythonParser) walk(ctx context.Context, node *sitter.Node, content []byte, filePath, container string, result *ParseResult) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		outer := child
		def := child
		if child.Type() == "decorated_definition" {
			def = child.ChildByFieldName("definition")
			if def == nil {
				continue
			}
		}

		switch def.Type() {
		case "function_definition":
			fn := p.processFunction(ctx, outer, def, content, filePath, container)
			if fn.Name == "" {
				continue
			}
			result.Functions = append(result.Functions, fn)
			if body := def.ChildByFieldName("body"); body != nil {
				p.walk(ctx, body, content, filePath, fn.Name, result)
			}
		case "class_definition":
			name := nodeText(def.ChildByFieldName("name"), content)
			if body := def.ChildByFieldName("body"); body != nil {
				p.walk(ctx, body, content, filePath, name, result)
			}
		default:
			// Definitions can sit inside if/try/with blocks.
			if child.NamedChildCount() > 0 && child.Type() != "expression_statement" {
				p.walk(ctx, child, content, filePath, container, result)
			}
		}
	}
}

// processFunction builds a FunctionDecl. outer is the decorated_definition
// when present, otherwise the same node as def.
func (p *PythonParser) processFunction(ctx context.Context, outer, def *sitter.Node, content []byte, filePath, container string) FunctionDecl {
	body := def.ChildByFieldName("body")
	signature := strings.TrimSuffix(collapseWhitespace(headerText(def, body, content)), ":")

	fn := FunctionDecl{
		Name:      nodeText(def.ChildByFieldName("name"), content),
		Container: container,
		Signature: signature,
		StartLine: startLine(outer),
		EndLine:   endLine(outer),
	}
	if body != nil {
		fn.Calls = collectCalls(ctx, body, content, filePath, pythonCallTypes, pythonStop, pythonCallSite)
	}
	return fn
}

// pythonCallSite extracts the target of a call: "helper()" or "self.run()".
func pythonCallSite(node *sitter.Node, content []byte) *CallSite {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return nil
	}

	switch fnNode.Type() {
	case "identifier":
		return newCallSite(node, nodeText(fnNode, content), "")
	case "attribute":
		attr := fnNode.ChildByFieldName("attribute")
		object := fnNode.ChildByFieldName("object")
		return newCallSite(node, nodeText(attr, content), nodeText(object, content))
	}
	return nil
}

// Skeleton renders Python source with function bodies replaced by "...".
//
// Imports, module and class level assignments, class headers and function
// headers (with decorators) are kept in declaration order.
func (p *PythonParser) Skeleton(ctx context.Context, content []byte, filePath string) (string, error) {
	tree, err := parseSource(ctx, python.GetLanguage(), content, filePath, p.cfg.maxFileSize)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	root := tree.RootNode()
	var w skeletonWriter
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "import_statement", "import_from_statement", "future_import_statement":
			w.add(nodeText(child, content))
		default:
			w.add(p.skeletonStatement(child, content))
		}
	}
	return w.String(), nil
}

// skeletonStatement renders one block-level statement, or "" when the
// statement is not a declaration.
func (p *PythonParser) skeletonStatement(node *sitter.Node, content []byte) string {
	indent := strings.Repeat(" ", int(node.StartPoint().Column))

	switch node.Type() {
	case "decorated_definition":
		def := node.ChildByFieldName("definition")
		if def == nil {
			return ""
		}
		return indent + p.skeletonDefinition(node, def, content)
	case "function_definition", "class_definition":
		return indent + p.skeletonDefinition(node, node, content)
	case "expression_statement":
		if first := node.NamedChild(0); first != nil && first.Type() == "assignment" {
			return indent + nodeText(node, content)
		}
	}
	return ""
}

// skeletonDefinition renders a function or class starting at outer.
// The returned text has no indentation on its first line.
func (p *PythonParser) skeletonDefinition(outer, def *sitter.Node, content []byte) string {
	body := def.ChildByFieldName("body")
	header := strings.TrimRight(string(content[outer.StartByte():def.StartByte()]), " \t\r\n")
	if header != "" {
		header += "\n" + strings.Repeat(" ", int(def.StartPoint().Column))
	}
	header += headerText(def, body, content)

	bodyIndent := strings.Repeat(" ", int(def.StartPoint().Column)+4)
	if body != nil && body.StartPoint().Row > def.StartPoint().Row {
		bodyIndent = strings.Repeat(" ", int(body.StartPoint().Column))
	}

	if def.Type() == "function_definition" || body == nil {
		return header + "\n" + bodyIndent + "..."
	}

	var members []string
	for i := 0; i < int(body.NamedChildCount()); i++ {
		if text := p.skeletonStatement(body.NamedChild(i), content); text != "" {
			members = append(members, text)
		}
	}
	if len(members) == 0 {
		return header + "\n" + bodyIndent + "..."
	}
	return header + "\n" + strings.Join(members, "\n")
}

var (
	_ Parser       = (*PythonParser)(nil)
	_ Skeletonizer = (*PythonParser)(nil)
)
