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

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptParser extracts named functions from JavaScript source.
//
// Description:
//
//	Recognized definitions are function declarations, generator
//	declarations, class methods, and arrow or function expressions bound
//	to a variable ("const handler = () => {}"). Anonymous callbacks are not
//	definitions; their calls belong to the enclosing function.
//
//	The TypeScript grammars share these node types, so TypeScriptParser
//	reuses the walk and skeleton rendering with a different language.
//
// Thread Safety:
//
//	Safe for concurrent use.
type JavaScriptParser struct {
	cfg parserConfig
}

var jsCallTypes = map[string]bool{"call_expression": true}

// NewJavaScriptParser creates a JavaScript parser.
func NewJavaScriptParser(opts ...ParserOption) *JavaScriptParser {
	return &JavaScriptParser{cfg: newParserConfig(opts)}
}

// Language returns "javascript".
func (p *JavaScriptParser) Language() string {
	return "javascript"
}

// Extensions returns the JavaScript file extensions.
func (p *JavaScriptParser) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

// Parse extracts named functions from JavaScript source.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	return p.parse(ctx, javascript.GetLanguage(), "javascript", content, filePath)
}

func (p *JavaScriptParser) parse(ctx context.Context, lang *sitter.Language, language string, content []byte, filePath string) (*ParseResult, error) {
	return parseFile(ctx, lang, language, content, filePath, p.cfg.maxFileSize,
		func(ctx context.Context, root *sitter.Node, result *ParseResult) {
			p.walk(ctx, root, content, filePath, "", result)
		})
}

// isJSFunctionValue reports whether n is a function-valued expression.
func isJSFunctionValue(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

// jsStop marks nested named definitions; their calls are not attributed
// to the enclosing function.
func jsStop(n *sitter.Node) bool {
	switch n.Type() {
	case "function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "method_definition":
		return true
	case "variable_declarator":
		return isJSFunctionValue(n.ChildByFieldName("value"))
	}
	return false
}

// walk records definitions below node. container names the enclosing
// class or function.
func (p *JavaScriptParser) walk(ctx context.Context, node *sitter.Node, content []byte, filePath, container string, result *ParseResult) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)

		switch child.Type() {
		case "function_declaration", "generator_function_declaration":
			name := nodeText(child.ChildByFieldName("name"), content)
			p.record(ctx, child, child, name, container, content, filePath, result)

		case "class_declaration", "abstract_class_declaration", "class":
			className := nodeText(child.ChildByFieldName("name"), content)
			if body := child.ChildByFieldName("body"); body != nil {
				p.walk(ctx, body, content, filePath, className, result)
			}

		case "method_definition":
			name := nodeText(child.ChildByFieldName("name"), content)
			p.record(ctx, child, child, name, container, content, filePath, result)

		case "variable_declarator":
			value := child.ChildByFieldName("value")
			if !isJSFunctionValue(value) {
				p.walk(ctx, child, content, filePath, container, result)
				continue
			}
			name := nodeText(child.ChildByFieldName("name"), content)
			span := child
			// Single-declarator statements span the whole "const f = ..." line.
			if parent := child.Parent(); parent != nil && parent.NamedChildCount() == 1 {
				span = parent
			}
			p.record(ctx, span, value, name, container, content, filePath, result)

		default:
			p.walk(ctx, child, content, filePath, container, result)
		}
	}
}

// record appends a function whose definition text is span and whose
// parameters and body belong to fnNode, then descends into the body.
func (p *JavaScriptParser) record(ctx context.Context, span, fnNode *sitter.Node, name, container string, content []byte, filePath string, result *ParseResult) {
	if name == "" {
		return
	}
	body := fnNode.ChildByFieldName("body")

	fn := FunctionDecl{
		Name:      name,
		Container: container,
		Signature: collapseWhitespace(strings.TrimSuffix(headerText(span, body, content), "=>")),
		StartLine: startLine(span),
		EndLine:   endLine(span),
	}
	if body != nil {
		fn.Calls = collectCalls(ctx, body, content, filePath, jsCallTypes, jsStop, jsCallSite)
		result.Functions = append(result.Functions, fn)
		p.walk(ctx, body, content, filePath, name, result)
		return
	}
	result.Functions = append(result.Functions, fn)
}

// jsCallSite extracts the target of "helper()" or "obj.method()".
func jsCallSite(node *sitter.Node, content []byte) *CallSite {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return nil
	}

	switch fnNode.Type() {
	case "identifier":
		return newCallSite(node, nodeText(fnNode, content), "")
	case "member_expression":
		prop := fnNode.ChildByFieldName("property")
		object := fnNode.ChildByFieldName("object")
		return newCallSite(node, nodeText(prop, content), nodeText(object, content))
	}
	return nil
}

// Skeleton renders JavaScript source with function bodies replaced by "{ ... }".
func (p *JavaScriptParser) Skeleton(ctx context.Context, content []byte, filePath string) (string, error) {
	return p.skeleton(ctx, javascript.GetLanguage(), content, filePath)
}

func (p *JavaScriptParser) skeleton(ctx context.Context, lang *sitter.Language, content []byte, filePath string) (string, error) {
	return skeletonFile(ctx, lang, content, filePath, p.cfg.maxFileSize, func(node *sitter.Node) string {
		return p.skeletonStatement(node, content)
	})
}

// skeletonStatement renders a top-level statement, or "" for non-declarations.
func (p *JavaScriptParser) skeletonStatement(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "import_statement":
		return nodeText(node, content)

	case "export_statement":
		decl := node.ChildByFieldName("declaration")
		if decl == nil {
			return nodeText(node, content)
		}
		prefix := string(content[node.StartByte():decl.StartByte()])
		if inner := p.skeletonStatement(decl, content); inner != "" {
			return prefix + inner
		}
		return ""

	case "function_declaration", "generator_function_declaration":
		return elideBody(node, node.ChildByFieldName("body"), content)

	// TypeScript declarations carry no bodies.
	case "interface_declaration", "type_alias_declaration", "enum_declaration",
		"function_signature", "ambient_declaration":
		return nodeText(node, content)

	case "class_declaration", "abstract_class_declaration":
		body := node.ChildByFieldName("body")
		if body == nil {
			return nodeText(node, content)
		}
		var sb strings.Builder
		sb.WriteString(headerText(node, body, content))
		sb.WriteString(" {\n")
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			indent := indentOf(member)
			switch member.Type() {
			case "method_definition":
				sb.WriteString(indent + elideBody(member, member.ChildByFieldName("body"), content) + "\n")
			case "field_definition", "public_field_definition",
				"method_signature", "abstract_method_signature", "index_signature":
				sb.WriteString(indent + nodeText(member, content) + "\n")
			}
		}
		sb.WriteString("}")
		return sb.String()

	case "lexical_declaration", "variable_declaration":
		if node.NamedChildCount() == 1 {
			declarator := node.NamedChild(0)
			value := declarator.ChildByFieldName("value")
			if isJSFunctionValue(value) {
				return elideBody(node, value.ChildByFieldName("body"), content)
			}
		}
		return nodeText(node, content)
	}
	return ""
}

// elideBody returns the header of decl with a block body replaced by "{ ... }".
// Expression-bodied arrows keep their expression.
func elideBody(decl, body *sitter.Node, content []byte) string {
	if body == nil || body.Type() != "statement_block" {
		return nodeText(decl, content)
	}
	return replaceBody(decl, body, content, bodyPlaceholder)
}

var (
	_ Parser       = (*JavaScriptParser)(nil)
	_ Skeletonizer = (*JavaScriptParser)(nil)
)
