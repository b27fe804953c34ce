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
	"github.com/smacker/go-tree-sitter/rust"
)

// RustParser extracts functions and methods from Rust source.
//
// Description:
//
//	Every fn item with a body is a function. Inside an impl block the
//	container is the implementing type ("impl<T> Display for Stack<T>"
//	yields "Stack"); inside a trait it is the trait name. Trait method
//	signatures without a default body appear only in skeletons. Closures
//	are not definitions and macro invocations are not calls.
//
// Thread Safety:
//
//	Safe for concurrent use.
type RustParser struct {
	cfg parserConfig
}

var (
	rustCallTypes = map[string]bool{"call_expression": true}
	rustStop      = stopAtTypes("function_item", "impl_item", "trait_item", "mod_item")
)

// NewRustParser creates a Rust parser.
func NewRustParser(opts ...ParserOption) *RustParser {
	return &RustParser{cfg: newParserConfig(opts)}
}

// Language returns "rust".
func (p *RustParser) Language() string {
	return "rust"
}

// Extensions returns the Rust file extensions.
func (p *RustParser) Extensions() []string {
	return []string{".rs"}
}

// Parse extracts functions from Rust source.
func (p *RustParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	return parseFile(ctx, rust.GetLanguage(), "rust", content, filePath, p.cfg.maxFileSize,
		func(ctx context.Context, root *sitter.Node, result *ParseResult) {
			p.walk(ctx, root, content, filePath, "", result)
		})
}

// walk records fn items below node. container names the enclosing impl
// type, trait or function.
func (p *RustParser) walk(ctx context.Context, node *sitter.Node, content []byte, filePath, container string, result *ParseResult) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)

		switch child.Type() {
		case "function_item":
			p.record(ctx, child, content, filePath, container, result)

		case "impl_item":
			if body := child.ChildByFieldName("body"); body != nil {
				p.walk(ctx, body, content, filePath, rustTypeName(child.ChildByFieldName("type"), content), result)
			}

		case "trait_item":
			if body := child.ChildByFieldName("body"); body != nil {
				p.walk(ctx, body, content, filePath, nodeText(child.ChildByFieldName("name"), content), result)
			}

		default:
			p.walk(ctx, child, content, filePath, container, result)
		}
	}
}

func (p *RustParser) record(ctx context.Context, node *sitter.Node, content []byte, filePath, container string, result *ParseResult) {
	name := nodeText(node.ChildByFieldName("name"), content)
	body := node.ChildByFieldName("body")
	if name == "" || body == nil {
		return
	}

	result.Functions = append(result.Functions, FunctionDecl{
		Name:      name,
		Container: container,
		Signature: collapseWhitespace(headerText(node, body, content)),
		StartLine: startLine(node),
		EndLine:   endLine(node),
		Calls:     collectCalls(ctx, body, content, filePath, rustCallTypes, rustStop, rustCallSite),
	})
	p.walk(ctx, body, content, filePath, name, result)
}

// rustTypeName reduces an impl target to its bare name: "fmt::Stack<T>" -> "Stack".
func rustTypeName(n *sitter.Node, content []byte) string {
	name := nodeText(n, content)
	name, _, _ = strings.Cut(name, "<")
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	return strings.TrimSpace(strings.TrimLeft(name, "&"))
}

// rustCallSite extracts the target of "helper()", "self.tick()" or "Vec::new()".
func rustCallSite(node *sitter.Node, content []byte) *CallSite {
	fnNode := node.ChildByFieldName("function")
	if fnNode != nil && fnNode.Type() == "generic_function" {
		fnNode = fnNode.ChildByFieldName("function")
	}
	if fnNode == nil {
		return nil
	}

	switch fnNode.Type() {
	case "identifier":
		return newCallSite(node, nodeText(fnNode, content), "")
	case "field_expression":
		field := fnNode.ChildByFieldName("field")
		value := fnNode.ChildByFieldName("value")
		return newCallSite(node, nodeText(field, content), nodeText(value, content))
	case "scoped_identifier":
		name := fnNode.ChildByFieldName("name")
		path := fnNode.ChildByFieldName("path")
		return newCallSite(node, nodeText(name, content), nodeText(path, content))
	}
	return nil
}

// Skeleton renders Rust source with fn bodies replaced by "{ ... }".
//
// use declarations, type definitions, constants, impl and trait headers,
// and inline modules are kept in declaration order.
func (p *RustParser) Skeleton(ctx context.Context, content []byte, filePath string) (string, error) {
	return skeletonFile(ctx, rust.GetLanguage(), content, filePath, p.cfg.maxFileSize, func(node *sitter.Node) string {
		return rustSkeletonItem(node, content)
	})
}

// rustSkeletonItem renders one item without leading indentation, or "" for
// items that are not declarations.
func rustSkeletonItem(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "use_declaration", "extern_crate_declaration", "struct_item", "enum_item", "union_item",
		"type_item", "const_item", "static_item", "function_signature_item", "associated_type":
		return nodeText(node, content)

	case "function_item":
		return replaceBody(node, node.ChildByFieldName("body"), content, bodyPlaceholder)

	case "impl_item", "trait_item":
		body := node.ChildByFieldName("body")
		if body == nil {
			return nodeText(node, content)
		}
		var sb strings.Builder
		sb.WriteString(headerText(node, body, content))
		sb.WriteString(" {\n")
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			if text := rustSkeletonItem(member, content); text != "" {
				sb.WriteString(indentOf(member) + text + "\n")
			}
		}
		sb.WriteString(indentOf(node) + "}")
		return sb.String()

	case "mod_item":
		body := node.ChildByFieldName("body")
		if body == nil {
			return nodeText(node, content)
		}
		var items []string
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			if text := rustSkeletonItem(member, content); text != "" {
				items = append(items, indentOf(member)+text)
			}
		}
		header := headerText(node, body, content)
		if len(items) == 0 {
			return header + " {}"
		}
		return header + " {\n" + strings.Join(items, "\n\n") + "\n" + indentOf(node) + "}"
	}
	return ""
}

var (
	_ Parser       = (*RustParser)(nil)
	_ Skeletonizer = (*RustParser)(nil)
)
