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
	clang "github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// CppParser extracts function definitions from C and C++ source.
//
// Description:
//
//	Every function definition with a body is a function. Methods defined
//	inside a class or struct take it as container; out-of-class
//	definitions ("int Widget::size() const") take the last scope of the
//	qualified name. Prototypes and pure virtual declarations appear only in
//	skeletons. Lambdas are not definitions.
//
//	NewCParser uses the C grammar for ".c" files. Headers are parsed with
//	the C++ grammar, which accepts C declarations.
//
// Thread Safety:
//
//	Safe for concurrent use.
type CppParser struct {
	cfg        parserConfig
	language   string
	grammar    *sitter.Language
	extensions []string
}

var (
	cppCallTypes = map[string]bool{"call_expression": true}
	cppStop      = stopAtTypes("function_definition", "class_specifier", "struct_specifier", "union_specifier")
)

// NewCppParser creates a C++ parser.
func NewCppParser(opts ...ParserOption) *CppParser {
	return &CppParser{
		cfg:        newParserConfig(opts),
		language:   "cpp",
		grammar:    cpp.GetLanguage(),
		extensions: []string{".cc", ".cpp", ".cxx", ".c++", ".h", ".hh", ".hpp", ".hxx", ".inl", ".tpp"},
	}
}

// NewCParser creates a C parser.
func NewCParser(opts ...ParserOption) *CppParser {
	return &CppParser{
		cfg:        newParserConfig(opts),
		language:   "c",
		grammar:    clang.GetLanguage(),
		extensions: []string{".c"},
	}
}

// Language returns "cpp" or "c".
func (p *CppParser) Language() string {
	return p.language
}

// Extensions returns the handled file extensions.
func (p *CppParser) Extensions() []string {
	return append([]string(nil), p.extensions...)
}

// Parse extracts function definitions.
func (p *CppParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	return parseFile(ctx, p.grammar, p.language, content, filePath, p.cfg.maxFileSize,
		func(ctx context.Context, root *sitter.Node, result *ParseResult) {
			p.walk(ctx, root, content, filePath, "", result)
		})
}

// walk records function definitions below node. container names the
// enclosing class or function.
func (p *CppParser) walk(ctx context.Context, node *sitter.Node, content []byte, filePath, container string, result *ParseResult) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)

		switch child.Type() {
		case "function_definition":
			p.record(ctx, child, content, filePath, container, result)

		case "class_specifier", "struct_specifier", "union_specifier":
			if body := child.ChildByFieldName("body"); body != nil {
				p.walk(ctx, body, content, filePath, nodeText(child.ChildByFieldName("name"), content), result)
			}

		default:
			p.walk(ctx, child, content, filePath, container, result)
		}
	}
}

func (p *CppParser) record(ctx context.Context, node *sitter.Node, content []byte, filePath, container string, result *ParseResult) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	name, scope := cppDeclaratorName(node.ChildByFieldName("declarator"), content)
	if name == "" {
		return
	}
	if scope != "" {
		container = scope
	}

	result.Functions = append(result.Functions, FunctionDecl{
		Name:      name,
		Container: container,
		Signature: collapseWhitespace(headerText(node, body, content)),
		StartLine: startLine(node),
		EndLine:   endLine(node),
		Calls:     collectCalls(ctx, body, content, filePath, cppCallTypes, cppStop, cppCallSite),
	})
	p.walk(ctx, body, content, filePath, name, result)
}

// cppDeclaratorName unwraps pointer, reference and function declarators to
// the declared name. A qualified name also yields its innermost scope with
// template arguments removed.
func cppDeclaratorName(decl *sitter.Node, content []byte) (name, scope string) {
	for depth := 0; decl != nil && depth < 16; depth++ {
		switch decl.Type() {
		case "function_declarator", "pointer_declarator", "reference_declarator",
			"parenthesized_declarator", "attributed_declarator":
			next := decl.ChildByFieldName("declarator")
			if next == nil {
				next = decl.NamedChild(0)
			}
			decl = next

		case "qualified_identifier":
			scopeNode := decl.ChildByFieldName("scope")
			inner := decl.ChildByFieldName("name")
			for inner != nil && inner.Type() == "qualified_identifier" {
				scopeNode = inner.ChildByFieldName("scope")
				inner = inner.ChildByFieldName("name")
			}
			if inner == nil {
				return "", ""
			}
			if scopeNode != nil && scopeNode.Type() == "template_type" {
				scopeNode = scopeNode.ChildByFieldName("name")
			}
			return nodeText(inner, content), nodeText(scopeNode, content)

		case "identifier", "field_identifier", "destructor_name", "operator_name":
			return nodeText(decl, content), ""

		default:
			return "", ""
		}
	}
	return "", ""
}

// cppCallSite extracts the target of "helper()", "obj.draw()", "p->draw()"
// or "std::printf()".
func cppCallSite(node *sitter.Node, content []byte) *CallSite {
	fnNode := node.ChildByFieldName("function")
	if fnNode != nil && fnNode.Type() == "template_function" {
		fnNode = fnNode.ChildByFieldName("name")
	}
	if fnNode == nil {
		return nil
	}

	switch fnNode.Type() {
	case "identifier":
		return newCallSite(node, nodeText(fnNode, content), "")
	case "field_expression":
		field := fnNode.ChildByFieldName("field")
		argument := fnNode.ChildByFieldName("argument")
		return newCallSite(node, nodeText(field, content), nodeText(argument, content))
	case "qualified_identifier":
		text := nodeText(fnNode, content)
		if i := strings.LastIndex(text, "::"); i >= 0 {
			return newCallSite(node, text[i+2:], text[:i])
		}
		return newCallSite(node, text, "")
	}
	return nil
}

// Skeleton renders C or C++ source with function bodies replaced by "{ ... }".
//
// Includes, macros, prototypes, type definitions, class layouts and
// namespaces are kept in declaration order.
func (p *CppParser) Skeleton(ctx context.Context, content []byte, filePath string) (string, error) {
	return skeletonFile(ctx, p.grammar, content, filePath, p.cfg.maxFileSize, func(node *sitter.Node) string {
		return cppSkeletonItem(node, content)
	})
}

// cppSkeletonItem renders one top-level or namespace-level item without
// leading indentation, or "" for items that are not declarations.
func cppSkeletonItem(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "preproc_include", "preproc_def", "preproc_function_def", "using_declaration",
		"alias_declaration", "namespace_alias_definition", "type_definition", "declaration", "field_declaration":
		return strings.TrimRight(nodeText(node, content), " \t\r\n")

	case "function_definition":
		return replaceBody(node, node.ChildByFieldName("body"), content, bodyPlaceholder)

	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		return cppRecordSkeleton(node, content) + ";"

	case "template_declaration":
		count := int(node.NamedChildCount())
		if count == 0 {
			return ""
		}
		inner := node.NamedChild(count - 1)
		text := cppSkeletonItem(inner, content)
		if text == "" {
			return ""
		}
		return string(content[node.StartByte():inner.StartByte()]) + text

	case "namespace_definition", "linkage_specification":
		body := node.ChildByFieldName("body")
		if body == nil {
			return nodeText(node, content)
		}
		header := headerText(node, body, content)
		if body.Type() != "declaration_list" {
			return header + " " + cppSkeletonItem(body, content)
		}
		var items []string
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			if text := cppSkeletonItem(member, content); text != "" {
				items = append(items, indentOf(member)+text)
			}
		}
		if len(items) == 0 {
			return header + " {}"
		}
		return header + " {\n" + strings.Join(items, "\n\n") + "\n" + indentOf(node) + "}"

	case "preproc_ifdef", "preproc_if":
		// Include guards: keep the condition line and the guarded declarations.
		first, _, _ := strings.Cut(nodeText(node, content), "\n")
		var items []string
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if text := cppSkeletonItem(node.NamedChild(i), content); text != "" {
				items = append(items, text)
			}
		}
		if len(items) == 0 {
			return ""
		}
		return strings.TrimRight(first, " \t\r") + "\n" + strings.Join(items, "\n\n") + "\n#endif"
	}
	return ""
}

// cppRecordSkeleton renders a class, struct or union with member function
// bodies elided. Enums are kept verbatim.
func cppRecordSkeleton(record *sitter.Node, content []byte) string {
	body := record.ChildByFieldName("body")
	if body == nil || record.Type() == "enum_specifier" {
		return nodeText(record, content)
	}

	var sb strings.Builder
	sb.WriteString(headerText(record, body, content))
	sb.WriteString(" {\n")
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member.Type() == "access_specifier" {
			sb.WriteString(indentOf(member) + strings.TrimSuffix(nodeText(member, content), ":") + ":\n")
			continue
		}
		if text := cppSkeletonItem(member, content); text != "" {
			sb.WriteString(indentOf(member) + text + "\n")
		}
	}
	sb.WriteString(indentOf(record) + "}")
	return sb.String()
}

var (
	_ Parser       = (*CppParser)(nil)
	_ Skeletonizer = (*CppParser)(nil)
)
