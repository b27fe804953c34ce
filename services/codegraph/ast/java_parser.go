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
	"github.com/smacker/go-tree-sitter/java"
)

// JavaParser extracts methods and constructors from Java source.
//
// Description:
//
//	Methods and constructors with a body are functions. Their container is
//	the enclosing class, interface, enum or record. Abstract and interface
//	methods have no body and appear only in skeletons. Lambdas are not
//	definitions; their calls belong to the enclosing method. Methods of an
//	anonymous class are recorded with the enclosing method as container.
//
// Thread Safety:
//
//	Safe for concurrent use.
type JavaParser struct {
	cfg parserConfig
}

var javaCallTypes = map[string]bool{"method_invocation": true}

// javaTypeDecls are the declarations that open a member scope.
var javaTypeDecls = map[string]bool{
	"class_declaration":           true,
	"interface_declaration":       true,
	"enum_declaration":            true,
	"record_declaration":          true,
	"annotation_type_declaration": true,
}

// NewJavaParser creates a Java parser.
func NewJavaParser(opts ...ParserOption) *JavaParser {
	return &JavaParser{cfg: newParserConfig(opts)}
}

// Language returns "java".
func (p *JavaParser) Language() string {
	return "java"
}

// Extensions returns the Java file extensions.
func (p *JavaParser) Extensions() []string {
	return []string{".java"}
}

// Parse extracts methods and constructors from Java source.
func (p *JavaParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	return parseFile(ctx, java.GetLanguage(), "java", content, filePath, p.cfg.maxFileSize,
		func(ctx context.Context, root *sitter.Node, result *ParseResult) {
			p.walk(ctx, root, content, filePath, "", result)
		})
}

func isJavaMethod(n *sitter.Node) bool {
	switch n.Type() {
	case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
		return true
	}
	return false
}

func javaStop(n *sitter.Node) bool {
	return isJavaMethod(n) || javaTypeDecls[n.Type()]
}

// walk records methods below node. container names the enclosing type or method.
func (p *JavaParser) walk(ctx context.Context, node *sitter.Node, content []byte, filePath, container string, result *ParseResult) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)

		switch {
		case javaTypeDecls[child.Type()]:
			name := nodeText(child.ChildByFieldName("name"), content)
			if body := child.ChildByFieldName("body"); body != nil {
				p.walk(ctx, body, content, filePath, name, result)
			}

		case isJavaMethod(child):
			p.record(ctx, child, content, filePath, container, result)

		default:
			p.walk(ctx, child, content, filePath, container, result)
		}
	}
}

func (p *JavaParser) record(ctx context.Context, node *sitter.Node, content []byte, filePath, container string, result *ParseResult) {
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
		Calls:     collectCalls(ctx, body, content, filePath, javaCallTypes, javaStop, javaCallSite),
	})
	p.walk(ctx, body, content, filePath, name, result)
}

// javaCallSite extracts the target of "helper()" or "System.out.println()".
func javaCallSite(node *sitter.Node, content []byte) *CallSite {
	name := node.ChildByFieldName("name")
	if name == nil {
		return nil
	}
	return newCallSite(node, nodeText(name, content), nodeText(node.ChildByFieldName("object"), content))
}

// Skeleton renders Java source with method bodies replaced by "{ ... }".
//
// The package clause, imports, type headers, fields and method headers are
// kept; nested types are rendered recursively.
func (p *JavaParser) Skeleton(ctx context.Context, content []byte, filePath string) (string, error) {
	return skeletonFile(ctx, java.GetLanguage(), content, filePath, p.cfg.maxFileSize, func(node *sitter.Node) string {
		switch {
		case node.Type() == "package_declaration", node.Type() == "import_declaration":
			return nodeText(node, content)
		case javaTypeDecls[node.Type()]:
			return javaTypeSkeleton(node, content)
		}
		return ""
	})
}

// javaTypeSkeleton renders a type declaration. Members keep their source
// indentation and the closing brace is aligned with decl.
func javaTypeSkeleton(decl *sitter.Node, content []byte) string {
	body := decl.ChildByFieldName("body")
	if body == nil {
		return nodeText(decl, content)
	}

	var sb strings.Builder
	sb.WriteString(headerText(decl, body, content))
	sb.WriteString(" {\n")
	writeJavaMembers(&sb, body, content)
	sb.WriteString(indentOf(decl) + "}")
	return sb.String()
}

func writeJavaMembers(sb *strings.Builder, body *sitter.Node, content []byte) {
	var constants []string
	constIndent := ""
	for i := 0; i < int(body.NamedChildCount()); i++ {
		if member := body.NamedChild(i); member.Type() == "enum_constant" {
			if len(constants) == 0 {
				constIndent = indentOf(member)
			}
			constants = append(constants, nodeText(member.ChildByFieldName("name"), content))
		}
	}
	if len(constants) > 0 {
		sb.WriteString(constIndent + strings.Join(constants, ", ") + ";\n")
	}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		indent := indentOf(member)

		switch t := member.Type(); {
		case isJavaMethod(member):
			sb.WriteString(indent + replaceBody(member, member.ChildByFieldName("body"), content, bodyPlaceholder) + "\n")
		case t == "field_declaration", t == "constant_declaration":
			sb.WriteString(indent + nodeText(member, content) + "\n")
		case javaTypeDecls[t]:
			sb.WriteString(indent + javaTypeSkeleton(member, content) + "\n")
		case t == "enum_body_declarations":
			writeJavaMembers(sb, member, content)
		}
	}
}

var (
	_ Parser       = (*JavaParser)(nil)
	_ Skeletonizer = (*JavaParser)(nil)
)
