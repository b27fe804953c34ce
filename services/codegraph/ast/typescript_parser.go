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
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptParser extracts named functions from TypeScript and TSX source.
//
// Description:
//
//	Definitions are recognized exactly as for JavaScript. Interface
//	members, overload signatures and abstract methods have no body and are
//	not functions; they appear only in skeletons.
//
//	".tsx" files use the TSX grammar, everything else the TypeScript
//	grammar. Both are reported as language "typescript".
//
// Thread Safety:
//
//	Safe for concurrent use.
type TypeScriptParser struct {
	core *JavaScriptParser
}

// NewTypeScriptParser creates a TypeScript parser.
func NewTypeScriptParser(opts ...ParserOption) *TypeScriptParser {
	return &TypeScriptParser{core: NewJavaScriptParser(opts...)}
}

// Language returns "typescript".
func (p *TypeScriptParser) Language() string {
	return "typescript"
}

// Extensions returns the TypeScript file extensions.
func (p *TypeScriptParser) Extensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts"}
}

// Parse extracts named functions from TypeScript source.
func (p *TypeScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	return p.core.parse(ctx, typeScriptGrammar(filePath), "typescript", content, filePath)
}

// Skeleton renders TypeScript source with function bodies replaced by "{ ... }".
func (p *TypeScriptParser) Skeleton(ctx context.Context, content []byte, filePath string) (string, error) {
	return p.core.skeleton(ctx, typeScriptGrammar(filePath), content, filePath)
}

func typeScriptGrammar(filePath string) *sitter.Language {
	if strings.EqualFold(filepath.Ext(filePath), ".tsx") {
		return tsx.GetLanguage()
	}
	return typescript.GetLanguage()
}

var (
	_ Parser       = (*TypeScriptParser)(nil)
	_ Skeletonizer = (*TypeScriptParser)(nil)
)
