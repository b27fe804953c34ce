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
	"sort"
	"strings"
	"sync"
)

// Parser extracts functions and call sites from source code.
//
// Limitations:
//
//   - Single-file analysis only; no type information across files
//   - Call targets are syntactic names, not resolved symbols
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use. Each call to Parse
//	creates its own tree-sitter parser.
type Parser interface {
	// Parse extracts functions from content.
	//
	// Parameters:
	//   - ctx: Context for cancellation.
	//   - content: Raw source bytes (must be valid UTF-8).
	//   - filePath: Path used for locations and IDs (relative to project root).
	//
	// Returns:
	//   - *ParseResult: Never nil on success.
	//   - error: Non-nil only for complete failures. Syntax errors are
	//     reported in ParseResult.Errors.
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical lowercase language name.
	Language() string

	// Extensions returns handled extensions including the leading dot.
	Extensions() []string
}

// Skeletonizer renders declaration-only text for a file.
//
// Signatures are retained in declaration order and bodies are replaced by a
// language-specific placeholder.
type Skeletonizer interface {
	Skeleton(ctx context.Context, content []byte, filePath string) (string, error)
}

// ParserRegistry manages parser instances by language and file extension.
//
// Thread Safety:
//
//	Fully thread-safe. Registration takes a write lock, lookups a read lock.
type ParserRegistry struct {
	mu          sync.RWMutex
	byLanguage  map[string]Parser
	byExtension map[string]Parser
}

// NewParserRegistry creates an empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// NewDefaultRegistry returns a registry with every built-in parser
// registered: Go, Python, JavaScript, TypeScript, Java, Rust, C and C++.
//
// Inputs:
//   - maxFileSize: Per-file size limit in bytes. Zero uses DefaultMaxFileSize.
func NewDefaultRegistry(maxFileSize int64) *ParserRegistry {
	opt := WithMaxFileSize(maxFileSize)
	r := NewParserRegistry()
	r.Register(NewGoParser(opt))
	r.Register(NewPythonParser(opt))
	r.Register(NewJavaScriptParser(opt))
	r.Register(NewTypeScriptParser(opt))
	r.Register(NewJavaParser(opt))
	r.Register(NewRustParser(opt))
	r.Register(NewCParser(opt))
	r.Register(NewCppParser(opt))
	return r
}

// Register adds a parser under its Language() name and all its Extensions().
// Existing registrations for the same keys are overwritten.
func (r *ParserRegistry) Register(parser Parser) {
	if parser == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[parser.Language()] = parser
	for _, ext := range parser.Extensions() {
		r.byExtension[ext] = parser
	}
}

// GetByLanguage returns the parser for a language name.
func (r *ParserRegistry) GetByLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byLanguage[language]
	return parser, ok
}

// GetByExtension returns the parser for a file extension such as ".go".
func (r *ParserRegistry) GetByExtension(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byExtension[strings.ToLower(ext)]
	return parser, ok
}

// ForPath returns the parser responsible for a file path.
func (r *ParserRegistry) ForPath(path string) (Parser, bool) {
	return r.GetByExtension(filepath.Ext(path))
}

// Supports reports whether any parser handles the path's extension.
func (r *ParserRegistry) Supports(path string) bool {
	_, ok := r.ForPath(path)
	return ok
}

// Languages returns the registered language names, sorted.
func (r *ParserRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	languages := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}

// Extensions returns the registered extensions, sorted.
func (r *ParserRegistry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	extensions := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}

// ParserOption configures a tree-sitter parser.
type ParserOption func(*parserConfig)

type parserConfig struct {
	maxFileSize int64
}

// WithMaxFileSize sets the maximum accepted content size in bytes.
// Values <= 0 keep DefaultMaxFileSize.
func WithMaxFileSize(bytes int64) ParserOption {
	return func(c *parserConfig) {
		if bytes > 0 {
			c.maxFileSize = bytes
		}
	}
}

func newParserConfig(opts []ParserOption) parserConfig {
	cfg := parserConfig{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
