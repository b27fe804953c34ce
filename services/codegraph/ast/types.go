// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts function definitions and call sites from source files.
//
// Parsers are built on tree-sitter and produce a language-neutral
// ParseResult. The Project Index consumes these results to build the call
// graph; the skeleton renderer reuses the same syntax trees to emit
// declaration-only text.
//
// Design principles:
//   - Line numbers are 1-based and inclusive, matching editor conventions
//   - Call sites are reported in source order
//   - Syntax errors never abort a parse; they are reported in ParseResult.Errors
package ast

import (
	"fmt"
	"strings"
)

// Limits applied by every parser.
const (
	// DefaultMaxFileSize is the largest file a parser accepts (10 MiB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// WarnFileSize triggers a warning log for large inputs (1 MiB).
	WarnFileSize = 1024 * 1024

	// MaxCallSitesPerFunction caps the call sites recorded for one function.
	MaxCallSitesPerFunction = 1000

	// MaxCallExpressionDepth caps syntax tree depth during call extraction.
	MaxCallExpressionDepth = 256
)

// FunctionDecl is a function or method definition extracted from a file.
type FunctionDecl struct {
	// Name is the bare function name ("Run", "__init__", "handleClick").
	Name string `json:"name"`

	// Container is the receiver type (Go) or enclosing class (Python, JS).
	// Empty for free functions.
	Container string `json:"container,omitempty"`

	// Signature is the declaration header with the body removed.
	Signature string `json:"signature"`

	// StartLine is the 1-based first line of the definition.
	StartLine int `json:"start_line"`

	// EndLine is the 1-based last line of the definition (inclusive).
	EndLine int `json:"end_line"`

	// Calls are the call sites inside the body, in source order.
	// Calls inside nested named functions belong to the nested function.
	Calls []CallSite `json:"calls,omitempty"`
}

// CallSite is one call expression inside a function body.
type CallSite struct {
	// Target is the called name without qualifier ("Println", "helper").
	Target string `json:"target"`

	// Receiver is the qualifier text for selector/attribute calls ("fmt", "self").
	Receiver string `json:"receiver,omitempty"`

	// Line is the 1-based line of the call expression.
	Line int `json:"line"`

	// Column is the 0-based column of the call expression.
	Column int `json:"column"`
}

// ParseResult holds everything extracted from one file.
type ParseResult struct {
	// FilePath is the path the caller passed to Parse.
	FilePath string `json:"file_path"`

	// Language is the canonical language tag ("go", "python", "javascript").
	Language string `json:"language"`

	// Functions are ordered by StartLine.
	Functions []FunctionDecl `json:"functions"`

	// Errors are non-fatal problems, such as syntax errors in part of the file.
	Errors []string `json:"errors,omitempty"`
}

// GenerateID builds the function identifier used throughout the index.
//
// The identifier doubles as the qualified disambiguator: two functions with
// the same name differ by file path or start line.
func GenerateID(filePath string, startLine int, name string) string {
	return fmt.Sprintf("%s:%d:%s", filePath, startLine, name)
}

// ValidationError describes an invalid ParseResult.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks structural invariants of the result.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return ValidationError{Field: "FilePath", Message: "must not be empty"}
	}
	if strings.Contains(r.FilePath, "..") {
		return ValidationError{Field: "FilePath", Message: "must not contain path traversal (..)"}
	}
	if r.Language == "" {
		return ValidationError{Field: "Language", Message: "must not be empty"}
	}

	for i, fn := range r.Functions {
		if fn.Name == "" {
			return ValidationError{Field: fmt.Sprintf("Functions[%d].Name", i), Message: "must not be empty"}
		}
		if fn.StartLine < 1 {
			return ValidationError{Field: fmt.Sprintf("Functions[%d].StartLine", i), Message: "must be >= 1"}
		}
		if fn.EndLine < fn.StartLine {
			return ValidationError{Field: fmt.Sprintf("Functions[%d].EndLine", i), Message: "must be >= StartLine"}
		}
	}

	return nil
}
