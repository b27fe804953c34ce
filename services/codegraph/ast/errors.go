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
	"errors"
	"fmt"
)

// Sentinel errors for parse failures.
//
// Check with errors.Is; ParseError wraps one of these as its cause when the
// failure has a category.
var (
	// ErrUnsupportedLanguage indicates no parser is registered for a file extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParseFailed indicates tree-sitter produced no usable tree.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidContent indicates content that is not valid UTF-8 text.
	ErrInvalidContent = errors.New("invalid content")

	// ErrFileTooLarge indicates content above the parser's size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// ParseError carries the file and position of a parse failure.
//
// Example:
//
//	_, err := parser.Parse(ctx, content, "main.go")
//	var parseErr *ParseError
//	if errors.As(err, &parseErr) {
//	    fmt.Printf("%s:%d: %s\n", parseErr.FilePath, parseErr.Line, parseErr.Message)
//	}
type ParseError struct {
	FilePath string
	Line     int
	Column   int
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	loc := e.FilePath
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.FilePath, e.Line, e.Column)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", loc, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// WrapParseError attaches a file path to err unless it already carries one.
func WrapParseError(err error, filePath string) error {
	if err == nil {
		return nil
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return err
	}
	return &ParseError{FilePath: filePath, Message: "parse failed", Cause: err}
}
