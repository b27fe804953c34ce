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
	"strings"
	"testing"
)

func TestParserRegistry_Lookup(t *testing.T) {
	registry := NewDefaultRegistry(0)

	tests := []struct {
		path     string
		language string
		found    bool
	}{
		{"cmd/main.go", "go", true},
		{"pkg/app.py", "python", true},
		{"typings/app.pyi", "python", true},
		{"web/index.js", "javascript", true},
		{"web/Component.JSX", "javascript", true},
		{"web/app.ts", "typescript", true},
		{"web/App.tsx", "typescript", true},
		{"src/Main.java", "java", true},
		{"src/lib.rs", "rust", true},
		{"native/util.c", "c", true},
		{"native/util.h", "cpp", true},
		{"native/widget.cpp", "cpp", true},
		{"native/widget.CC", "cpp", true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			parser, ok := registry.ForPath(tt.path)
			if ok != tt.found {
				t.Fatalf("ForPath(%q) found = %v, want %v", tt.path, ok, tt.found)
			}
			if ok && parser.Language() != tt.language {
				t.Errorf("language = %q, want %q", parser.Language(), tt.language)
			}
		})
	}
}

func TestParserRegistry_Languages(t *testing.T) {
	registry := NewDefaultRegistry(0)

	want := []string{"c", "cpp", "go", "java", "javascript", "python", "rust", "typescript"}
	if got := registry.Languages(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("languages = %v, want %v", got, want)
	}
	if _, ok := registry.GetByLanguage("ruby"); ok {
		t.Error("ruby must not be registered")
	}

	// Every built-in parser can also render skeletons.
	for _, lang := range want {
		parser, _ := registry.GetByLanguage(lang)
		if _, ok := parser.(Skeletonizer); !ok {
			t.Errorf("%s parser does not implement Skeletonizer", lang)
		}
	}
}

func TestParseResult_Validate(t *testing.T) {
	tests := []struct {
		name    string
		result  ParseResult
		wantErr bool
	}{
		{"valid", ParseResult{FilePath: "a.go", Language: "go", Functions: []FunctionDecl{{Name: "f", StartLine: 1, EndLine: 2}}}, false},
		{"empty path", ParseResult{Language: "go"}, true},
		{"traversal", ParseResult{FilePath: "../a.go", Language: "go"}, true},
		{"bad lines", ParseResult{FilePath: "a.go", Language: "go", Functions: []FunctionDecl{{Name: "f", StartLine: 3, EndLine: 2}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWrapParseError(t *testing.T) {
	if WrapParseError(nil, "a.go") != nil {
		t.Error("nil must stay nil")
	}

	cause := errors.New("boom")
	err := WrapParseError(cause, "a.go")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) || parseErr.FilePath != "a.go" {
		t.Fatalf("expected ParseError for a.go, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause must be preserved")
	}
	if WrapParseError(err, "b.go") != err {
		t.Error("existing ParseError must not be wrapped twice")
	}
}

func TestGenerateID(t *testing.T) {
	if got := GenerateID("pkg/a.go", 12, "Run"); got != "pkg/a.go:12:Run" {
		t.Errorf("GenerateID = %q", got)
	}
}
