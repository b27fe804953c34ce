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
	"testing"
)

const testTSModule = `import { log } from "./log";

interface Shape {
  area(): number;
}

export function main(): void {
  const s = new Square(2);
  helper(s.area());
}

function helper(value: number): void {
  log(value);
}

export class Square implements Shape {
  constructor(private side: number) {}

  area(): number {
    return this.square(this.side);
  }

  private square(n: number): number {
    return n * n;
  }
}

const format = (n: number): string => {
  return n.toFixed(2);
};
`

const testTSXComponent = `export function App() {
  return <div>{render()}</div>;
}

function render() {
  return null;
}
`

func TestTypeScriptParser_Parse(t *testing.T) {
	parser := NewTypeScriptParser()

	result, err := parser.Parse(context.Background(), []byte(testTSModule), "src/app.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Language != "typescript" {
		t.Errorf("language = %q, want typescript", result.Language)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected syntax errors: %v", result.Errors)
	}

	names := make([]string, 0, len(result.Functions))
	for _, fn := range result.Functions {
		names = append(names, fn.Name)
	}
	if got := strings.Join(names, ","); got != "main,helper,constructor,area,square,format" {
		t.Fatalf("functions = %q", got)
	}

	tests := []struct {
		name      string
		container string
		start     int
		end       int
		calls     string
	}{
		{"main", "", 7, 10, "helper,area"},
		{"helper", "", 12, 14, "log"},
		{"area", "Square", 19, 21, "square"},
		{"square", "Square", 23, 25, ""},
		{"format", "", 28, 30, "toFixed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := findFunction(t, result, tt.name)
			if fn.Container != tt.container {
				t.Errorf("container = %q, want %q", fn.Container, tt.container)
			}
			if fn.StartLine != tt.start || fn.EndLine != tt.end {
				t.Errorf("lines = %d-%d, want %d-%d", fn.StartLine, fn.EndLine, tt.start, tt.end)
			}
			if got := strings.Join(callTargets(fn.Calls), ","); got != tt.calls {
				t.Errorf("calls = %q, want %q", got, tt.calls)
			}
		})
	}

	area := findFunction(t, result, "area")
	if area.Calls[0].Receiver != "this" {
		t.Errorf("area call receiver = %q, want this", area.Calls[0].Receiver)
	}
}

func TestTypeScriptParser_Parse_TSX(t *testing.T) {
	parser := NewTypeScriptParser()

	result, err := parser.Parse(context.Background(), []byte(testTSXComponent), "web/App.tsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Errorf("JSX must parse cleanly with the TSX grammar: %v", result.Errors)
	}

	app := findFunction(t, result, "App")
	if got := strings.Join(callTargets(app.Calls), ","); got != "render" {
		t.Errorf("App calls = %q, want render", got)
	}
}

func TestTypeScriptParser_Skeleton(t *testing.T) {
	parser := NewTypeScriptParser()

	skeleton, err := parser.Skeleton(context.Background(), []byte(testTSModule), "src/app.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		`import { log } from "./log";`,
		"interface Shape {\n  area(): number;\n}",
		"export function main(): void { ... }",
		"export class Square implements Shape {",
		"  constructor(private side: number) { ... }",
		"  private square(n: number): number { ... }",
		"const format = (n: number): string => { ... }",
	} {
		if !strings.Contains(skeleton, want) {
			t.Errorf("skeleton missing %q:\n%s", want, skeleton)
		}
	}
	for _, body := range []string{"n * n", "toFixed", "new Square"} {
		if strings.Contains(skeleton, body) {
			t.Errorf("skeleton must not contain body text %q:\n%s", body, skeleton)
		}
	}
}
