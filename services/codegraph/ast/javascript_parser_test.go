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

const testJSModule = `import { log } from "./log.js";

function main() {
  const items = load();
  items.forEach((item) => render(item));
}

const load = () => {
  return fetchAll();
};

class View {
  draw() {
    this.clear();
  }
}
`

func TestJavaScriptParser_Parse(t *testing.T) {
	parser := NewJavaScriptParser()

	result, err := parser.Parse(context.Background(), []byte(testJSModule), "app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := make([]string, 0, len(result.Functions))
	for _, fn := range result.Functions {
		names = append(names, fn.Name)
	}
	if got := strings.Join(names, ","); got != "main,load,draw" {
		t.Fatalf("functions = %q, want main,load,draw", got)
	}

	main := findFunction(t, result, "main")
	if got := strings.Join(callTargets(main.Calls), ","); got != "load,forEach,render" {
		t.Errorf("main calls = %q, want load,forEach,render", got)
	}

	load := findFunction(t, result, "load")
	if load.StartLine != 8 || load.EndLine != 10 {
		t.Errorf("load lines = %d-%d, want 8-10", load.StartLine, load.EndLine)
	}

	draw := findFunction(t, result, "draw")
	if draw.Container != "View" {
		t.Errorf("draw container = %q, want View", draw.Container)
	}
}

func TestJavaScriptParser_Skeleton(t *testing.T) {
	parser := NewJavaScriptParser()

	skeleton, err := parser.Skeleton(context.Background(), []byte(testJSModule), "app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		`import { log } from "./log.js";`,
		"function main() { ... }",
		"const load = () => { ... }",
		"class View {\n  draw() { ... }\n}",
	} {
		if !strings.Contains(skeleton, want) {
			t.Errorf("skeleton missing %q:\n%s", want, skeleton)
		}
	}
	if strings.Contains(skeleton, "fetchAll") {
		t.Errorf("skeleton must not contain bodies:\n%s", skeleton)
	}
}
