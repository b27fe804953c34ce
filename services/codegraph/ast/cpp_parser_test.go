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

const testCppSource = `#include <cstdio>

namespace app {

class Widget {
public:
    void draw() {
        render(1);
    }
    int size() const;
};

int Widget::size() const {
    return compute(this->w);
}

}  // namespace app

static int compute(int v) {
    return v * 2;
}

void render(int n) {
    std::printf("%d\n", compute(n));
}

int main(void) {
    app::Widget w;
    w.draw();
    return 0;
}
`

const testCSource = `#include <stdio.h>

struct point {
    int x;
};

static int square(int v) {
    return v * v;
}

int main(void) {
    struct point p = {3};
    printf("%d\n", square(p.x));
    return 0;
}
`

func TestCppParser_Parse(t *testing.T) {
	parser := NewCppParser()

	result, err := parser.Parse(context.Background(), []byte(testCppSource), "src/widget.cpp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Language != "cpp" {
		t.Errorf("language = %q, want cpp", result.Language)
	}

	names := make([]string, 0, len(result.Functions))
	for _, fn := range result.Functions {
		names = append(names, fn.Name)
	}
	if got := strings.Join(names, ","); got != "draw,size,compute,render,main" {
		t.Fatalf("functions = %q", got)
	}

	tests := []struct {
		name      string
		container string
		start     int
		end       int
		calls     string
		receivers string
	}{
		{"draw", "Widget", 7, 9, "render", ""},
		{"size", "Widget", 13, 15, "compute", ""},
		{"compute", "", 19, 21, "", ""},
		{"render", "", 23, 25, "printf,compute", "std,"},
		{"main", "", 27, 31, "draw", "w"},
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
			receivers := make([]string, 0, len(fn.Calls))
			for _, c := range fn.Calls {
				receivers = append(receivers, c.Receiver)
			}
			if got := strings.Join(receivers, ","); got != tt.receivers {
				t.Errorf("receivers = %q, want %q", got, tt.receivers)
			}
		})
	}
}

func TestCParser_Parse(t *testing.T) {
	parser := NewCParser()

	result, err := parser.Parse(context.Background(), []byte(testCSource), "native/point.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Language != "c" {
		t.Errorf("language = %q, want c", result.Language)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected syntax errors: %v", result.Errors)
	}

	main := findFunction(t, result, "main")
	if main.StartLine != 11 || main.EndLine != 15 {
		t.Errorf("main lines = %d-%d, want 11-15", main.StartLine, main.EndLine)
	}
	if got := strings.Join(callTargets(main.Calls), ","); got != "printf,square" {
		t.Errorf("main calls = %q, want printf,square", got)
	}
	if square := findFunction(t, result, "square"); square.Signature != "static int square(int v)" {
		t.Errorf("square signature = %q", square.Signature)
	}
}

func TestCppParser_Skeleton(t *testing.T) {
	parser := NewCppParser()

	skeleton, err := parser.Skeleton(context.Background(), []byte(testCppSource), "src/widget.cpp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"#include <cstdio>",
		"namespace app {",
		"class Widget {",
		"    void draw() { ... }",
		"    int size() const;",
		"int Widget::size() const { ... }",
		"static int compute(int v) { ... }",
		"int main(void) { ... }",
	} {
		if !strings.Contains(skeleton, want) {
			t.Errorf("skeleton missing %q:\n%s", want, skeleton)
		}
	}
	for _, body := range []string{"printf", "render(1)", "w.draw()"} {
		if strings.Contains(skeleton, body) {
			t.Errorf("skeleton must not contain body text %q:\n%s", body, skeleton)
		}
	}
}

func TestCParser_Skeleton(t *testing.T) {
	parser := NewCParser()

	skeleton, err := parser.Skeleton(context.Background(), []byte(testCSource), "point.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"#include <stdio.h>",
		"struct point {\n    int x;\n};",
		"static int square(int v) { ... }",
	} {
		if !strings.Contains(skeleton, want) {
			t.Errorf("skeleton missing %q:\n%s", want, skeleton)
		}
	}
}
