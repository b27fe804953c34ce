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

const testJavaSource = `package demo;

import java.util.List;

public class Main {
    private int count;

    public static void main(String[] args) {
        helper();
        System.out.println("done");
    }

    static void helper() {
        new Main().run(List.of());
    }

    public Main() {
        this.count = 0;
    }

    void run(List<String> items) {
        items.forEach(item -> process(item));
    }

    private void process(String item) {
    }
}

interface Task {
    void execute();
}

enum Level {
    LOW, HIGH;

    boolean isHigh() {
        return this == HIGH;
    }
}
`

func TestJavaParser_Parse(t *testing.T) {
	parser := NewJavaParser()

	result, err := parser.Parse(context.Background(), []byte(testJavaSource), "src/demo/Main.java")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Language != "java" {
		t.Errorf("language = %q, want java", result.Language)
	}

	names := make([]string, 0, len(result.Functions))
	for _, fn := range result.Functions {
		names = append(names, fn.Name)
	}
	if got := strings.Join(names, ","); got != "main,helper,Main,run,process,isHigh" {
		t.Fatalf("functions = %q", got)
	}

	tests := []struct {
		name      string
		container string
		start     int
		end       int
		calls     string
	}{
		{"main", "Main", 8, 11, "helper,println"},
		{"helper", "Main", 13, 15, "run,of"},
		{"Main", "Main", 17, 19, ""},
		{"run", "Main", 21, 23, "forEach,process"},
		{"process", "Main", 25, 26, ""},
		{"isHigh", "Level", 36, 38, ""},
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

	main := findFunction(t, result, "main")
	if main.Calls[1].Receiver != "System.out" {
		t.Errorf("println receiver = %q, want System.out", main.Calls[1].Receiver)
	}
	if main.Signature != "public static void main(String[] args)" {
		t.Errorf("signature = %q", main.Signature)
	}
}

func TestJavaParser_Skeleton(t *testing.T) {
	parser := NewJavaParser()

	skeleton, err := parser.Skeleton(context.Background(), []byte(testJavaSource), "Main.java")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"package demo;",
		"import java.util.List;",
		"public class Main {\n    private int count;\n    public static void main(String[] args) { ... }\n",
		"    public Main() { ... }\n",
		"    private void process(String item) { ... }\n}",
		"interface Task {\n    void execute();\n}",
		"enum Level {\n    LOW, HIGH;\n    boolean isHigh() { ... }\n}",
	} {
		if !strings.Contains(skeleton, want) {
			t.Errorf("skeleton missing %q:\n%s", want, skeleton)
		}
	}
	if strings.Contains(skeleton, "println") {
		t.Errorf("skeleton must not contain bodies:\n%s", skeleton)
	}
}
