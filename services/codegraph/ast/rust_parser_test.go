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

const testRustSource = `use std::collections::HashMap;

pub struct Counter {
    value: u32,
}

impl Counter {
    pub fn new() -> Self {
        Counter { value: 0 }
    }

    pub fn tick(&mut self) {
        self.bump(1);
        helper();
    }

    fn bump(&mut self, n: u32) {
        self.value += n;
    }
}

pub trait Named {
    fn name(&self) -> String;

    fn greet(&self) -> String {
        self.name()
    }
}

fn helper() -> usize {
    let map: HashMap<u32, u32> = HashMap::new();
    map.len()
}

fn main() {
    let mut c = Counter::new();
    c.tick();
    helper();
}
`

func TestRustParser_Parse(t *testing.T) {
	parser := NewRustParser()

	result, err := parser.Parse(context.Background(), []byte(testRustSource), "src/main.rs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Language != "rust" {
		t.Errorf("language = %q, want rust", result.Language)
	}

	names := make([]string, 0, len(result.Functions))
	for _, fn := range result.Functions {
		names = append(names, fn.Name)
	}
	if got := strings.Join(names, ","); got != "new,tick,bump,greet,helper,main" {
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
		{"new", "Counter", 8, 10, "", ""},
		{"tick", "Counter", 12, 15, "bump,helper", "self,"},
		{"bump", "Counter", 17, 19, "", ""},
		{"greet", "Named", 25, 27, "name", "self"},
		{"helper", "", 30, 33, "new,len", "HashMap,map"},
		{"main", "", 35, 39, "new,tick,helper", "Counter,c,"},
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

func TestRustTypeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"impl Counter {}", "Counter"},
		{"impl<T> Stack<T> {}", "Stack"},
		{"impl fmt::Display for Counter {}", "Counter"},
	}
	parser := NewRustParser()
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			src := tt.in + "\n\nfn f() {}\n"
			src = strings.Replace(src, "{}", "{\n    fn m(&self) {}\n}", 1)
			result, err := parser.Parse(context.Background(), []byte(src), "lib.rs")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m := findFunction(t, result, "m"); m.Container != tt.want {
				t.Errorf("container = %q, want %q", m.Container, tt.want)
			}
		})
	}
}

func TestRustParser_Skeleton(t *testing.T) {
	parser := NewRustParser()

	skeleton, err := parser.Skeleton(context.Background(), []byte(testRustSource), "src/main.rs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"use std::collections::HashMap;",
		"pub struct Counter {\n    value: u32,\n}",
		"impl Counter {\n    pub fn new() -> Self { ... }\n    pub fn tick(&mut self) { ... }\n",
		"pub trait Named {\n    fn name(&self) -> String;\n    fn greet(&self) -> String { ... }\n}",
		"fn helper() -> usize { ... }",
		"fn main() { ... }",
	} {
		if !strings.Contains(skeleton, want) {
			t.Errorf("skeleton missing %q:\n%s", want, skeleton)
		}
	}
	for _, body := range []string{"c.tick()", "HashMap::new()", "value: 0"} {
		if strings.Contains(skeleton, body) {
			t.Errorf("skeleton must not contain body text %q:\n%s", body, skeleton)
		}
	}
}
