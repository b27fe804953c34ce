// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snippet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
)

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return lines
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestSlice(t *testing.T) {
	lines := numberedLines(30)

	tests := []struct {
		name             string
		start, end, ctx  int
		wantFrom, wantTo int
	}{
		{"no context", 10, 14, 0, 10, 14},
		{"context inside file", 10, 14, 3, 7, 17},
		{"clamped at top", 2, 4, 5, 1, 9},
		{"clamped at bottom", 27, 30, 5, 22, 30},
		{"clamped both", 1, 30, 10, 1, 30},
		{"negative context", 5, 6, -2, 5, 6},
		{"end beyond file", 28, 40, 0, 28, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Slice(lines, tt.start, tt.end, tt.ctx)
			assert.Equal(t, tt.wantFrom, s.LineStart)
			assert.Equal(t, tt.wantTo, s.LineEnd)
			got := strings.Split(s.Code, "\n")
			assert.Len(t, got, tt.wantTo-tt.wantFrom+1)
			assert.Equal(t, fmt.Sprintf("line %d", tt.wantFrom), got[0])
		})
	}

	t.Run("L+2N lines away from edges", func(t *testing.T) {
		for l := 1; l <= 5; l++ {
			for n := 0; n <= 4; n++ {
				s := Slice(lines, 12, 12+l-1, n)
				assert.Equal(t, l+2*n, s.LineEnd-s.LineStart+1, "L=%d N=%d", l, n)
			}
		}
	})

	t.Run("empty file", func(t *testing.T) {
		s := Slice(nil, 1, 3, 2)
		assert.Empty(t, s.Code)
		assert.Zero(t, s.LineStart)
		assert.Zero(t, s.LineEnd)
	})
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{}, SplitLines(nil))
	assert.Equal(t, []string{"a", "b"}, SplitLines([]byte("a\nb\n")))
	assert.Equal(t, []string{"a", "b"}, SplitLines([]byte("a\r\nb")))
	assert.Equal(t, []string{"a", ""}, SplitLines([]byte("a\n\n")))
}

func TestCachedReader(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.py", "one\ntwo\n")
	r := NewCachedReader(2, 0)
	ctx := context.Background()

	c, err := r.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, c.Lines)

	_, err = r.Read(ctx, p)
	require.NoError(t, err)
	hits, misses, _ := r.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	// A changed file is a different cache key.
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.WriteFile(p, []byte("one\ntwo\nthree\n"), 0o644))
	require.NoError(t, os.Chtimes(p, later, later))
	c, err = r.Read(ctx, p)
	require.NoError(t, err)
	assert.Len(t, c.Lines, 3)

	// Capacity is enforced.
	q := writeFile(t, dir, "b.py", "b\n")
	_, err = r.Read(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	_, _, evictions := r.Stats()
	assert.Equal(t, int64(1), evictions)
}

func TestCachedReader_Errors(t *testing.T) {
	dir := t.TempDir()
	r := NewCachedReader(4, 8)
	ctx := context.Background()

	_, err := r.Read(ctx, filepath.Join(dir, "missing.go"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = r.Read(ctx, dir)
	assert.ErrorIs(t, err, ErrNotRegularFile)

	big := writeFile(t, dir, "big.go", "package main\n")
	_, err = r.Read(ctx, big)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// A regular file used as a directory fails stat with ENOTDIR.
	_, err = r.Read(ctx, filepath.Join(big, "inner.go"))
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.NotErrorIs(t, err, ErrFileNotFound)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Read(canceled, big)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCachedReader_Concurrent(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.go", "package a\n\nfunc A() {}\n")
	r := NewCachedReader(0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := r.Read(context.Background(), p)
			if assert.NoError(t, err) {
				assert.Len(t, c.Lines, 3)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.Len())
}

func TestExtractor_SnippetAndFind(t *testing.T) {
	dir := t.TempDir()
	src := "package main\n\nimport \"fmt\"\n\nfunc main() {\n\thelper()\n\tfmt.Println(\"done\")\n}\n\nfunc helper() {}\n"
	p := writeFile(t, dir, "main.go", src)
	e := NewExtractor(NewCachedReader(0, 0), ast.NewDefaultRegistry(0), 2)
	ctx := context.Background()

	fn, lang, err := e.FindFunction(ctx, p, "main.go", "main")
	require.NoError(t, err)
	assert.Equal(t, "go", lang)
	assert.Equal(t, 5, fn.StartLine)
	assert.Equal(t, 8, fn.EndLine)

	s, err := e.Snippet(ctx, p, fn.StartLine, fn.EndLine, 0)
	require.NoError(t, err)
	assert.Equal(t, "func main() {\n\thelper()\n\tfmt.Println(\"done\")\n}", s.Code)

	s, err = e.Snippet(ctx, p, fn.StartLine, fn.EndLine, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, s.LineStart)
	assert.Equal(t, 10, s.LineEnd)

	whole, err := e.WholeFile(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, whole.LineStart)
	assert.Equal(t, 10, whole.LineEnd)

	_, _, err = e.FindFunction(ctx, p, "main.go", "absent")
	assert.ErrorIs(t, err, ErrFunctionNotFound)

	txt := writeFile(t, dir, "notes.txt", "hello\n")
	_, _, err = e.FindFunction(ctx, txt, "notes.txt", "x")
	assert.ErrorIs(t, err, ast.ErrUnsupportedLanguage)
	assert.Equal(t, "go", e.Language(p))
	assert.Empty(t, e.Language(txt))
}

func TestExtractor_Skeletons(t *testing.T) {
	dir := t.TempDir()
	goFile := writeFile(t, dir, "main.go", "package main\n\nfunc main() {\n\tprintln(\"x\")\n}\n")
	pyFile := writeFile(t, dir, "util.py", "def util():\n    return 1\n")
	badFile := writeFile(t, dir, "bad.py", "def f():\n    return '\xff'\n")
	txtFile := writeFile(t, dir, "notes.txt", "hello\n")

	e := NewExtractor(NewCachedReader(0, 0), ast.NewDefaultRegistry(0), 2)
	results := e.Skeletons(context.Background(), []SkeletonRequest{
		{DisplayPath: "main.go", AbsPath: goFile},
		{DisplayPath: "missing.go", AbsPath: filepath.Join(dir, "missing.go")},
		{DisplayPath: "notes.txt", AbsPath: txtFile},
		{DisplayPath: "bad.py", AbsPath: badFile},
		{DisplayPath: "util.py", AbsPath: pyFile},
	})
	require.Len(t, results, 5)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "go", results[0].Language)
	assert.Contains(t, results[0].Skeleton, "func main() { ... }")
	assert.NotContains(t, results[0].Skeleton, "println")

	assert.ErrorIs(t, results[1].Err, ErrFileNotFound)
	assert.ErrorIs(t, results[2].Err, ast.ErrUnsupportedLanguage)
	assert.ErrorIs(t, results[3].Err, ast.ErrInvalidContent)

	assert.NoError(t, results[4].Err)
	assert.Equal(t, "util.py", results[4].FilePath)
	assert.Contains(t, results[4].Skeleton, "def util():\n    ...")
}
