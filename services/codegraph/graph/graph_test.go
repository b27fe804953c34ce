// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

type testCall struct {
	from, to string
	status   EdgeStatus
}

// buildGeneration creates a generation where every function lives in its
// own line of one file. Function ids are "app.go:<line>:<name>".
func buildGeneration(t *testing.T, names []string, calls []testCall) *Generation {
	t.Helper()

	b := NewBuilder(Metadata{ProjectID: "p1", RootDir: "/tmp/p1"})
	require.NoError(t, b.AddFile(File{Path: "app.go", Language: "go"}))

	ids := make(map[string]string, len(names))
	for i, name := range names {
		fn := &Function{
			ID:        fmt.Sprintf("app.go:%d:%s", i+1, name),
			Name:      name,
			FilePath:  "app.go",
			LineStart: i + 1,
			LineEnd:   i + 1,
			Language:  "go",
		}
		require.NoError(t, b.AddFunction(fn))
		ids[name] = fn.ID
	}

	for i, c := range calls {
		edge := CallEdge{
			CallerID:   ids[c.from],
			CalleeName: c.to,
			Line:       i + 1,
			Order:      i,
			Status:     c.status,
		}
		if edge.Status == "" {
			edge.Status = EdgeResolved
		}
		if edge.Status == EdgeResolved {
			edge.CalleeID = ids[c.to]
		}
		require.NoError(t, b.AddCall(edge))
	}

	g, err := b.Freeze()
	require.NoError(t, err)
	return g
}

func id(g *Generation, name string) string {
	fn, _, err := g.ResolveFunction(name, "")
	if err != nil {
		panic(err)
	}
	return fn.ID
}

// maxNodeDepth walks the tree and returns the deepest node depth.
func maxNodeDepth(n *ExpansionNode) int {
	deepest := n.Depth
	for _, c := range n.Children {
		if d := maxNodeDepth(c); d > deepest {
			deepest = d
		}
	}
	return deepest
}

func countNodes(n *ExpansionNode) int {
	total := 1
	for _, c := range n.Children {
		total += countNodes(c)
	}
	return total
}

// =============================================================================
// Builder
// =============================================================================

func TestBuilder_Validation(t *testing.T) {
	b := NewBuilder(Metadata{ProjectID: "p"})
	require.NoError(t, b.AddFile(File{Path: "a.go", Language: "go"}))

	t.Run("duplicate file", func(t *testing.T) {
		assert.ErrorIs(t, b.AddFile(File{Path: "a.go"}), ErrDuplicateFile)
	})

	t.Run("function in unknown file", func(t *testing.T) {
		err := b.AddFunction(&Function{ID: "b.go:1:f", Name: "f", FilePath: "b.go", LineStart: 1, LineEnd: 1})
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("bad line range", func(t *testing.T) {
		err := b.AddFunction(&Function{ID: "a.go:5:f", Name: "f", FilePath: "a.go", LineStart: 5, LineEnd: 4})
		assert.ErrorIs(t, err, ErrInvalidFunction)
	})

	t.Run("duplicate function", func(t *testing.T) {
		fn := &Function{ID: "a.go:1:f", Name: "f", FilePath: "a.go", LineStart: 1, LineEnd: 2}
		require.NoError(t, b.AddFunction(fn))
		assert.ErrorIs(t, b.AddFunction(fn), ErrDuplicateFunction)
	})

	t.Run("dangling resolved edge", func(t *testing.T) {
		err := b.AddCall(CallEdge{CallerID: "a.go:1:f", CalleeID: "a.go:9:g", CalleeName: "g", Status: EdgeResolved})
		assert.ErrorIs(t, err, ErrInvalidEdge)
		assert.ErrorIs(t, err, ErrFunctionNotFound)
	})

	t.Run("unresolved edge with callee id", func(t *testing.T) {
		err := b.AddCall(CallEdge{CallerID: "a.go:1:f", CalleeID: "a.go:1:f", CalleeName: "f", Status: EdgeUnresolved})
		assert.ErrorIs(t, err, ErrInvalidEdge)
	})

	t.Run("unknown status", func(t *testing.T) {
		err := b.AddCall(CallEdge{CallerID: "a.go:1:f", CalleeName: "x", Status: "maybe"})
		assert.ErrorIs(t, err, ErrInvalidEdge)
	})

	_, err := b.Freeze()
	require.NoError(t, err)

	_, err = b.Freeze()
	assert.ErrorIs(t, err, ErrGenerationFrozen)
	assert.ErrorIs(t, b.AddFile(File{Path: "c.go"}), ErrGenerationFrozen)
}

func TestBuilder_Limits(t *testing.T) {
	b := NewBuilder(Metadata{}, WithMaxFunctions(1), WithMaxEdges(1))
	require.NoError(t, b.AddFile(File{Path: "a.go"}))
	require.NoError(t, b.AddFunction(&Function{ID: "a.go:1:f", Name: "f", FilePath: "a.go", LineStart: 1, LineEnd: 1}))

	err := b.AddFunction(&Function{ID: "a.go:2:g", Name: "g", FilePath: "a.go", LineStart: 2, LineEnd: 2})
	assert.ErrorIs(t, err, ErrMaxFunctionsExceeded)

	require.NoError(t, b.AddCall(CallEdge{CallerID: "a.go:1:f", CalleeName: "x", Status: EdgeUnresolved}))
	err = b.AddCall(CallEdge{CallerID: "a.go:1:f", CalleeName: "y", Status: EdgeUnresolved})
	assert.ErrorIs(t, err, ErrMaxEdgesExceeded)
}

func TestGeneration_Counts(t *testing.T) {
	g := buildGeneration(t, []string{"main", "helper"}, []testCall{
		{from: "main", to: "helper"},
		{from: "main", to: "helper"},
		{from: "main", to: "Println", status: EdgeUnresolved},
	})

	assert.Equal(t, 2, g.TotalFunctions())
	assert.Equal(t, 2, g.TotalRelations())
	assert.Equal(t, 1, g.UnresolvedCalls())
	assert.Equal(t, 1, g.TotalFiles())
	assert.NotEmpty(t, g.ID())
	assert.False(t, g.BuiltAt().IsZero())
}

// =============================================================================
// Call Graph Queries
// =============================================================================

func TestGeneration_CalleesOf(t *testing.T) {
	g := buildGeneration(t, []string{"main", "a", "b"}, []testCall{
		{from: "main", to: "b"},
		{from: "main", to: "fmt", status: EdgeUnresolved},
		{from: "main", to: "a"},
		{from: "main", to: "b"},
	})

	callees, err := g.CalleesOf(id(g, "main"))
	require.NoError(t, err)
	assert.Equal(t, []string{id(g, "b"), id(g, "a")}, callees)

	calls, err := g.CallsOf(id(g, "main"))
	require.NoError(t, err)
	require.Len(t, calls, 4)
	assert.Equal(t, EdgeUnresolved, calls[1].Status)
	assert.Empty(t, calls[1].CalleeID)

	callers, err := g.CallersOf(id(g, "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{id(g, "main")}, callers)

	leaf, err := g.CalleesOf(id(g, "a"))
	require.NoError(t, err)
	assert.NotNil(t, leaf)
	assert.Empty(t, leaf)

	_, err = g.CalleesOf("missing")
	assert.ErrorIs(t, err, ErrFunctionNotFound)
	assert.Equal(t, 2, g.OutDegree(id(g, "main")))
	assert.Equal(t, 0, g.OutDegree("missing"))
}

func TestGeneration_FunctionsInFile(t *testing.T) {
	b := NewBuilder(Metadata{ProjectID: "p"})
	require.NoError(t, b.AddFile(File{Path: "a.go"}))
	require.NoError(t, b.AddFile(File{Path: "empty.go"}))
	require.NoError(t, b.AddFunction(&Function{ID: "a.go:20:z", Name: "z", FilePath: "a.go", LineStart: 20, LineEnd: 22}))
	require.NoError(t, b.AddFunction(&Function{ID: "a.go:3:y", Name: "y", FilePath: "a.go", LineStart: 3, LineEnd: 5}))
	g, err := b.Freeze()
	require.NoError(t, err)

	fns, err := g.FunctionsInFile("a.go")
	require.NoError(t, err)
	require.Len(t, fns, 2)
	assert.Equal(t, "y", fns[0].Name)
	assert.Equal(t, "z", fns[1].Name)

	empty, err := g.FunctionsInFile("empty.go")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = g.FunctionsInFile("nope.go")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestGeneration_ResolveFunction(t *testing.T) {
	b := NewBuilder(Metadata{ProjectID: "p"})
	require.NoError(t, b.AddFile(File{Path: "b.go"}))
	require.NoError(t, b.AddFile(File{Path: "a.go"}))
	require.NoError(t, b.AddFunction(&Function{ID: "b.go:1:run", Name: "run", FilePath: "b.go", LineStart: 1, LineEnd: 2}))
	require.NoError(t, b.AddFunction(&Function{ID: "a.go:9:run", Name: "run", FilePath: "a.go", LineStart: 9, LineEnd: 10}))
	require.NoError(t, b.AddFunction(&Function{ID: "a.go:4:run", Name: "run", FilePath: "a.go", LineStart: 4, LineEnd: 5}))
	g, err := b.Freeze()
	require.NoError(t, err)

	fn, others, err := g.ResolveFunction("run", "")
	require.NoError(t, err)
	assert.Equal(t, "a.go:4:run", fn.ID)
	require.Len(t, others, 2)
	assert.Equal(t, "a.go:9:run", others[0].ID)
	assert.Equal(t, "b.go:1:run", others[1].ID)

	fn, others, err = g.ResolveFunction("run", "b.go")
	require.NoError(t, err)
	assert.Equal(t, "b.go:1:run", fn.ID)
	assert.Empty(t, others)

	_, _, err = g.ResolveFunction("stop", "")
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}

// =============================================================================
// Expand
// =============================================================================

func TestExpand_MainHelperScenario(t *testing.T) {
	g := buildGeneration(t, []string{"main", "helper_function"}, []testCall{
		{from: "main", to: "helper_function"},
		{from: "main", to: "print", status: EdgeUnresolved},
	})

	exp, err := g.Expand(id(g, "main"), 3)
	require.NoError(t, err)

	root := exp.Root
	assert.Equal(t, id(g, "main"), root.FunctionID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, id(g, "helper_function"), root.Children[0].FunctionID)
	assert.Empty(t, root.Children[0].Children)
	assert.False(t, root.Children[0].Truncated)
	assert.Equal(t, 2, exp.NodeCount)

	withUnresolved, err := g.Expand(id(g, "main"), 3, WithUnresolved(true))
	require.NoError(t, err)
	require.Len(t, withUnresolved.Root.Children, 2)
	leaf := withUnresolved.Root.Children[1]
	assert.Empty(t, leaf.FunctionID)
	assert.Equal(t, "print", leaf.CalleeName)
	assert.Equal(t, EdgeUnresolved, leaf.Status)
}

func TestExpand_SelfRecursionSingleCut(t *testing.T) {
	g := buildGeneration(t, []string{"fibonacci"}, []testCall{
		{from: "fibonacci", to: "fibonacci"},
		{from: "fibonacci", to: "fibonacci"},
	})

	for _, depth := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("depth=%d", depth), func(t *testing.T) {
			exp, err := g.Expand(id(g, "fibonacci"), depth)
			require.NoError(t, err)

			root := exp.Root
			require.Len(t, root.Children, 1, "recursive occurrence appears exactly once")
			child := root.Children[0]
			assert.Equal(t, root.FunctionID, child.FunctionID)
			assert.True(t, child.Cut)
			assert.Empty(t, child.Children)
			assert.LessOrEqual(t, maxNodeDepth(root), depth)
		})
	}
}

func TestExpand_DepthZero(t *testing.T) {
	g := buildGeneration(t, []string{"a", "b"}, []testCall{{from: "a", to: "b"}})

	exp, err := g.Expand(id(g, "a"), 0)
	require.NoError(t, err)
	assert.Empty(t, exp.Root.Children)
	assert.True(t, exp.Root.Truncated)
	assert.Equal(t, 1, exp.NodeCount)
}

func TestExpand_DepthBoundAndTruncation(t *testing.T) {
	// chain: f0 -> f1 -> ... -> f6
	names := []string{"f0", "f1", "f2", "f3", "f4", "f5", "f6"}
	var calls []testCall
	for i := 0; i < len(names)-1; i++ {
		calls = append(calls, testCall{from: names[i], to: names[i+1]})
	}
	g := buildGeneration(t, names, calls)

	for depth := 0; depth <= 8; depth++ {
		exp, err := g.Expand(id(g, "f0"), depth)
		require.NoError(t, err)

		want := depth
		if want > 6 {
			want = 6
		}
		assert.Equal(t, want, maxNodeDepth(exp.Root), "depth %d", depth)
		assert.Equal(t, want, exp.DepthReached)
		assert.Equal(t, want+1, exp.NodeCount)

		// The deepest node is truncated only if it still had callees.
		deepest := exp.Root
		for len(deepest.Children) > 0 {
			deepest = deepest.Children[0]
		}
		assert.Equal(t, depth < 6, deepest.Truncated, "depth %d", depth)
	}
}

func TestExpand_ReachabilityWithinBound(t *testing.T) {
	g := buildGeneration(t, []string{"a", "b", "c", "d", "e"}, []testCall{
		{from: "a", to: "b"},
		{from: "a", to: "c"},
		{from: "b", to: "d"},
		{from: "c", to: "d"},
		{from: "d", to: "e"},
	})

	exp, err := g.Expand(id(g, "a"), 2)
	require.NoError(t, err)

	ids := exp.FunctionIDs()
	assert.Equal(t, []string{id(g, "a"), id(g, "b"), id(g, "d"), id(g, "c")}, ids)
	assert.NotContains(t, ids, id(g, "e"), "e is three edges away")

	// d appears under both b and c: sibling branches are independent.
	assert.Equal(t, 5, exp.NodeCount)
	assert.Len(t, exp.Edges, 4)
}

func TestExpand_MutualRecursionTerminates(t *testing.T) {
	g := buildGeneration(t, []string{"ping", "pong"}, []testCall{
		{from: "ping", to: "pong"},
		{from: "pong", to: "ping"},
	})

	exp, err := g.Expand(id(g, "ping"), 10)
	require.NoError(t, err)

	require.Len(t, exp.Root.Children, 1)
	pong := exp.Root.Children[0]
	require.Len(t, pong.Children, 1)
	back := pong.Children[0]
	assert.Equal(t, id(g, "ping"), back.FunctionID)
	assert.True(t, back.Cut)
	assert.Equal(t, 3, countNodes(exp.Root))
}

func TestExpand_DenseCycleStaysBounded(t *testing.T) {
	// Every function calls every other function.
	names := []string{"a", "b", "c", "d"}
	var calls []testCall
	for _, from := range names {
		for _, to := range names {
			if from != to {
				calls = append(calls, testCall{from: from, to: to})
			}
		}
	}
	g := buildGeneration(t, names, calls)

	exp, err := g.Expand(id(g, "a"), 10)
	require.NoError(t, err)

	// Paths are simple, so depth never exceeds the function count.
	assert.LessOrEqual(t, maxNodeDepth(exp.Root), len(names))
	assert.Equal(t, countNodes(exp.Root), exp.NodeCount)

	limited, err := g.Expand(id(g, "a"), 10, WithMaxNodes(5))
	require.NoError(t, err)
	assert.Equal(t, 5, limited.NodeCount)
	assert.True(t, limited.Truncated)
}

func TestExpand_Errors(t *testing.T) {
	g := buildGeneration(t, []string{"a"}, nil)

	_, err := g.Expand("missing", 3)
	assert.ErrorIs(t, err, ErrFunctionNotFound)

	_, err = g.Expand(id(g, "a"), -1)
	assert.ErrorIs(t, err, ErrNegativeDepth)
}

// =============================================================================
// Snapshot
// =============================================================================

func TestSnapshot_RoundTrip(t *testing.T) {
	g := buildGeneration(t, []string{"main", "helper"}, []testCall{
		{from: "main", to: "helper"},
		{from: "main", to: "missing", status: EdgeUnresolved},
	})

	data, err := json.Marshal(g.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored, err := FromSnapshot(&snap)
	require.NoError(t, err)
	assert.Equal(t, g.ID(), restored.ID())
	assert.True(t, g.BuiltAt().Equal(restored.BuiltAt()))
	assert.Equal(t, g.TotalFunctions(), restored.TotalFunctions())
	assert.Equal(t, g.TotalRelations(), restored.TotalRelations())
	assert.Equal(t, g.UnresolvedCalls(), restored.UnresolvedCalls())

	callees, err := restored.CalleesOf(id(restored, "main"))
	require.NoError(t, err)
	assert.Equal(t, []string{id(restored, "helper")}, callees)
}

func TestFromSnapshot_Rejects(t *testing.T) {
	_, err := FromSnapshot(nil)
	assert.Error(t, err)

	_, err = FromSnapshot(&Snapshot{Version: 99})
	assert.Error(t, err)

	_, err = FromSnapshot(&Snapshot{
		Version:   SnapshotVersion,
		Files:     []File{{Path: "a.go"}},
		Functions: []Function{{ID: "a.go:1:f", Name: "f", FilePath: "a.go", LineStart: 1, LineEnd: 1}},
		Calls:     []CallEdge{{CallerID: "a.go:1:f", CalleeID: "gone", CalleeName: "g", Status: EdgeResolved}},
	})
	assert.ErrorIs(t, err, ErrInvalidEdge)
}
