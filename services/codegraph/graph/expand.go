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
	"fmt"
)

// DefaultMaxNodes bounds the size of one expansion.
const DefaultMaxNodes = 10000

// ExpansionNode is one node of a call tree produced by Expand.
//
// Function nodes carry FunctionID. Unresolved and ambiguous call sites,
// included only with WithUnresolved(true), carry an empty FunctionID and
// their CalleeName, Status and Candidates.
type ExpansionNode struct {
	FunctionID string     `json:"function_id,omitempty"`
	CalleeName string     `json:"callee_name,omitempty"`
	Depth      int        `json:"depth"`
	Line       int        `json:"line,omitempty"`
	Status     EdgeStatus `json:"status,omitempty"`
	Candidates []string   `json:"candidates,omitempty"`

	// Cut marks a function already present on its own ancestor path. It is
	// emitted once and never expanded.
	Cut bool `json:"cut,omitempty"`

	// Truncated marks a node whose callees were not emitted, either because
	// the depth bound stopped it or because the node budget ran out.
	Truncated bool `json:"truncated,omitempty"`

	Children []*ExpansionNode `json:"children,omitempty"`
}

// Expansion is the result of Expand.
type Expansion struct {
	Root *ExpansionNode

	// NodeCount is the number of emitted nodes, root included.
	NodeCount int

	// DepthReached is the deepest emitted depth.
	DepthReached int

	// Truncated is true when the node budget dropped any node.
	Truncated bool

	// Edges are the traversed call edges, deduplicated, in traversal order.
	Edges []CallEdge
}

// FunctionIDs returns the distinct function ids in preorder.
func (e *Expansion) FunctionIDs() []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(n *ExpansionNode)
	walk = func(n *ExpansionNode) {
		if n.FunctionID != "" && !seen[n.FunctionID] {
			seen[n.FunctionID] = true
			out = append(out, n.FunctionID)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	if e.Root != nil {
		walk(e.Root)
	}
	return out
}

// ExpandOption configures Expand.
type ExpandOption func(*expandOptions)

type expandOptions struct {
	includeUnresolved bool
	maxNodes          int
}

// WithUnresolved adds unresolved and ambiguous call sites as leaf nodes.
func WithUnresolved(include bool) ExpandOption {
	return func(o *expandOptions) { o.includeUnresolved = include }
}

// WithMaxNodes bounds the number of emitted nodes. Non-positive values
// keep the default.
func WithMaxNodes(n int) ExpandOption {
	return func(o *expandOptions) {
		if n > 0 {
			o.maxNodes = n
		}
	}
}

// Expand materializes the call tree rooted at rootID.
//
// Description:
//
//	The root is at depth 0 and no node is deeper than maxDepth. Children
//	are the distinct resolved callees in first call-site order. A callee
//	that already appears on the path from the root is emitted with
//	Cut=true and not expanded, so cyclic graphs always terminate. Sibling
//	branches are independent: the same function may appear under several
//	parents.
//
// Inputs:
//   - rootID: Function id of the root.
//   - maxDepth: Maximum number of edges from the root. Must be >= 0.
//   - opts: WithUnresolved, WithMaxNodes.
//
// Outputs:
//   - *Expansion: The tree plus traversal statistics.
//   - error: ErrFunctionNotFound for an unknown root, ErrNegativeDepth.
//
// Thread Safety: Safe for concurrent use.
func (g *Generation) Expand(rootID string, maxDepth int, opts ...ExpandOption) (*Expansion, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeDepth, maxDepth)
	}
	if _, ok := g.functions[rootID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, rootID)
	}

	o := expandOptions{maxNodes: DefaultMaxNodes}
	for _, opt := range opts {
		opt(&o)
	}

	x := &expander{
		g:         g,
		opts:      o,
		maxDepth:  maxDepth,
		ancestors: make(map[string]bool),
		edgeSeen:  make(map[edgeKey]bool),
		result:    &Expansion{},
	}
	root := &ExpansionNode{FunctionID: rootID, Status: EdgeResolved}
	x.result.Root = root
	x.result.NodeCount = 1
	x.expand(root)
	return x.result, nil
}

type edgeKey struct {
	caller string
	order  int
	line   int
}

type expander struct {
	g         *Generation
	opts      expandOptions
	maxDepth  int
	ancestors map[string]bool
	edgeSeen  map[edgeKey]bool
	result    *Expansion
}

// childEdges returns the edges that become children of callerID.
func (x *expander) childEdges(callerID string) []CallEdge {
	edges := x.g.calls[callerID]
	out := make([]CallEdge, 0, len(edges))
	seenIDs := make(map[string]bool)
	seenNames := make(map[string]bool)
	for _, e := range edges {
		if e.Status == EdgeResolved {
			if seenIDs[e.CalleeID] {
				continue
			}
			seenIDs[e.CalleeID] = true
			out = append(out, e)
			continue
		}
		if !x.opts.includeUnresolved || seenNames[e.CalleeName] {
			continue
		}
		seenNames[e.CalleeName] = true
		out = append(out, e)
	}
	return out
}

func (x *expander) expand(node *ExpansionNode) {
	if node.Depth > x.result.DepthReached {
		x.result.DepthReached = node.Depth
	}

	edges := x.childEdges(node.FunctionID)
	if len(edges) == 0 {
		return
	}
	if node.Depth >= x.maxDepth {
		node.Truncated = true
		return
	}

	x.ancestors[node.FunctionID] = true
	defer delete(x.ancestors, node.FunctionID)

	for _, e := range edges {
		if x.result.NodeCount >= x.opts.maxNodes {
			node.Truncated = true
			x.result.Truncated = true
			return
		}

		child := &ExpansionNode{
			Depth:  node.Depth + 1,
			Line:   e.Line,
			Status: e.Status,
		}
		if e.Status == EdgeResolved {
			child.FunctionID = e.CalleeID
		} else {
			child.CalleeName = e.CalleeName
			child.Candidates = append([]string(nil), e.Candidates...)
		}
		node.Children = append(node.Children, child)
		x.result.NodeCount++
		x.recordEdge(e)

		switch {
		case child.FunctionID == "":
			if child.Depth > x.result.DepthReached {
				x.result.DepthReached = child.Depth
			}
		case x.ancestors[child.FunctionID]:
			child.Cut = true
			if child.Depth > x.result.DepthReached {
				x.result.DepthReached = child.Depth
			}
		default:
			x.expand(child)
		}
	}
}

func (x *expander) recordEdge(e CallEdge) {
	k := edgeKey{caller: e.CallerID, order: e.Order, line: e.Line}
	if x.edgeSeen[k] {
		return
	}
	x.edgeSeen[k] = true
	e.Candidates = append([]string(nil), e.Candidates...)
	x.result.Edges = append(x.result.Edges, e)
}
