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

// CalleesOf returns the distinct resolved callees of a function, ordered by
// the source order of each callee's first call site.
//
// Outputs:
//   - []string: Callee ids. Empty (non-nil) if the function calls nothing.
//   - error: ErrFunctionNotFound for an unknown id.
func (g *Generation) CalleesOf(functionID string) ([]string, error) {
	if _, ok := g.functions[functionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, functionID)
	}
	edges := g.calls[functionID]
	out := make([]string, 0, len(edges))
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if e.Status != EdgeResolved || seen[e.CalleeID] {
			continue
		}
		seen[e.CalleeID] = true
		out = append(out, e.CalleeID)
	}
	return out, nil
}

// CallsOf returns every call edge of a function in source order, including
// unresolved and ambiguous call sites. The slice is a copy.
func (g *Generation) CallsOf(functionID string) ([]CallEdge, error) {
	if _, ok := g.functions[functionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, functionID)
	}
	return append([]CallEdge{}, g.calls[functionID]...), nil
}

// CallersOf returns the distinct functions with a resolved call to
// functionID, ordered by caller id.
func (g *Generation) CallersOf(functionID string) ([]string, error) {
	if _, ok := g.functions[functionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, functionID)
	}
	return append([]string{}, g.callers[functionID]...), nil
}

// OutDegree returns the number of distinct resolved callees, or zero for an
// unknown id.
func (g *Generation) OutDegree(functionID string) int {
	callees, err := g.CalleesOf(functionID)
	if err != nil {
		return 0
	}
	return len(callees)
}

// FunctionsInFile returns the functions declared in filePath ordered by
// line_start, then id.
//
// A file that was extracted but declares nothing yields an empty slice and
// no error. A path that is not part of the generation returns ErrFileNotFound.
func (g *Generation) FunctionsInFile(filePath string) ([]*Function, error) {
	if _, ok := g.files[filePath]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
	}
	return append([]*Function{}, g.byFile[filePath]...), nil
}

// ResolveFunction picks one function by name, optionally restricted to a file.
//
// Description:
//
//	With several matches the lowest file path wins, then the lowest start
//	line. The remaining matches are returned as candidates so callers can
//	report the ambiguity.
//
// Inputs:
//   - name: The bare function name.
//   - filePath: Root-relative path, or "" for any file.
//
// Outputs:
//   - *Function: The selected function.
//   - []*Function: The other matches, in the same order.
//   - error: ErrFunctionNotFound if nothing matches.
func (g *Generation) ResolveFunction(name, filePath string) (*Function, []*Function, error) {
	var matches []*Function
	for _, fn := range g.byName[name] {
		if filePath == "" || fn.FilePath == filePath {
			matches = append(matches, fn)
		}
	}
	if len(matches) == 0 {
		if filePath != "" {
			return nil, nil, fmt.Errorf("%w: %s in %s", ErrFunctionNotFound, name, filePath)
		}
		return nil, nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return matches[0], matches[1:], nil
}
