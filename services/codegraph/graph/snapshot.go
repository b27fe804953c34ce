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
	"time"
)

// SnapshotVersion is bumped whenever the Snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the serializable form of a Generation.
type Snapshot struct {
	Version      int           `json:"version"`
	GenerationID string        `json:"generation_id"`
	BuiltAt      time.Time     `json:"built_at"`
	Metadata     Metadata      `json:"metadata"`
	Files        []File        `json:"files"`
	Functions    []Function    `json:"functions"`
	Calls        []CallEdge    `json:"calls"`
	Failures     []FileFailure `json:"failures,omitempty"`
}

// Snapshot returns a deep copy of the generation in serializable form.
func (g *Generation) Snapshot() *Snapshot {
	s := &Snapshot{
		Version:      SnapshotVersion,
		GenerationID: g.id,
		BuiltAt:      g.builtAt,
		Metadata:     g.Metadata(),
		Files:        g.Files(),
		Failures:     g.Failures(),
	}
	s.Functions = make([]Function, 0, len(g.functionIDs))
	for _, id := range g.functionIDs {
		s.Functions = append(s.Functions, *g.functions[id])
		for _, e := range g.calls[id] {
			e.Candidates = append([]string(nil), e.Candidates...)
			s.Calls = append(s.Calls, e)
		}
	}
	return s
}

// FromSnapshot rebuilds a Generation, keeping its id and build time.
//
// Every invariant is re-checked, so a corrupted snapshot fails instead of
// producing a generation with dangling edges.
func FromSnapshot(s *Snapshot) (*Generation, error) {
	if s == nil {
		return nil, fmt.Errorf("restore snapshot: nil snapshot")
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("restore snapshot: unsupported version %d", s.Version)
	}

	b := NewBuilder(s.Metadata, withIdentity(s.GenerationID, s.BuiltAt))
	for _, f := range s.Files {
		if err := b.AddFile(f); err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
	}
	for i := range s.Functions {
		fn := s.Functions[i]
		if err := b.AddFunction(&fn); err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
	}
	for _, e := range s.Calls {
		if err := b.AddCall(e); err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
	}
	for _, f := range s.Failures {
		b.AddFailure(f)
	}
	return b.Freeze()
}
