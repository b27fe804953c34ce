// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codegraph

import (
	"time"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/hierarchy"
)

// =============================================================================
// Envelope
// =============================================================================

// Response is the envelope of every endpoint.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the failure half of the envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// Build and lifecycle
// =============================================================================

// BuildRequest is the body of POST /build.
type BuildRequest struct {
	// ProjectDir is the absolute project root.
	ProjectDir string `json:"project_dir" binding:"required" validate:"required,max=4096"`

	// ForceRebuild discards the cached generation.
	ForceRebuild bool `json:"force_rebuild"`

	// ExcludePatterns are directory names, globs or substrings to skip.
	ExcludePatterns []string `json:"exclude_patterns" validate:"max=256,dive,required,max=512"`
}

// BuildResponse describes the generation a build produced or reused.
type BuildResponse struct {
	ProjectID       string              `json:"project_id"`
	GenerationID    string              `json:"generation_id"`
	RootDir         string              `json:"root_dir"`
	TotalFiles      int                 `json:"total_files"`
	TotalFunctions  int                 `json:"total_functions"`
	TotalRelations  int                 `json:"total_relations"`
	UnresolvedCalls int                 `json:"unresolved_calls"`
	FailedFiles     []graph.FileFailure `json:"failed_files,omitempty"`
	CacheHit        bool                `json:"cache_hit"`
	BuildTimeMs     int64               `json:"build_time_ms"`
	BuiltAt         time.Time           `json:"built_at"`
}

// InitRequest is the body of POST /init.
type InitRequest struct {
	ProjectDir      string   `json:"project_dir" binding:"required" validate:"required,max=4096"`
	ExcludePatterns []string `json:"exclude_patterns" validate:"max=256,dive,required,max=512"`
}

// InitResponse reports how the project was loaded.
type InitResponse struct {
	ProjectID       string `json:"project_id"`
	LoadedFromCache bool   `json:"loaded_from_cache"`
	CacheHit        bool   `json:"cache_hit"`
	TotalFunctions  int    `json:"total_functions"`
	TotalFiles      int    `json:"total_files"`
}

// ProjectSummary is one entry of GET /projects.
type ProjectSummary struct {
	ProjectID      string    `json:"project_id"`
	GenerationID   string    `json:"generation_id"`
	RootDir        string    `json:"root_dir"`
	ModulePath     string    `json:"module_path,omitempty"`
	TotalFiles     int       `json:"total_files"`
	TotalFunctions int       `json:"total_functions"`
	TotalRelations int       `json:"total_relations"`
	BuiltAt        time.Time `json:"built_at"`
}

// ProjectsResponse is the body of GET /projects.
type ProjectsResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

// =============================================================================
// Queries
// =============================================================================

// HierarchyRequest is the body of POST /hierarchy.
//
// Without RootFunction the tree is the project's directory layout.
type HierarchyRequest struct {
	ProjectID    string `json:"project_id" validate:"omitempty,max=64"`
	RootFunction string `json:"root_function" validate:"omitempty,max=512"`
	FilePath     string `json:"filepath" validate:"omitempty,max=4096"`

	// MaxDepth defaults to 3 and is clamped to 10.
	MaxDepth *int `json:"max_depth" validate:"omitempty,min=0"`

	// IncludeFileInfo defaults to true.
	IncludeFileInfo *bool `json:"include_file_info"`

	// IncludeUnresolved adds unresolved and ambiguous calls as leaves.
	IncludeUnresolved bool `json:"include_unresolved"`
}

// HierarchyResponse is the tree with its header fields.
type HierarchyResponse = hierarchy.Tree

// CallGraphRequest is the body of POST /callgraph.
type CallGraphRequest struct {
	ProjectID    string `json:"project_id" validate:"omitempty,max=64"`
	FilePath     string `json:"filepath" binding:"required" validate:"required,max=4096"`
	FunctionName string `json:"function_name" validate:"omitempty,max=512"`
	MaxDepth     *int   `json:"max_depth" validate:"omitempty,min=0"`
}

// CallRelation is one neighbor of a function.
type CallRelation struct {
	FunctionID   string `json:"function_id"`
	FunctionName string `json:"function_name"`
	FilePath     string `json:"file_path"`
	LineNumber   int    `json:"line_number"`
}

// FunctionInfo is one function of a call graph response.
type FunctionInfo struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	FilePath  string         `json:"file_path"`
	LineStart int            `json:"line_start"`
	LineEnd   int            `json:"line_end"`
	Signature string         `json:"signature,omitempty"`
	Callers   []CallRelation `json:"callers"`
	Callees   []CallRelation `json:"callees"`
}

// CallGraphResponse lists functions and the edges between them.
type CallGraphResponse struct {
	ProjectID string           `json:"project_id"`
	FilePath  string           `json:"filepath"`
	Functions []FunctionInfo   `json:"functions"`
	Edges     []graph.CallEdge `json:"edges"`
	Truncated bool             `json:"truncated,omitempty"`
}

// SnippetRequest is the body of POST /snippet.
type SnippetRequest struct {
	ProjectID string `json:"project_id" validate:"omitempty,max=64"`
	FilePath  string `json:"filepath" binding:"required" validate:"required,max=4096"`

	// FunctionName selects the function; empty returns the whole file.
	FunctionName string `json:"function_name" validate:"omitempty,max=512"`

	IncludeContext bool `json:"include_context"`

	// ContextLines defaults to 3 when IncludeContext is set.
	ContextLines *int `json:"context_lines" validate:"omitempty,min=0,max=1000"`
}

// SnippetResponse is the sliced source.
type SnippetResponse struct {
	FilePath     string `json:"filepath"`
	FunctionName string `json:"function_name,omitempty"`
	CodeSnippet  string `json:"code_snippet"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
	Language     string `json:"language"`
}

// SkeletonRequest is the body of POST /skeleton.
type SkeletonRequest struct {
	ProjectID string   `json:"project_id" validate:"omitempty,max=64"`
	FilePaths []string `json:"filepaths" binding:"required" validate:"required,min=1,max=200,dive,required,max=4096"`
}

// FileSkeleton is one file's skeleton or its failure.
type FileSkeleton struct {
	FilePath     string     `json:"filepath"`
	Language     string     `json:"language,omitempty"`
	SkeletonText string     `json:"skeleton_text,omitempty"`
	Error        *ErrorBody `json:"error,omitempty"`
}

// SkeletonResponse is the body of a skeleton batch.
type SkeletonResponse struct {
	Skeletons []FileSkeleton `json:"skeletons"`
}

// InvestigateRequest is the body of POST /investigate.
type InvestigateRequest struct {
	ProjectDir      string   `json:"project_dir" binding:"required" validate:"required,max=4096"`
	ExcludePatterns []string `json:"exclude_patterns" validate:"max=256,dive,required,max=512"`
}

// CoreFunction is a high out-degree function.
type CoreFunction struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	FilePath  string         `json:"file_path"`
	OutDegree int            `json:"out_degree"`
	Callees   []CallRelation `json:"callees"`
}

// InvestigateResponse summarizes a repository.
type InvestigateResponse struct {
	ProjectID      string         `json:"project_id"`
	TotalFunctions int            `json:"total_functions"`
	TotalRelations int            `json:"total_relations"`
	CoreFunctions  []CoreFunction `json:"core_functions"`
	FileSkeletons  []FileSkeleton `json:"file_skeletons"`
}

// =============================================================================
// Health
// =============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the body of GET /ready.
type ReadyResponse struct {
	Ready        bool `json:"ready"`
	ProjectCount int  `json:"project_count"`
}
