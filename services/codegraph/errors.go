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
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/codegraph/services/codegraph/ast"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/index"
	"github.com/AleutianAI/codegraph/services/codegraph/snippet"
)

// Sentinel errors for the codegraph service. Errors from the index, graph
// and snippet packages are classified alongside these.
var (
	// ErrInvalidArgument indicates a malformed request field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRelativePath indicates a path that must be absolute was not.
	ErrRelativePath = errors.New("path must be absolute")

	// ErrPathTraversal indicates a path containing ".." elements.
	ErrPathTraversal = errors.New("path contains traversal sequences")

	// ErrPathNotAllowed indicates a path outside every allowed root.
	ErrPathNotAllowed = errors.New("path is outside the allowed roots")

	// ErrFileNotFound indicates a file that is neither indexed nor on disk.
	ErrFileNotFound = errors.New("file not found")

	// ErrBuildTimeout indicates a build exceeded build_timeout.
	ErrBuildTimeout = errors.New("build timed out")

	// ErrRateLimited indicates the build endpoint's token bucket is empty.
	ErrRateLimited = errors.New("too many build requests")

	ErrProjectNotFound  = index.ErrProjectNotFound
	ErrFunctionNotFound = graph.ErrFunctionNotFound
	ErrBuildInProgress  = index.ErrBuildInProgress
	ErrProjectTooLarge  = index.ErrProjectTooLarge
	ErrNoSourceFiles    = index.ErrNoSourceFiles
	ErrParseFailure     = index.ErrParseFailure
	ErrIO               = snippet.ErrReadFailed
)

// Error codes carried in the failure envelope.
const (
	CodeProjectNotFound  = "PROJECT_NOT_FOUND"
	CodeFunctionNotFound = "FUNCTION_NOT_FOUND"
	CodeFileNotFound     = "FILE_NOT_FOUND"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeInvalidPath      = "INVALID_PATH"
	CodePathTraversal    = "PATH_TRAVERSAL"
	CodePathNotAllowed   = "PATH_NOT_ALLOWED"
	CodeProjectTooLarge  = "PROJECT_TOO_LARGE"
	CodeNoSourceFiles    = "NO_SOURCE_FILES"
	CodeParseFailure     = "PARSE_FAILURE"
	CodeIOError          = "IO_ERROR"
	CodeBuildInProgress  = "BUILD_IN_PROGRESS"
	CodeBuildTimeout     = "BUILD_TIMEOUT"
	CodeRateLimited      = "RATE_LIMITED"
)

// classification maps a sentinel to its status and code. Order matters:
// the first matching entry wins.
var classification = []struct {
	targets []error
	status  int
	code    string
}{
	{[]error{ErrBuildTimeout, context.DeadlineExceeded}, http.StatusGatewayTimeout, CodeBuildTimeout},
	{[]error{ErrRateLimited}, http.StatusTooManyRequests, CodeRateLimited},
	{[]error{ErrBuildInProgress}, http.StatusConflict, CodeBuildInProgress},
	{[]error{ErrProjectNotFound}, http.StatusNotFound, CodeProjectNotFound},
	{[]error{ErrFunctionNotFound, snippet.ErrFunctionNotFound}, http.StatusNotFound, CodeFunctionNotFound},
	{[]error{ErrFileNotFound, graph.ErrFileNotFound, snippet.ErrFileNotFound}, http.StatusNotFound, CodeFileNotFound},
	{[]error{ErrRelativePath, index.ErrInvalidRoot}, http.StatusBadRequest, CodeInvalidPath},
	{[]error{ErrPathTraversal}, http.StatusBadRequest, CodePathTraversal},
	{[]error{ErrPathNotAllowed}, http.StatusBadRequest, CodePathNotAllowed},
	{[]error{ErrProjectTooLarge}, http.StatusBadRequest, CodeProjectTooLarge},
	{[]error{ErrNoSourceFiles}, http.StatusBadRequest, CodeNoSourceFiles},
	{[]error{
		ErrInvalidArgument,
		graph.ErrNegativeDepth,
		ast.ErrUnsupportedLanguage,
		snippet.ErrNotRegularFile,
		snippet.ErrFileTooLarge,
	}, http.StatusBadRequest, CodeInvalidArgument},
	{[]error{ErrParseFailure, ast.ErrInvalidContent, ast.ErrFileTooLarge}, http.StatusUnprocessableEntity, CodeParseFailure},
	{[]error{ErrIO}, http.StatusInternalServerError, CodeIOError},
}

// Classify returns the HTTP status and error code for err.
// Unrecognized errors are IO_ERROR with status 500.
func Classify(err error) (int, string) {
	for _, c := range classification {
		for _, target := range c.targets {
			if errors.Is(err, target) {
				return c.status, c.code
			}
		}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, CodeInvalidArgument
	}
	var perr *ast.ParseError
	if errors.As(err, &perr) {
		return http.StatusUnprocessableEntity, CodeParseFailure
	}
	return http.StatusInternalServerError, CodeIOError
}
