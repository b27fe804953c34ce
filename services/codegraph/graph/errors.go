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

import "errors"

// Sentinel errors for generation building and querying.
var (
	// ErrGenerationFrozen is returned when modifying a builder after Freeze.
	ErrGenerationFrozen = errors.New("generation is frozen and cannot be modified")

	// ErrFunctionNotFound is returned for an unknown function id or name.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrFileNotFound is returned for a file that is not part of the generation.
	ErrFileNotFound = errors.New("file not found")

	// ErrDuplicateFunction is returned when a function id is added twice.
	ErrDuplicateFunction = errors.New("duplicate function ID")

	// ErrDuplicateFile is returned when a file path is added twice.
	ErrDuplicateFile = errors.New("duplicate file")

	// ErrInvalidFunction is returned for a nil function or one that fails validation.
	ErrInvalidFunction = errors.New("invalid function")

	// ErrInvalidEdge is returned for an edge whose endpoints do not resolve,
	// or whose status does not match its callee fields.
	ErrInvalidEdge = errors.New("invalid call edge")

	// ErrMaxFunctionsExceeded is returned when the configured function capacity is reached.
	ErrMaxFunctionsExceeded = errors.New("maximum function count exceeded")

	// ErrMaxEdgesExceeded is returned when the configured edge capacity is reached.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrNegativeDepth is returned when an expansion depth is negative.
	ErrNegativeDepth = errors.New("max depth must be non-negative")
)
